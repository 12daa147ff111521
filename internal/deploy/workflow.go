package deploy

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// WorkflowPath is where the workflow is written, relative to the project.
const WorkflowPath = ".github/workflows/deploy.yml"

const workflowTemplate = `name: Deploy to GitHub Pages

on:
  push:
    branches: [ __BRANCH__ ]
  workflow_dispatch:

permissions:
  contents: read
  pages: write
  id-token: write

concurrency:
  group: pages
  cancel-in-progress: true

jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - name: Checkout
        uses: actions/checkout@v4
      - name: Setup Node
        uses: actions/setup-node@v4
        with:
          node-version: 20
      - name: Install dependencies
        run: if [ -f package.json ]; then npm ci || npm install; fi
      - name: Build
        run: if [ -f package.json ]; then npm run build --if-present; fi
      - name: Upload artifact
        uses: actions/upload-pages-artifact@v3
        with:
          path: .

  deploy:
    needs: build
    runs-on: ubuntu-latest
    environment:
      name: github-pages
      url: ${{ steps.deployment.outputs.page_url }}
    steps:
      - name: Deploy to GitHub Pages
        id: deployment
        uses: actions/deploy-pages@v4
`

// Workflow renders the deployment workflow for branch. The branch is
// written as a double-quoted YAML scalar.
func Workflow(branch string) string {
	return strings.ReplaceAll(workflowTemplate, "__BRANCH__", yamlQuote(branch))
}

func yamlQuote(s string) string {
	out, err := yaml.Marshal(&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.DoubleQuotedStyle, Value: s})
	if err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimSpace(string(out))
}
