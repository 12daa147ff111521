package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/mfittko/gitdrop/internal/deliver"
	"github.com/mfittko/gitdrop/internal/remote"
	"github.com/mfittko/gitdrop/internal/source"
)

const (
	// DefaultBranch is used when a request names no branch.
	DefaultBranch = "main"

	committerName  = "gitdrop"
	committerEmail = "gitdrop@users.noreply.github.com"
	commitMessage  = "Add GitHub Pages deployment workflow"
)

// Request describes one clone-and-deploy operation.
type Request struct {
	Repository source.Repository
	Project    string
	Branch     string

	// CloneURL overrides the repository URL used by git clone.
	CloneURL string
}

func (r Request) branch() string {
	if r.Branch == "" {
		return DefaultBranch
	}
	return r.Branch
}

func (r Request) cloneURL() string {
	if r.CloneURL != "" {
		return r.CloneURL
	}
	return r.Repository.URL()
}

// BuildPlan returns the steps that clone the repository into root/project,
// add the workflow, set the manifest homepage, commit and push.
func BuildPlan(req Request, root string) Plan {
	dir := path.Join(root, req.Project)
	q := remote.ShellEscape
	branch := req.branch()
	workflowDir := path.Join(dir, path.Dir(WorkflowPath))

	return Plan{Steps: []Step{
		{
			Name:    "prepare",
			Command: fmt.Sprintf("mkdir -p %s && find %s -mindepth 1 -maxdepth 1 -exec rm -rf {} +", q(dir), q(dir)),
		},
		{
			Name:    "clone",
			Command: fmt.Sprintf("git clone --branch %s %s %s", q(branch), q(req.cloneURL()), q(dir)),
		},
		{
			Name:    "install",
			Command: fmt.Sprintf("cd %s && if [ -f package.json ]; then npm install; fi", q(dir)),
			Policy:  SoftFail,
		},
		{
			Name: "workflow",
			Command: fmt.Sprintf("mkdir -p %s && printf '%%s' %s > %s",
				q(workflowDir), q(Workflow(branch)), q(path.Join(dir, WorkflowPath))),
		},
		{
			Name:    "manifest",
			Command: fmt.Sprintf("cd %s && if [ -f package.json ]; then npm pkg set %s; fi", q(dir), q("homepage="+req.Repository.PagesURL())),
		},
		{
			Name:    "stage",
			Command: fmt.Sprintf("git -C %s add -A", q(dir)),
		},
		{
			Name: "identity",
			Command: fmt.Sprintf("git -C %s config user.name %s && git -C %s config user.email %s",
				q(dir), q(committerName), q(dir), q(committerEmail)),
		},
		{
			Name: "commit",
			// A repository that already carries the workflow has nothing to commit.
			Command: fmt.Sprintf("git -C %s diff --cached --quiet || git -C %s commit -m %s", q(dir), q(dir), q(commitMessage)),
		},
		{
			Name:    "push",
			Command: fmt.Sprintf("git -C %s push origin %s", q(dir), q("HEAD:"+branch)),
		},
	}}
}

// Orchestrator runs deployment plans.
type Orchestrator struct {
	logger *slog.Logger
}

// New creates an Orchestrator.
func New(logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{logger: logger}
}

// Deploy builds the plan for req under root and runs it over r. On success
// the Result carries the derived Pages URL; on failure its Detail is the
// output of the step that halted the plan.
func (o *Orchestrator) Deploy(ctx context.Context, req Request, r remote.Runner, root string, observe Observer) deliver.Result {
	plan := BuildPlan(req, root)
	dir := path.Join(root, req.Project)
	logger := o.logger.With("repository", req.Repository.URL(), "project", req.Project)

	logger.Info("Starting deployment", "dir", dir, "branch", req.branch(), "steps", len(plan.Steps))
	ran, err := plan.Execute(ctx, r, observe, logger)
	if err != nil {
		var stepErr *CommandStepError
		if errors.As(err, &stepErr) {
			res := deliver.Failed(fmt.Sprintf("Deployment failed at step %q", stepErr.Step), err)
			res.Detail = stepErr.Detail()
			res.Destination = dir
			return res
		}
		return deliver.Failed("Deployment failed", err)
	}

	logger.Info("Deployment complete", "steps", ran)
	res := deliver.Succeeded("Repository cloned successfully", dir)
	res.URL = req.Repository.PagesURL()
	res.Detail = fmt.Sprintf("Repository cloned successfully to %s", dir)
	return res
}
