package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfittko/gitdrop/internal/deploy"
	"github.com/mfittko/gitdrop/internal/output"
	"github.com/mfittko/gitdrop/internal/server"
	"github.com/mfittko/gitdrop/internal/service"
	"github.com/mfittko/gitdrop/internal/source"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API.

Endpoints:
  POST /api/process-github       {"github_url": "...", "target": "local|remote"}
  POST /api/clone-and-deploy     {"github_url": "...", "project_name": "...", "branch": "..."}
  GET  /api/clone-and-deploy/ws  websocket with step-by-step progress
  GET  /healthz`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := a.settings.ListenAddr
			if listen != "" {
				addr = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.logger.Info("Starting gitdrop",
				"version", version,
				"local_destination", a.settings.LocalDestination,
				"delivery_target", a.settings.DeliveryTarget,
				"remote_host", a.settings.Remote.Host,
				"allowed_origins", a.settings.AllowedOrigins)
			srv := server.New(a.service(), a.logger, server.WithAllowedOrigins(a.settings.AllowedOrigins...))
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides LISTEN_ADDR)")
	return cmd
}

func newResolveCmd(a *app) *cobra.Command {
	var repository bool
	cmd := &cobra.Command{
		Use:   "resolve <github-url>",
		Short: "Print the raw content URL for a GitHub file URL",
		Long: `Print the raw content URL for a GitHub file URL without fetching it.

With --repository the URL is checked as a repository root and its
GitHub Pages address is printed.

Examples:
  gitdrop resolve https://github.com/acme/site/blob/main/index.html
  gitdrop resolve --repository https://github.com/acme/site`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if repository {
				repo, err := source.ResolveRepository(args[0])
				if err != nil {
					return a.printResolutionError(err, args[0])
				}
				return a.printResult(&output.Result{
					Success: true,
					Message: repo.URL(),
					URL:     repo.PagesURL(),
					Data:    map[string]string{"owner": repo.Owner, "repository": repo.Name},
				})
			}

			rawURL, err := source.ResolveContent(args[0])
			if err != nil {
				return a.printResolutionError(err, args[0])
			}
			ref, _ := source.Parse(args[0])
			return a.printResult(&output.Result{
				Success: true,
				Message: rawURL,
				Data: map[string]string{
					"scheme":     string(ref.Scheme),
					"owner":      ref.Owner,
					"repository": ref.Repository,
					"branch":     ref.Branch,
					"path":       ref.Path,
				},
			})
		},
	}
	cmd.Flags().BoolVar(&repository, "repository", false, "Treat the URL as a repository root")
	return cmd
}

func (a *app) printResolutionError(err error, provided string) error {
	res := &output.Result{Error: err.Error(), Data: map[string]string{"provided": provided}}
	if resErr, ok := err.(*source.ResolutionError); ok {
		res.Data["example"] = resErr.Example()
	}
	return a.printResult(res)
}

func newFetchCmd(a *app) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "fetch <github-url>",
		Short: "Fetch a file from GitHub and deliver it",
		Long: `Fetch a file from GitHub and deliver it to the local destination or the
remote host.

Examples:
  gitdrop fetch https://github.com/acme/site/blob/main/index.html
  gitdrop fetch --target remote https://raw.githubusercontent.com/acme/site/main/logo.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.service().ProcessFile(cmd.Context(), service.ProcessRequest{URL: args[0], Target: target})
			if err != nil {
				return a.printError(err)
			}
			return a.printResult(&output.Result{
				Success:     true,
				Message:     res.Message,
				Destination: res.Destination,
				Data: map[string]string{
					"size":   res.Size,
					"source": res.Source,
					"target": res.Target,
				},
			})
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "Delivery target: local or remote (default DELIVERY_TARGET)")
	return cmd
}

func newDeployCmd(a *app) *cobra.Command {
	var branch string
	cmd := &cobra.Command{
		Use:   "deploy <repository-url> <project-name>",
		Short: "Clone a repository and set it up for GitHub Pages",
		Long: `Clone a repository into <destination>/<project-name>, add a GitHub Pages
workflow, set the package homepage and push the change.

Commands run on the remote host when REMOTE_HOST is set, otherwise on this
machine under LOCAL_DESTINATION.

Examples:
  gitdrop deploy https://github.com/acme/site site
  gitdrop deploy --branch gh-pages https://github.com/acme/site site`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := service.DeployRequest{URL: args[0], Project: args[1], Branch: branch}
			res, err := a.service().CloneAndDeploy(cmd.Context(), req, a.progress())
			if err != nil {
				return a.printError(err)
			}
			return a.printResult(&output.Result{
				Success:     true,
				Message:     res.Message,
				Destination: res.Destination,
				URL:         res.URL,
			})
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "", "Branch to clone and deploy from (default DEPLOY_BRANCH)")
	return cmd
}

// progress prints step transitions to stderr in text mode.
func (a *app) progress() deploy.Observer {
	if a.outputFormat != string(output.FormatText) {
		return nil
	}
	return func(e deploy.Event) {
		if e.Status == deploy.StatusRunning {
			return
		}
		line := fmt.Sprintf("[%d/%d] %s: %s", e.Index+1, e.Total, e.Step, e.Status)
		if e.Stderr != "" && e.Status != deploy.StatusOK {
			line += " (" + strings.TrimSpace(e.Stderr) + ")"
		}
		fmt.Fprintln(a.stderr, line)
	}
}

func newCheckCmd(a *app) *cobra.Command {
	var remote, show bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and optionally check the remote host",
		Long: `Validate configuration. With --show, print the value in effect for every
setting. With --remote, open an SSH session and run the diagnostic pass
(list, write check, mkdir) against REMOTE_DESTINATION.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.formatter.PrintValidation(output.FromValidation(a.settingsErr)); err != nil {
				return err
			}
			if a.settingsErr != nil {
				return &ExitCodeError{Code: 2}
			}
			if show {
				if err := a.printResult(&output.Result{Success: true, Message: "Effective settings", Data: a.config.Effective()}); err != nil {
					return err
				}
			}
			if !remote {
				return nil
			}

			checks, err := a.service().CheckRemote(cmd.Context())
			if err != nil {
				return a.printResult(&output.Result{Error: "Failed to open remote session", Details: err.Error()})
			}
			return a.printResult(output.FromChecks(checks))
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Open a session and run remote diagnostics")
	cmd.Flags().BoolVar(&show, "show", false, "Print the effective settings")
	return cmd
}
