package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mfittko/gitdrop/internal/config"
	"github.com/mfittko/gitdrop/internal/deliver"
	"github.com/mfittko/gitdrop/internal/deploy"
	"github.com/mfittko/gitdrop/internal/executor"
	"github.com/mfittko/gitdrop/internal/fetch"
	"github.com/mfittko/gitdrop/internal/logging"
	"github.com/mfittko/gitdrop/internal/remote"
	"github.com/mfittko/gitdrop/internal/source"
	"github.com/mfittko/gitdrop/internal/validation"
)

// Target places an artifact somewhere.
type Target interface {
	Deliver(ctx context.Context, art deliver.Artifact) deliver.Result
	Dir() string
}

// RunnerFunc returns a runner for deployment commands rooted at dir.
type RunnerFunc func(dir string) (remote.Runner, error)

// Service wires URL resolution, fetching, delivery and deployment.
type Service struct {
	settings config.Settings
	logger   *slog.Logger

	httpClient  *http.Client
	fetcher     *fetch.Client
	open        deliver.OpenFunc
	localRunner RunnerFunc

	local    Target
	remote   Target
	deployer *deploy.Orchestrator
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient sets the client used to fetch content.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

// WithRemote replaces how remote sessions are opened.
func WithRemote(open deliver.OpenFunc) Option {
	return func(s *Service) { s.open = open }
}

// WithLocalRunner replaces the runner used for local deployments.
func WithLocalRunner(fn RunnerFunc) Option {
	return func(s *Service) { s.localRunner = fn }
}

// New builds a Service from settings.
func New(settings config.Settings, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Service{settings: settings, logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: settings.FetchTimeout}
	}
	if s.open == nil && settings.Remote.Enabled() {
		s.open = sessionOpener(settings.Remote, logger)
	}
	if s.localRunner == nil {
		s.localRunner = func(dir string) (remote.Runner, error) {
			exec, err := executor.New(dir)
			if err != nil {
				return nil, err
			}
			return exec, nil
		}
	}

	s.fetcher = fetch.New(s.httpClient, settings.FetchMaxBytes, logger.With("component", "fetch"))
	s.local = deliver.NewLocalTarget(settings.LocalDestination, logger.With("component", "local"))
	if s.open != nil {
		s.remote = deliver.NewRemoteTarget(s.open, settings.Remote.Destination, logger.With("component", "remote"))
	}
	s.deployer = deploy.New(logger.With("component", "deploy"))
	return s
}

// Settings returns the settings the service was built with.
func (s *Service) Settings() config.Settings { return s.settings }

// RemoteConfig converts remote settings into a session config.
func RemoteConfig(r config.RemoteSettings) *remote.Config {
	cfg := remote.NewConfig(r.Host)
	if r.Port != 0 {
		cfg.Port = r.Port
	}
	if r.User != "" {
		cfg.User = r.User
	}
	if r.Timeout > 0 {
		cfg.Timeout = r.Timeout
	}
	cfg.KnownHostsPath = r.KnownHosts
	cfg.Credentials = remote.Credentials{KeyPath: r.KeyPath, Password: r.Password}
	return cfg
}

func sessionOpener(r config.RemoteSettings, logger *slog.Logger) deliver.OpenFunc {
	cfg := RemoteConfig(r)
	return func(ctx context.Context) (remote.Client, error) {
		session, err := remote.Open(ctx, cfg, logger.With("component", "session"))
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// ProcessRequest asks for one file to be fetched and delivered.
type ProcessRequest struct {
	URL    string `json:"github_url"`
	Target string `json:"target,omitempty"`
}

// ProcessResult describes a delivered file.
type ProcessResult struct {
	Message     string `json:"message"`
	Filename    string `json:"filename"`
	Destination string `json:"destination"`
	Size        string `json:"size"`
	Target      string `json:"target"`
	Source      string `json:"source"`
}

// ProcessFile resolves the URL to its raw form, fetches it, rejects HTML
// pages and hands the payload to the selected target.
func (s *Service) ProcessFile(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	if err := validation.RequiredWithExample("github_url", req.URL, source.ContentExample); err != nil {
		return nil, invalid("GitHub URL is required", source.ContentExample, "", err)
	}

	targetName := req.Target
	if targetName == "" {
		targetName = s.settings.DeliveryTarget
	}
	if err := validation.OneOf("target", targetName, []string{config.TargetLocal, config.TargetRemote}); err != nil {
		return nil, fromValidation(err, targetName)
	}
	target := s.local
	if targetName == config.TargetRemote {
		if s.remote == nil {
			return nil, invalid("Remote delivery is not configured", "", targetName,
				validation.Required(config.KeyRemoteHost, ""))
		}
		target = s.remote
	}

	logger := s.logger.With("url", req.URL, "target", targetName, "dir", target.Dir())
	logger.Info("Processing GitHub URL")

	rawURL, err := source.ResolveContent(req.URL)
	if err != nil {
		logger.Warn("Cannot resolve URL", "error", err)
		return nil, fromResolution(err, req.URL)
	}

	resp, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		logger.Error("Fetch failed", "raw_url", rawURL, "error", err)
		return nil, fromFetch(err)
	}
	if err := fetch.CheckIntegrity(resp); err != nil {
		logger.Error("Content looks like an HTML page", "raw_url", rawURL, "content_type", resp.ContentType)
		e := fromFetch(err)
		e.Provided = req.URL
		return nil, e
	}

	filename, err := fetch.Filename(rawURL)
	if err != nil {
		return nil, invalid(err.Error(), source.ContentExample, req.URL, err)
	}

	art := deliver.Artifact{
		Payload:  resp.Body,
		Binary:   fetch.IsBinary(resp.ContentType),
		Filename: filename,
	}
	res := target.Deliver(ctx, art)
	if !res.Success {
		return nil, &Error{Message: res.Message, Details: res.Detail, Err: res.Err}
	}

	return &ProcessResult{
		Message:     res.Message,
		Filename:    filename,
		Destination: res.Destination,
		Size:        art.Size(),
		Target:      targetName,
		Source:      rawURL,
	}, nil
}

// DeployRequest asks for a repository to be cloned and prepared for Pages.
type DeployRequest struct {
	URL     string `json:"github_url"`
	Project string `json:"project_name"`
	Branch  string `json:"branch,omitempty"`
}

// DeployResult describes a finished deployment.
type DeployResult struct {
	Message     string `json:"message"`
	URL         string `json:"deployment_url"`
	Details     string `json:"details"`
	Destination string `json:"destination"`
}

// CloneAndDeploy clones the repository into the project directory, adds
// the Pages workflow and pushes it. Commands run on the remote host when
// one is configured, otherwise on this machine. observe may be nil.
func (s *Service) CloneAndDeploy(ctx context.Context, req DeployRequest, observe deploy.Observer) (*DeployResult, error) {
	if req.URL == "" || req.Project == "" {
		return nil, invalid("GitHub URL and project name are required", source.RepositoryExample, "", nil)
	}
	if err := validation.ProjectName("project_name", req.Project); err != nil {
		return nil, fromValidation(err, req.Project)
	}
	if err := validation.BranchName("branch", req.Branch); err != nil {
		return nil, fromValidation(err, req.Branch)
	}
	repo, err := source.ResolveRepository(req.URL)
	if err != nil {
		return nil, fromResolution(err, req.URL)
	}

	branch := req.Branch
	if branch == "" {
		branch = s.settings.DeployBranch
	}

	runner, root, closeRunner, err := s.deployRunner(ctx)
	if err != nil {
		return nil, err
	}
	defer closeRunner()

	res := s.deployer.Deploy(ctx, deploy.Request{Repository: repo, Project: req.Project, Branch: branch}, runner, root, observe)
	if !res.Success {
		return nil, &Error{Message: res.Message, Details: res.Detail, Err: res.Err}
	}

	return &DeployResult{
		Message:     "Repository cloned successfully",
		URL:         res.URL,
		Details:     res.Detail,
		Destination: res.Destination,
	}, nil
}

func (s *Service) deployRunner(ctx context.Context) (remote.Runner, string, func(), error) {
	if s.open != nil {
		client, err := s.open(ctx)
		if err != nil {
			s.logger.Error("Failed to open remote session", "error", err)
			return nil, "", nil, &Error{Message: "Failed to connect to remote host", Details: err.Error(), Err: err}
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				s.logger.Warn("Failed to close remote session", "error", err)
			}
		}
		return client, s.settings.Remote.Destination, closeFn, nil
	}

	root := s.settings.LocalDestination
	runner, err := s.localRunner(root)
	if err != nil {
		return nil, "", nil, &Error{Message: "Failed to prepare local runner", Details: err.Error(), Err: err}
	}
	return runner, root, func() {}, nil
}

// CheckRemote opens a session and runs the diagnostic pass against the
// remote destination.
func (s *Service) CheckRemote(ctx context.Context) ([]remote.Check, error) {
	if s.open == nil {
		return nil, fmt.Errorf("remote host is not configured: set %s", config.KeyRemoteHost)
	}
	client, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	return remote.Diagnose(ctx, client, s.settings.Remote.Destination, s.logger), nil
}
