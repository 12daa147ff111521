package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mfittko/gitdrop/internal/config"
	"github.com/mfittko/gitdrop/internal/logging"
	"github.com/mfittko/gitdrop/internal/output"
	"github.com/mfittko/gitdrop/internal/service"
)

var version = "dev"

// defaultConfigFiles are tried in order when --config is not given.
var defaultConfigFiles = []string{"gitdrop.toml", ".env"}

// ExitCodeError ends the process with Code. The command has already
// reported the failure on its output.
type ExitCodeError struct {
	Code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// app holds the state shared by all subcommands of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// Global flags
	configFile   string
	outputFormat string
	logLevel     string
	logFormat    string

	config      *config.Config
	settings    config.Settings
	settingsErr error
	logger      *slog.Logger
	formatter   *output.Formatter

	// serviceOptions are appended when building the service.
	serviceOptions []service.Option
}

func main() {
	root := newRootCmd(&app{stdout: os.Stdout, stderr: os.Stderr})
	if err := root.Execute(); err != nil {
		var exitErr *ExitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "gitdrop",
		Short: "Fetch files from GitHub and deliver them, or deploy repositories to GitHub Pages",
		Long: `gitdrop resolves GitHub file URLs to their raw form, fetches the content
and delivers it to a local directory or, over SSH, to a remote host.

It can also clone a repository, add a GitHub Pages workflow and push it,
either on this machine or on the configured remote host.

Configuration is read from flags, then the environment, then a settings
file (gitdrop.toml or .env in the working directory by default).`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "Path to a settings file (.toml or dotenv)")
	root.PersistentFlags().StringVarP(&a.outputFormat, "output", "o", "text", "Output format: text or json")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: text or json")

	root.AddCommand(
		newServeCmd(a),
		newResolveCmd(a),
		newFetchCmd(a),
		newDeployCmd(a),
		newCheckCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup loads configuration in precedence order: flags, then the process
// environment, then the settings file. Lower sources never override.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	format, err := output.ParseFormat(a.outputFormat)
	if err != nil {
		return err
	}
	a.formatter = output.New(format)
	a.formatter.SetWriter(a.stdout)

	cfg := config.New()
	cfg.SetFlag(config.KeyLogLevel, a.logLevel)
	cfg.SetFlag(config.KeyLogFormat, a.logFormat)
	cfg.LoadFromEnvironment()

	configFile := a.configFile
	if configFile == "" {
		for _, candidate := range defaultConfigFiles {
			if _, err := os.Stat(candidate); err == nil {
				configFile = candidate
				break
			}
		}
	} else if _, err := os.Stat(configFile); err != nil {
		return fmt.Errorf("failed to load settings file: %w", err)
	}
	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return fmt.Errorf("failed to load settings file: %w", err)
		}
	}

	a.config = cfg
	a.settings, a.settingsErr = cfg.Settings()

	level, logFormat := a.settings.LogLevel, a.settings.LogFormat
	if a.settingsErr != nil {
		level, logFormat = "info", "text"
	}
	if a.logger, err = logging.New(level, logFormat, a.stderr); err != nil {
		a.logger = logging.Discard()
	}

	// check reports validation problems itself.
	if a.settingsErr != nil && cmd.Name() != "check" {
		_ = a.formatter.PrintValidation(output.FromValidation(a.settingsErr))
		return &ExitCodeError{Code: 2}
	}
	return nil
}

func (a *app) service() *service.Service {
	return service.New(a.settings, a.logger, a.serviceOptions...)
}

// printResult writes res and turns a failed result into an exit code.
func (a *app) printResult(res *output.Result) error {
	if err := a.formatter.Print(res); err != nil {
		return err
	}
	if !res.Success {
		return &ExitCodeError{Code: 1}
	}
	return nil
}

// printError reports a service failure with its example and details.
func (a *app) printError(err error) error {
	res := &output.Result{Error: err.Error()}
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		res.Error = svcErr.Message
		res.Details = svcErr.Details
		res.Data = map[string]string{}
		if svcErr.Example != "" {
			res.Data["example"] = svcErr.Example
		}
		if svcErr.Provided != "" {
			res.Data["provided"] = svcErr.Provided
		}
	}
	return a.printResult(res)
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printResult(&output.Result{Success: true, Message: "gitdrop " + version})
		},
	}
}
