package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Check is the outcome of one advisory diagnostic command.
type Check struct {
	Name    string
	Command string
	Result  CommandResult
	Err     error
}

// OK reports whether the command ran and exited zero.
func (c Check) OK() bool {
	return c.Err == nil && c.Result.Success()
}

// Summary is a one-line description of the check for logs and CLI output.
func (c Check) Summary() string {
	switch {
	case c.Err != nil:
		return fmt.Sprintf("%s: error: %v", c.Name, c.Err)
	case !c.Result.Success():
		return fmt.Sprintf("%s: exit %d: %s", c.Name, c.Result.ExitStatus, strings.TrimSpace(c.Result.Stderr))
	default:
		return fmt.Sprintf("%s: ok", c.Name)
	}
}

// Diagnose runs the pre-flight pass for dir: list it, check write
// permission with a marker file, and create it if missing. Failures are
// logged and returned but never abort the pass.
func Diagnose(ctx context.Context, r Runner, dir string, logger *slog.Logger) []Check {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	marker := path.Join(dir, ".gitdrop-write-test-"+uuid.NewString())
	steps := []struct {
		name    string
		command string
	}{
		{name: "list", command: "ls -la " + ShellEscape(dir)},
		{name: "write-check", command: fmt.Sprintf("touch %s && rm -f %s", ShellEscape(marker), ShellEscape(marker))},
		{name: "mkdir", command: "mkdir -p " + ShellEscape(dir)},
	}

	checks := make([]Check, 0, len(steps))
	for _, step := range steps {
		res, err := r.Run(ctx, step.command)
		check := Check{Name: step.name, Command: step.command, Result: res, Err: err}
		if check.OK() {
			logger.Debug("Diagnostic passed", "check", step.name, "dir", dir, "stdout", strings.TrimSpace(res.Stdout))
		} else {
			logger.Warn("Diagnostic failed", "check", step.name, "dir", dir, "detail", check.Summary())
		}
		checks = append(checks, check)
	}
	return checks
}
