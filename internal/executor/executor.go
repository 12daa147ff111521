package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/mfittko/gitdrop/internal/remote"
)

// Executor runs shell commands on this machine. It satisfies remote.Runner
// so deployment plans can run locally when no remote host is configured.
type Executor struct {
	shell string
	dir   string
	env   []string
}

var _ remote.Runner = (*Executor)(nil)

// New creates a new Executor that runs commands with sh -c inside dir.
func New(dir string) (*Executor, error) {
	if dir == "" {
		currentDir, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		dir = currentDir
	}

	shell, err := exec.LookPath("sh")
	if err != nil {
		return nil, fmt.Errorf("failed to find a shell: %w", err)
	}

	return &Executor{
		shell: shell,
		dir:   dir,
		env:   os.Environ(),
	}, nil
}

// Dir returns the working directory for commands.
func (e *Executor) Dir() string { return e.dir }

// Run executes command and captures its output. A non-zero exit status is
// reported in the result, not as an error.
func (e *Executor) Run(ctx context.Context, command string) (remote.CommandResult, error) {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return remote.CommandResult{}, fmt.Errorf("failed to create working directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.shell, "-c", command)
	cmd.Dir = e.dir
	cmd.Env = e.env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := remote.CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			// Preserve the exit code from the command
			res.ExitStatus = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("failed to execute command: %w", err)
	}

	return res, nil
}
