package deploy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mfittko/gitdrop/internal/remote"
)

// Policy decides what a non-zero exit status of a step means for the plan.
type Policy int

const (
	// HardFail stops the plan at this step.
	HardFail Policy = iota
	// SoftFail logs the failure and continues with the next step.
	SoftFail
)

func (p Policy) String() string {
	if p == SoftFail {
		return "soft"
	}
	return "hard"
}

// Step is a single shell command in a Plan.
type Step struct {
	Name    string
	Command string
	Policy  Policy
}

// Plan is an ordered list of steps run over one Runner.
type Plan struct {
	Steps []Step
}

// Status is the state reported for a step in an Event.
type Status string

const (
	StatusRunning Status = "running"
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusFailed  Status = "failed"
)

// Event reports progress of a plan, one per step transition.
type Event struct {
	Index      int    `json:"index"`
	Total      int    `json:"total"`
	Step       string `json:"step"`
	Status     Status `json:"status"`
	ExitStatus int    `json:"exit_status,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
}

// Observer receives plan events. It is called synchronously.
type Observer func(Event)

// CommandStepError reports the step that halted a plan.
type CommandStepError struct {
	Step       string
	Index      int
	ExitStatus int
	Stderr     string
	Stdout     string
	// Err is set when the step could not be run at all.
	Err error
}

func (e *CommandStepError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("step %d (%s) could not run: %v", e.Index+1, e.Step, e.Err)
	}
	return fmt.Sprintf("step %d (%s) failed with exit status %d: %s", e.Index+1, e.Step, e.ExitStatus, e.Detail())
}

func (e *CommandStepError) Unwrap() error { return e.Err }

// Detail returns the transport error text or the output of the failed
// command. Some tools report failures on stdout only.
func (e *CommandStepError) Detail() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return failureOutput(remote.CommandResult{ExitStatus: e.ExitStatus, Stdout: e.Stdout, Stderr: e.Stderr})
}

func failureOutput(res remote.CommandResult) string {
	if out := strings.TrimSpace(res.Stderr); out != "" {
		return out
	}
	if out := strings.TrimSpace(res.Stdout); out != "" {
		return out
	}
	return fmt.Sprintf("exit status %d", res.ExitStatus)
}

// Execute runs the steps in order and stops at the first hard failure. It
// returns the number of steps that ran. Already applied steps are not
// rolled back.
func (p Plan) Execute(ctx context.Context, r remote.Runner, observe Observer, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if observe == nil {
		observe = func(Event) {}
	}
	total := len(p.Steps)

	for i, step := range p.Steps {
		observe(Event{Index: i, Total: total, Step: step.Name, Status: StatusRunning})
		logger.Info("Running step", "index", i+1, "total", total, "step", step.Name)

		res, err := r.Run(ctx, step.Command)
		if err != nil {
			logger.Error("Step could not run", "step", step.Name, "error", err)
			observe(Event{Index: i, Total: total, Step: step.Name, Status: StatusFailed, Stderr: err.Error()})
			return i + 1, &CommandStepError{Step: step.Name, Index: i, Err: err}
		}

		if !res.Success() {
			output := failureOutput(res)
			if step.Policy == SoftFail {
				logger.Warn("Step failed, continuing", "step", step.Name, "exit_status", res.ExitStatus, "output", output)
				observe(Event{Index: i, Total: total, Step: step.Name, Status: StatusWarning, ExitStatus: res.ExitStatus, Stderr: output})
				continue
			}
			logger.Error("Step failed", "step", step.Name, "exit_status", res.ExitStatus, "output", output)
			observe(Event{Index: i, Total: total, Step: step.Name, Status: StatusFailed, ExitStatus: res.ExitStatus, Stderr: output})
			return i + 1, &CommandStepError{Step: step.Name, Index: i, ExitStatus: res.ExitStatus, Stderr: res.Stderr, Stdout: res.Stdout}
		}

		observe(Event{Index: i, Total: total, Step: step.Name, Status: StatusOK})
	}

	return total, nil
}
