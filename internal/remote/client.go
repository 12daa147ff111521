package remote

import "context"

// CommandResult is the outcome of one shell command.
type CommandResult struct {
	ExitStatus int
	Stdout     string
	Stderr     string
}

// Success reports a zero exit status.
func (r CommandResult) Success() bool { return r.ExitStatus == 0 }

// Runner executes shell commands. A non-zero exit status is not an error;
// the error return is reserved for transport failures.
type Runner interface {
	Run(ctx context.Context, command string) (CommandResult, error)
}

// Client is the minimal interface needed by the delivery and deployment code.
// It allows unit tests to provide fakes without a real SSH server.
type Client interface {
	Runner

	// Put copies a local file to remotePath over the file-transfer channel.
	Put(ctx context.Context, localPath, remotePath string) error

	// Close releases the file-transfer channel, then the transport. It is
	// safe to call more than once.
	Close() error
}
