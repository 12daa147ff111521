package deliver

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
)

// Injection points for unit tests.
var (
	createTemp = os.CreateTemp
	removeFile = os.Remove
)

// Artifact is a fetched payload ready to be written somewhere.
type Artifact struct {
	Payload  []byte
	Binary   bool
	Filename string
}

// Validate checks that the file name is a bare base name.
func (a Artifact) Validate() error {
	switch {
	case a.Filename == "", a.Filename == ".", a.Filename == "..":
		return fmt.Errorf("invalid file name %q", a.Filename)
	case strings.ContainsAny(a.Filename, `/\`):
		return fmt.Errorf("file name %q must not contain path separators", a.Filename)
	}
	return nil
}

// Mode names the write mode used for the artifact.
func (a Artifact) Mode() string {
	if a.Binary {
		return "binary"
	}
	return "text"
}

// Size returns the payload size in human readable form.
func (a Artifact) Size() string {
	return humanize.Bytes(uint64(len(a.Payload)))
}

// Result is the terminal outcome of a delivery or deployment.
type Result struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Detail      string `json:"detail,omitempty"`
	Destination string `json:"destination,omitempty"`
	URL         string `json:"url,omitempty"`

	// Err is the underlying cause of a failure, for errors.Is/As checks.
	Err error `json:"-"`
}

// Succeeded builds a successful Result.
func Succeeded(message, destination string) Result {
	return Result{Success: true, Message: message, Destination: destination}
}

// Failed builds a failed Result carrying err's text as detail.
func Failed(message string, err error) Result {
	r := Result{Message: message, Err: err}
	if err != nil {
		r.Detail = err.Error()
	}
	return r
}

// LocalWriteError reports a filesystem failure on the local destination.
type LocalWriteError struct {
	Path string
	Err  error
}

func (e *LocalWriteError) Error() string {
	return fmt.Sprintf("error saving file locally to %s: %v", e.Path, e.Err)
}

func (e *LocalWriteError) Unwrap() error { return e.Err }
