package deliver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/mfittko/gitdrop/internal/remote"
)

// OpenFunc opens a new remote session. Each call must return a session
// that the caller owns exclusively.
type OpenFunc func(ctx context.Context) (remote.Client, error)

// RemoteTarget places artifacts in a directory on a remote host.
type RemoteTarget struct {
	open   OpenFunc
	dir    string
	logger *slog.Logger
}

// NewRemoteTarget creates a RemoteTarget that opens a fresh session per
// delivery and uploads into dir.
func NewRemoteTarget(open OpenFunc, dir string, logger *slog.Logger) *RemoteTarget {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RemoteTarget{open: open, dir: dir, logger: logger}
}

// Dir returns the remote destination directory.
func (t *RemoteTarget) Dir() string { return t.dir }

// Deliver stages the artifact in a local temp file, runs the advisory
// diagnostic pass and uploads the file. Only the upload decides the
// result. The temp file is removed and the session closed on every path.
func (t *RemoteTarget) Deliver(ctx context.Context, art Artifact) Result {
	if err := art.Validate(); err != nil {
		return Failed("Invalid artifact", err)
	}

	tmpPath, err := stageTemp(art)
	if err != nil {
		t.logger.Error("Failed to stage temp file", "error", err)
		return Failed("Error preparing file for transfer", &LocalWriteError{Path: tmpPath, Err: err})
	}
	defer func() {
		if err := removeFile(tmpPath); err != nil {
			t.logger.Warn("Failed to remove temp file", "path", tmpPath, "error", err)
		}
	}()

	client, err := t.open(ctx)
	if err != nil {
		t.logger.Error("Failed to open remote session", "error", err)
		return Failed("Failed to connect to remote host", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			t.logger.Warn("Failed to close remote session", "error", err)
		}
	}()

	checks := remote.Diagnose(ctx, client, t.dir, t.logger)

	dest := path.Join(t.dir, art.Filename)
	t.logger.Info("Transferring file", "local", tmpPath, "remote", dest, "mode", art.Mode(), "size", art.Size())
	if err := client.Put(ctx, tmpPath, dest); err != nil {
		t.logger.Error("Transfer failed", "remote", dest, "error", err)
		res := Failed(fmt.Sprintf("Failed to transfer %s to remote destination", art.Filename), err)
		if notes := failedChecks(checks); notes != "" {
			res.Detail += "\ndiagnostics: " + notes
		}
		return res
	}

	t.logger.Info("File transferred", "remote", dest)
	return Succeeded(fmt.Sprintf("Successfully transferred %s to remote destination", art.Filename), dest)
}

func stageTemp(art Artifact) (string, error) {
	f, err := createTemp("", "gitdrop-*-"+art.Filename)
	if err != nil {
		return "", err
	}
	name := f.Name()

	_, werr := f.Write(art.Payload)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = removeFile(name)
		return name, werr
	}
	return name, nil
}

func failedChecks(checks []remote.Check) string {
	var notes []string
	for _, c := range checks {
		if !c.OK() {
			notes = append(notes, c.Summary())
		}
	}
	return strings.Join(notes, "; ")
}
