package deliver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// LocalTarget writes artifacts into a directory on this machine.
type LocalTarget struct {
	dir    string
	logger *slog.Logger
}

// NewLocalTarget creates a LocalTarget rooted at dir.
func NewLocalTarget(dir string, logger *slog.Logger) *LocalTarget {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LocalTarget{dir: dir, logger: logger}
}

// Dir returns the destination directory.
func (t *LocalTarget) Dir() string { return t.dir }

// Deliver creates the destination directory if needed and writes the
// artifact to dir/filename, replacing any existing file.
func (t *LocalTarget) Deliver(_ context.Context, art Artifact) Result {
	if err := art.Validate(); err != nil {
		return Failed("Invalid artifact", err)
	}

	if err := os.MkdirAll(t.dir, 0755); err != nil {
		t.logger.Error("Failed to create destination directory", "dir", t.dir, "error", err)
		return Failed("Error saving file locally", &LocalWriteError{Path: t.dir, Err: err})
	}

	dest := filepath.Join(t.dir, art.Filename)
	t.logger.Info("Saving file", "destination", dest, "mode", art.Mode(), "size", art.Size())

	if err := writeArtifact(dest, art); err != nil {
		t.logger.Error("Failed to save file", "destination", dest, "error", err)
		return Failed("Error saving file locally", &LocalWriteError{Path: dest, Err: err})
	}

	t.logger.Info("File saved", "destination", dest)
	return Succeeded(fmt.Sprintf("Successfully saved %s to local destination", art.Filename), dest)
}

// writeArtifact stores the payload byte for byte. Text and binary
// artifacts differ only in the mode that is logged.
func writeArtifact(dest string, art Artifact) error {
	return os.WriteFile(dest, art.Payload, 0644)
}
