package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Session is an authenticated SSH connection plus a lazily opened SFTP
// channel. A Session is owned by the operation that opened it and must not
// be shared.
type Session struct {
	client *ssh.Client
	method Method
	logger *slog.Logger

	mu        sync.Mutex
	sftp      *sftp.Client
	closeOnce sync.Once
	closeErr  error
}

var _ Client = (*Session)(nil)

func newSession(client *ssh.Client, method Method, logger *slog.Logger) *Session {
	return &Session{client: client, method: method, logger: logger}
}

// Method returns the authentication method that opened the session.
func (s *Session) Method() Method { return s.method }

// Run executes command on the remote host and waits for it to finish.
func (s *Session) Run(ctx context.Context, command string) (CommandResult, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return CommandResult{}, fmt.Errorf("failed to open SSH session: %w", err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			sess.Close()
		case <-done:
		}
	}()

	err = sess.Run(command)
	res := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		res.ExitStatus = exitErr.ExitStatus()
		return res, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, fmt.Errorf("remote command failed: %w", err)
	}
	return res, nil
}

// Put uploads localPath to remotePath. The bytes are written to a
// temporary name next to remotePath and renamed into place once complete.
func (s *Session) Put(ctx context.Context, localPath, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return &TransferError{LocalPath: localPath, RemotePath: remotePath, Err: err}
	}

	sc, err := s.sftpClient()
	if err != nil {
		return &TransferError{LocalPath: localPath, RemotePath: remotePath, Err: err}
	}

	src, err := os.Open(localPath)
	if err != nil {
		return &TransferError{LocalPath: localPath, RemotePath: remotePath, Err: err}
	}
	defer src.Close()

	partial := path.Join(path.Dir(remotePath), "."+path.Base(remotePath)+"."+uuid.NewString()[:8]+".part")
	dst, err := sc.Create(partial)
	if err != nil {
		return &TransferError{LocalPath: localPath, RemotePath: remotePath, Err: err}
	}

	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = sc.Remove(partial)
		return &TransferError{LocalPath: localPath, RemotePath: remotePath, Err: err}
	}

	if err := replaceFile(sc, partial, remotePath); err != nil {
		return &TransferError{LocalPath: localPath, RemotePath: remotePath, Err: err}
	}

	s.logger.Debug("Transferred file", "remote_path", remotePath, "bytes", n)
	return nil
}

// renamer is the part of *sftp.Client used to move an upload into place.
type renamer interface {
	PosixRename(oldname, newname string) error
	Rename(oldname, newname string) error
	Remove(path string) error
}

// replaceFile moves partial to remotePath. Servers without the
// posix-rename extension refuse to overwrite, so an existing file is moved
// aside first and put back if the final rename fails.
func replaceFile(fs renamer, partial, remotePath string) error {
	if err := fs.PosixRename(partial, remotePath); err == nil {
		return nil
	}

	backup := partial + ".old"
	movedAside := fs.Rename(remotePath, backup) == nil
	if err := fs.Rename(partial, remotePath); err != nil {
		if movedAside {
			_ = fs.Rename(backup, remotePath)
		}
		_ = fs.Remove(partial)
		return err
	}
	if movedAside {
		_ = fs.Remove(backup)
	}
	return nil
}

// Close releases the SFTP channel and then the SSH transport.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		var errs []error
		if s.sftp != nil {
			if err := s.sftp.Close(); err != nil {
				errs = append(errs, err)
			}
			s.sftp = nil
		}
		if err := s.client.Close(); err != nil && !errors.Is(err, io.EOF) && !strings.Contains(err.Error(), "use of closed network connection") {
			errs = append(errs, err)
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

func (s *Session) sftpClient() (*sftp.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sftp != nil {
		return s.sftp, nil
	}
	sc, err := newSFTP(s.client)
	if err != nil {
		return nil, fmt.Errorf("failed to open SFTP channel: %w", err)
	}
	s.sftp = sc
	return sc, nil
}

// ShellEscape quotes s for safe use as a single word in a POSIX shell.
func ShellEscape(s string) string {
	// Use single quotes for simplicity and safety
	// Replace any single quotes in the string with '\''
	escaped := strings.ReplaceAll(s, "'", "'\\''")
	return fmt.Sprintf("'%s'", escaped)
}
