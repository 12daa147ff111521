package remote

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/pkg/sftp"
	gossh "golang.org/x/crypto/ssh"
)

// testServer is an in-process SSH server that runs commands with sh -c and
// serves the sftp subsystem from the local filesystem.
type testServer struct {
	addr             string
	passwordAttempts atomic.Int32
}

func startTestServer(t *testing.T, password string, authorized ...gossh.PublicKey) *testServer {
	t.Helper()

	_, hostKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate host key: %v", err)
	}
	hostPEM, err := gossh.MarshalPrivateKey(hostKey, "")
	if err != nil {
		t.Fatalf("failed to marshal host key: %v", err)
	}

	ts := &testServer{}
	srv, err := wish.NewServer(
		wish.WithHostKeyPEM(pem.EncodeToMemory(hostPEM)),
		wish.WithPasswordAuth(func(_ ssh.Context, pw string) bool {
			ts.passwordAttempts.Add(1)
			return password != "" && pw == password
		}),
		wish.WithPublicKeyAuth(func(_ ssh.Context, key ssh.PublicKey) bool {
			for _, k := range authorized {
				if ssh.KeysEqual(key, k) {
					return true
				}
			}
			return false
		}),
		wish.WithSubsystem("sftp", sftpHandler),
		wish.WithMiddleware(execMiddleware),
	)
	if err != nil {
		t.Fatalf("failed to create SSH server: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	ts.addr = ln.Addr().String()
	return ts
}

func (ts *testServer) config(t *testing.T, creds Credentials) *Config {
	t.Helper()
	host, port, err := net.SplitHostPort(ts.addr)
	if err != nil {
		t.Fatalf("bad address %q: %v", ts.addr, err)
	}
	cfg := NewConfig(host)
	cfg.Port, err = strconv.Atoi(port)
	if err != nil {
		t.Fatalf("bad port %q: %v", port, err)
	}
	cfg.User = "deploy"
	cfg.Credentials = creds
	cfg.Timeout = 5 * time.Second
	return cfg
}

func execMiddleware(next ssh.Handler) ssh.Handler {
	return func(s ssh.Session) {
		cmd := exec.Command("sh", "-c", s.RawCommand())
		cmd.Stdout = s
		cmd.Stderr = s.Stderr()
		code := 0
		if err := cmd.Run(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			} else {
				code = 255
			}
		}
		_ = s.Exit(code)
	}
}

func sftpHandler(s ssh.Session) {
	server, err := sftp.NewServer(s)
	if err != nil {
		return
	}
	if err := server.Serve(); err == io.EOF {
		_ = server.Close()
	}
}

func writeRSAKey(t *testing.T, dir string) (string, gossh.PublicKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	path := filepath.Join(dir, "id_rsa")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("failed to write key: %v", err)
	}
	pub, err := gossh.NewPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("failed to derive public key: %v", err)
	}
	return path, pub
}

func writeEd25519Key(t *testing.T, dir string) (string, gossh.PublicKey) {
	t.Helper()
	pubRaw, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate Ed25519 key: %v", err)
	}
	block, err := gossh.MarshalPrivateKey(key, "")
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}
	path := filepath.Join(dir, "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("failed to write key: %v", err)
	}
	pub, err := gossh.NewPublicKey(pubRaw)
	if err != nil {
		t.Fatalf("failed to derive public key: %v", err)
	}
	return path, pub
}

// countDials wraps dialSSH and records every connection attempt.
func countDials(t *testing.T) *atomic.Int32 {
	t.Helper()
	var n atomic.Int32
	old := dialSSH
	dialSSH = func(ctx context.Context, addr string, cfg *gossh.ClientConfig) (*gossh.Client, error) {
		n.Add(1)
		return old(ctx, addr, cfg)
	}
	t.Cleanup(func() { dialSSH = old })
	return &n
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
