package remote

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Injection points for unit tests. Centralized here so dependencies like `dialSSH`
// are explicit across files in this package (e.g. used by auth.go, session.go).
var (
	readFile = os.ReadFile

	dialSSH = func(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
		d := net.Dialer{Timeout: cfg.Timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}

		// The handshake shares the attempt's deadline.
		if cfg.Timeout > 0 {
			_ = conn.SetDeadline(time.Now().Add(cfg.Timeout))
		}
		c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
		if err != nil {
			conn.Close()
			return nil, err
		}
		_ = conn.SetDeadline(time.Time{})

		return ssh.NewClient(c, chans, reqs), nil
	}

	newSFTP = func(c *ssh.Client) (*sftp.Client, error) {
		return sftp.NewClient(c)
	}
)
