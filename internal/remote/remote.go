package remote

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	defaultUser    = "ubuntu"
	defaultPort    = 22
	defaultTimeout = 10 * time.Second
)

// Config holds the connection settings for one remote host
type Config struct {
	Host string
	Port int
	User string

	Credentials Credentials

	// KnownHostsPath enables host key verification. When empty any host
	// key is accepted.
	KnownHostsPath string

	// Timeout bounds each connection attempt.
	Timeout time.Duration
}

// NewConfig creates a new remote config with defaults
func NewConfig(host string) *Config {
	return &Config{
		Host:    host,
		Port:    defaultPort,
		User:    defaultUser,
		Timeout: defaultTimeout,
	}
}

// Address returns host:port
func (c *Config) Address() string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// Target returns user@host for display
func (c *Config) Target() string {
	return fmt.Sprintf("%s@%s", c.user(), c.Host)
}

func (c *Config) user() string {
	if c.User == "" {
		return defaultUser
	}
	return c.User
}

func (c *Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

func (c *Config) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if c.KnownHostsPath == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(c.KnownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts %s: %w", c.KnownHostsPath, err)
	}
	return cb, nil
}

func (c *Config) clientConfig(auth ssh.AuthMethod, hostKeys ssh.HostKeyCallback) *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User:            c.user(),
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeys,
		Timeout:         c.timeout(),
	}
}
