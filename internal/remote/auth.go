package remote

import (
	"context"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/crypto/ssh"
)

// Credentials are the optional secrets available for a host. Either field
// may be empty; empty fields narrow the fallback chain.
type Credentials struct {
	KeyPath  string
	Password string
}

// Method identifies one authentication strategy.
type Method string

const (
	MethodKeyRSA     Method = "key-rsa"
	MethodKeyEd25519 Method = "key-ed25519"
	MethodPassword   Method = "password"
)

// strategy produces the ssh.AuthMethod for one attempt. An error from
// authMethod means the strategy does not apply and no connection is made.
type strategy struct {
	method     Method
	authMethod func() (ssh.AuthMethod, error)
}

// Methods returns the ordered list of methods Open will try for c.
// Key methods always come before password, RSA before Ed25519.
func (c Credentials) Methods() []Method {
	var methods []Method
	if c.KeyPath != "" {
		methods = append(methods, MethodKeyRSA, MethodKeyEd25519)
	}
	if c.Password != "" {
		methods = append(methods, MethodPassword)
	}
	return methods
}

func (c Credentials) strategies() ([]strategy, error) {
	var out []strategy

	if c.KeyPath != "" {
		pemBytes, err := readFile(c.KeyPath)
		if errors.Is(err, os.ErrNotExist) {
			return nil, &AuthenticationError{Kind: KeyFileMissing, Err: err}
		}
		// An unreadable key fails both key strategies and leaves the
		// password strategy in place.
		if err != nil {
			err = fmt.Errorf("failed to read private key %s: %w", c.KeyPath, err)
		}
		keyStrategy := func(accept func(any) bool) func() (ssh.AuthMethod, error) {
			return func() (ssh.AuthMethod, error) {
				if err != nil {
					return nil, err
				}
				return keyAuth(pemBytes, accept)
			}
		}
		out = append(out,
			strategy{method: MethodKeyRSA, authMethod: keyStrategy(isRSA)},
			strategy{method: MethodKeyEd25519, authMethod: keyStrategy(isEd25519)},
		)
	}

	if c.Password != "" {
		password := c.Password
		out = append(out, strategy{method: MethodPassword, authMethod: func() (ssh.AuthMethod, error) {
			return ssh.Password(password), nil
		}})
	}

	return out, nil
}

func keyAuth(pemBytes []byte, accept func(any) bool) (ssh.AuthMethod, error) {
	raw, err := ssh.ParseRawPrivateKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	if !accept(raw) {
		return nil, fmt.Errorf("private key has type %T", raw)
	}
	signer, err := ssh.NewSignerFromKey(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}
	return ssh.PublicKeys(signer), nil
}

func isRSA(k any) bool {
	_, ok := k.(*rsa.PrivateKey)
	return ok
}

func isEd25519(k any) bool {
	switch k.(type) {
	case ed25519.PrivateKey, *ed25519.PrivateKey:
		return true
	}
	return false
}

// Open authenticates to the host described by cfg, trying each configured
// method in order and stopping at the first success. Every method gets a
// single attempt bounded by cfg.Timeout.
func Open(ctx context.Context, cfg *Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	target := cfg.Target()

	strategies, err := cfg.Credentials.strategies()
	if err != nil {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			authErr.Target = target
			logger.Error("Private key file missing", "target", target, "key_path", cfg.Credentials.KeyPath)
		}
		return nil, err
	}

	hostKeys, err := cfg.hostKeyCallback()
	if err != nil {
		return nil, err
	}
	logger.Debug("Opening SSH session", "target", target, "methods", cfg.Credentials.Methods())

	var attempts []error
	for _, s := range strategies {
		auth, err := s.authMethod()
		if err != nil {
			logger.Debug("Authentication method not applicable", "target", target, "method", s.method, "error", err)
			attempts = append(attempts, fmt.Errorf("%s: %w", s.method, err))
			continue
		}

		logger.Info("Attempting SSH authentication", "target", target, "method", s.method)
		client, err := dialSSH(ctx, cfg.Address(), cfg.clientConfig(auth, hostKeys))
		if err != nil {
			logger.Warn("SSH authentication failed", "target", target, "method", s.method, "error", err)
			attempts = append(attempts, fmt.Errorf("%s: %w", s.method, err))
			continue
		}

		logger.Info("SSH session established", "target", target, "method", s.method)
		return newSession(client, s.method, logger), nil
	}

	logger.Error("All authentication methods exhausted", "target", target, "attempts", len(attempts))
	return nil, &AuthenticationError{Kind: AllAuthenticationMethodsExhausted, Target: target, Attempts: attempts}
}
