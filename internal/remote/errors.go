package remote

import (
	"errors"
	"fmt"
	"strings"
)

// AuthErrorKind distinguishes authentication failures.
type AuthErrorKind string

const (
	KeyFileMissing                    AuthErrorKind = "KeyFileMissing"
	AllAuthenticationMethodsExhausted AuthErrorKind = "AllAuthenticationMethodsExhausted"
)

// AuthenticationError reports that no session could be opened.
type AuthenticationError struct {
	Kind   AuthErrorKind
	Target string
	// Attempts holds one error per strategy that was tried, in order.
	Attempts []error
	Err      error
}

func (e *AuthenticationError) Error() string {
	switch e.Kind {
	case KeyFileMissing:
		return fmt.Sprintf("private key file not found for %s: %v", e.Target, e.Err)
	default:
		if len(e.Attempts) == 0 {
			return fmt.Sprintf("no authentication method configured for %s", e.Target)
		}
		msgs := make([]string, len(e.Attempts))
		for i, a := range e.Attempts {
			msgs[i] = a.Error()
		}
		return fmt.Sprintf("all authentication methods failed for %s: %s", e.Target, strings.Join(msgs, "; "))
	}
}

func (e *AuthenticationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return errors.Join(e.Attempts...)
}

// Is matches another AuthenticationError of the same kind.
func (e *AuthenticationError) Is(target error) bool {
	t, ok := target.(*AuthenticationError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// TransferError reports a failure of the file-transfer channel.
type TransferError struct {
	LocalPath  string
	RemotePath string
	Err        error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer of %s to %s failed: %v", e.LocalPath, e.RemotePath, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
