package source

import "fmt"

// ErrorKind distinguishes resolution failures.
type ErrorKind string

const (
	DirectoryNotFile     ErrorKind = "DirectoryNotFile"
	UnsupportedURL       ErrorKind = "UnsupportedURL"
	InvalidRepositoryURL ErrorKind = "InvalidRepositoryURL"
)

// ResolutionError reports a URL that cannot be turned into a fetchable
// or clonable address.
type ResolutionError struct {
	Kind ErrorKind
	URL  string
}

func (e *ResolutionError) Error() string {
	switch e.Kind {
	case DirectoryNotFile:
		return fmt.Sprintf("URL points to a directory, not a file: %s", e.URL)
	case InvalidRepositoryURL:
		return fmt.Sprintf("invalid GitHub repository URL format: %s", e.URL)
	default:
		return fmt.Sprintf("unsupported URL, expected a direct link to a file: %s", e.URL)
	}
}

// Is matches another ResolutionError of the same kind, so callers can use
// errors.Is(err, &ResolutionError{Kind: DirectoryNotFile}).
func (e *ResolutionError) Is(target error) bool {
	t, ok := target.(*ResolutionError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Example returns a valid input of the shape the caller should have used.
func (e *ResolutionError) Example() string {
	if e.Kind == InvalidRepositoryURL {
		return RepositoryExample
	}
	return ContentExample
}
