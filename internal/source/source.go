package source

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	// WebHost is the host serving rendered repository pages.
	WebHost = "github.com"
	// RawHost is the host serving raw file bytes.
	RawHost = "raw.githubusercontent.com"

	// ContentExample is shown to callers who submit an unusable file URL.
	ContentExample = "https://github.com/username/repo/blob/main/path/to/file.txt"
	// RepositoryExample is shown to callers who submit an unusable repository URL.
	RepositoryExample = "https://github.com/username/repo"
)

var repositoryRegex = regexp.MustCompile(`^https?://github\.com/([\w-]+)/([\w.-]+)/?$`)

// Scheme classifies the shape of a source URL.
type Scheme string

const (
	SchemeRaw          Scheme = "raw"
	SchemeBlob         Scheme = "blob"
	SchemeTree         Scheme = "tree"
	SchemeUnrecognized Scheme = "unrecognized"
)

// Reference is the parsed form of a user supplied URL.
type Reference struct {
	Original   string
	Scheme     Scheme
	Owner      string
	Repository string
	Branch     string
	Path       string
}

// Fetchable reports whether the reference has a raw representation.
func (r Reference) Fetchable() bool {
	return r.Scheme == SchemeRaw || r.Scheme == SchemeBlob
}

// Repository identifies a repository on the web host.
type Repository struct {
	Owner string
	Name  string
}

// URL returns the clone URL of the repository.
func (r Repository) URL() string {
	return fmt.Sprintf("https://%s/%s/%s", WebHost, r.Owner, r.Name)
}

// PagesURL returns the GitHub Pages address derived from owner and name.
// The address is not checked for existence.
func (r Repository) PagesURL() string {
	return fmt.Sprintf("https://%s.github.io/%s", r.Owner, r.Name)
}

// Parse classifies rawURL without deciding whether it can be fetched.
func Parse(rawURL string) (Reference, error) {
	ref := Reference{Original: rawURL, Scheme: SchemeUnrecognized}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ref, &ResolutionError{Kind: UnsupportedURL, URL: rawURL}
	}

	parts := splitPath(u.Path)

	switch u.Host {
	case RawHost:
		ref.Scheme = SchemeRaw
		if len(parts) >= 4 {
			ref.Owner, ref.Repository, ref.Branch = parts[0], parts[1], parts[2]
			ref.Path = strings.Join(parts[3:], "/")
		}
	case WebHost:
		if len(parts) >= 5 {
			switch parts[2] {
			case "blob":
				ref.Scheme = SchemeBlob
			case "tree":
				ref.Scheme = SchemeTree
			}
		} else if len(parts) >= 3 && parts[2] == "tree" {
			ref.Scheme = SchemeTree
		}
		if ref.Scheme != SchemeUnrecognized {
			ref.Owner, ref.Repository = parts[0], parts[1]
			if len(parts) >= 4 {
				ref.Branch = parts[3]
			}
			if len(parts) >= 5 {
				ref.Path = strings.Join(parts[4:], "/")
			}
		}
	}

	return ref, nil
}

// ResolveContent maps rawURL to a URL addressing raw file bytes.
//
// Raw-host URLs are returned unchanged apart from surrounding whitespace,
// which Parse ignores too. Blob URLs on the web host are
// rewritten to the raw host. Tree URLs fail with DirectoryNotFile and every
// other shape fails with UnsupportedURL.
func ResolveContent(rawURL string) (string, error) {
	ref, err := Parse(rawURL)
	if err != nil {
		return "", err
	}

	if ref.Scheme == SchemeTree {
		return "", &ResolutionError{Kind: DirectoryNotFile, URL: rawURL}
	}
	if !ref.Fetchable() {
		return "", &ResolutionError{Kind: UnsupportedURL, URL: rawURL}
	}
	if ref.Scheme == SchemeRaw {
		return strings.TrimSpace(rawURL), nil
	}
	return fmt.Sprintf("https://%s/%s/%s/%s/%s", RawHost, ref.Owner, ref.Repository, ref.Branch, ref.Path), nil
}

// ResolveRepository validates a repository root URL. Extra path segments
// after the repository name are rejected.
func ResolveRepository(rawURL string) (Repository, error) {
	m := repositoryRegex.FindStringSubmatch(rawURL)
	if m == nil {
		return Repository{}, &ResolutionError{Kind: InvalidRepositoryURL, URL: rawURL}
	}
	return Repository{Owner: m[1], Name: m[2]}, nil
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
