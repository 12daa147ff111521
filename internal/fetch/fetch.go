package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
)

// sniffLen is how much of the payload the integrity guard inspects.
const sniffLen = 1024

// ErrUnexpectedHTMLContent is returned when a fetched payload looks like an
// HTML page instead of the requested raw file.
var ErrUnexpectedHTMLContent = errors.New("received HTML instead of file content; please use a direct link to a raw file")

// FetchError reports a transport failure or a non-2xx response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Response is a fetched payload together with its declared content type.
type Response struct {
	URL         string
	Body        []byte
	ContentType string
}

// Client retrieves raw content over HTTP.
type Client struct {
	httpClient *http.Client
	maxBytes   int64
	logger     *slog.Logger
}

// New creates a Client. A maxBytes of zero disables the size cap.
func New(httpClient *http.Client, maxBytes int64, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{httpClient: httpClient, maxBytes: maxBytes, logger: logger}
}

// Fetch downloads rawURL. It fails with a *FetchError on transport errors,
// non-2xx statuses and payloads larger than the configured cap.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	c.logger.Info("Fetching content", "url", rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if c.maxBytes > 0 {
		body = io.LimitReader(resp.Body, c.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("payload exceeds limit of %s", humanize.Bytes(uint64(c.maxBytes)))}
	}

	contentType := resp.Header.Get("Content-Type")
	c.logger.Debug("Fetched content",
		"url", rawURL,
		"content_type", contentType,
		"size", humanize.Bytes(uint64(len(data))))

	return &Response{URL: rawURL, Body: data, ContentType: contentType}, nil
}

// CheckIntegrity rejects payloads that are HTML documents, either by
// declared content type or by a document marker in the first kilobyte.
func CheckIntegrity(resp *Response) error {
	if mediaType(resp.ContentType) == "text/html" {
		return ErrUnexpectedHTMLContent
	}

	head := resp.Body
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	head = bytes.ToLower(head)
	if bytes.Contains(head, []byte("<!doctype html")) || bytes.Contains(head, []byte("<html")) {
		return ErrUnexpectedHTMLContent
	}
	return nil
}

// IsBinary classifies a content type. text/*, JSON and XML are text;
// everything else, including a missing type, is binary.
func IsBinary(contentType string) bool {
	mt := mediaType(contentType)
	switch {
	case strings.HasPrefix(mt, "text/"):
		return false
	case mt == "application/json", mt == "application/xml":
		return false
	default:
		return true
	}
}

// Filename derives the file name from the last path segment of rawURL.
func Filename(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == ".." || name == "/" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("cannot derive a file name from %q", rawURL)
	}
	return name, nil
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mt
}
