package sixstar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Source fetches the raw destiny dataset.
type Source interface {
	Fetch(ctx context.Context) (io.ReadCloser, error)
	Name() string
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (io.ReadCloser, error)

// Fetch implements Source.
func (f SourceFunc) Fetch(ctx context.Context) (io.ReadCloser, error) { return f(ctx) }

// Name implements Source.
func (f SourceFunc) Name() string { return "func" }

// HTTPSource downloads the dataset as delimited text over HTTP.
type HTTPSource struct {
	url    string
	name   string
	token  string
	client *http.Client
}

// HTTPSourceOption customises an HTTPSource.
type HTTPSourceOption func(*HTTPSource)

// WithHTTPClient overrides the HTTP client used for downloads.
func WithHTTPClient(client *http.Client) HTTPSourceOption {
	return func(s *HTTPSource) {
		if client != nil {
			s.client = client
		}
	}
}

// WithBearerToken sends the token in the Authorization header.
func WithBearerToken(token string) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.token = strings.TrimSpace(token)
	}
}

// NewHTTPSource constructs a source for rawURL.
func NewHTTPSource(rawURL string, opts ...HTTPSourceOption) *HTTPSource {
	rawURL = strings.TrimSpace(rawURL)
	s := &HTTPSource{
		url:    rawURL,
		name:   redactURL(rawURL),
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("sixstar: build dataset request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = s.name
		}
		return nil, fmt.Errorf("sixstar: fetch dataset: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("sixstar: fetch dataset: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Name implements Source. Credentials and query parameters such as signed URL
// tokens are stripped so the name is safe for logs, spans and metrics.
func (s *HTTPSource) Name() string { return s.name }

func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "http"
	}
	return u.Scheme + "://" + u.Host + u.Path
}

// FileSource reads the dataset from the local filesystem.
type FileSource struct {
	Path string
}

// Fetch implements Source.
func (s FileSource) Fetch(context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("sixstar: open dataset: %w", err)
	}
	return f, nil
}

// Name implements Source.
func (s FileSource) Name() string { return "file://" + s.Path }
