package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxPageBytes bounds a fetched text document (10 MB).
const maxPageBytes = 10 << 20

// DefaultUserAgent is sent with every request unless overridden.
const DefaultUserAgent = "uplift/dev"

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// HTTPTransport fetches pages and artifacts over HTTP(S).
type HTTPTransport struct {
	client     *http.Client
	userAgent  string
	header     http.Header
	token      string
	tokenHosts []string
}

// TransportOption configures an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *HTTPTransport) {
		t.client = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) TransportOption {
	return func(t *HTTPTransport) {
		t.userAgent = ua
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) TransportOption {
	return func(t *HTTPTransport) {
		t.header.Set(key, value)
	}
}

// WithToken sends a bearer token, but only to the listed hosts.
func WithToken(token string, hosts ...string) TransportOption {
	return func(t *HTTPTransport) {
		t.token = token
		t.tokenHosts = hosts
	}
}

// NewHTTPTransport creates a transport. Timeouts come from the request
// context, so the default client has none of its own.
func NewHTTPTransport(opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		client:    &http.Client{},
		userAgent: DefaultUserAgent,
		header:    make(http.Header),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// FetchText retrieves rawURL and returns the body as a string.
func (t *HTTPTransport) FetchText(ctx context.Context, rawURL string) (string, error) {
	resp, err := t.get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", redactURL(rawURL), err)
	}
	return string(body), nil
}

// FetchBytes streams rawURL into w.
func (t *HTTPTransport) FetchBytes(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	resp, err := t.get(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to download %s: %w", redactURL(rawURL), err)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return n, fmt.Errorf("failed to download %s: got %d of %d bytes", redactURL(rawURL), n, resp.ContentLength)
	}
	return n, nil
}

func (t *HTTPTransport) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range t.header {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", t.userAgent)
	if t.token != "" && t.trusts(req.URL) {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", redactURL(rawURL), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &StatusError{URL: redactURL(rawURL), Code: resp.StatusCode}
	}
	return resp, nil
}

func (t *HTTPTransport) trusts(u *url.URL) bool {
	for _, h := range t.tokenHosts {
		if strings.EqualFold(u.Hostname(), h) {
			return true
		}
	}
	return false
}

// redactURL drops query and fragment, which may carry signed tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return u.String()
}
