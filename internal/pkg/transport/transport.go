package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"
)

// DefaultMaxBodyBytes caps how much of a response body HTTPFetcher reads.
const DefaultMaxBodyBytes = 1 << 20

// ErrBodyTooLarge is returned when a response body exceeds the fetcher's limit.
var ErrBodyTooLarge = errors.New("response body too large")

// Fetcher performs a single outbound request and returns the status code and
// the fully read response body. Non-2xx statuses are not errors; callers decide.
type Fetcher interface {
	Fetch(ctx context.Context, method, url string, header http.Header, body []byte) (int, []byte, error)
}

// HTTPFetcher is a Fetcher backed by an *http.Client.
type HTTPFetcher struct {
	Client *http.Client
	// MaxBodyBytes defaults to DefaultMaxBodyBytes when zero.
	MaxBodyBytes int64
}

var _ Fetcher = &HTTPFetcher{}

// NewHTTPClient returns a client with short dial and handshake timeouts and an
// overall request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 2 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 2 * time.Second,
		},
	}
}

// NewHTTPFetcher returns an HTTPFetcher using NewHTTPClient.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{Client: NewHTTPClient(timeout)}
}

// Fetch fulfills the Fetcher interface.
func (f *HTTPFetcher) Fetch(ctx context.Context, method, url string, header http.Header, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	limit := f.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	if int64(len(respBody)) > limit {
		return resp.StatusCode, nil, ErrBodyTooLarge
	}
	return resp.StatusCode, respBody, nil
}
