package checkers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPChecker probes an upstream HTTP endpoint, typically an LLM or
// embedding gateway's model listing.
type HTTPChecker struct {
	url     string
	client  *http.Client
	name    string
	headers http.Header
}

// HTTPOption configures an HTTPChecker.
type HTTPOption func(*HTTPChecker)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPChecker) {
		h.client = c
	}
}

// WithHeader adds a request header, e.g. an Authorization bearer token.
func WithHeader(key, value string) HTTPOption {
	return func(h *HTTPChecker) {
		h.headers.Set(key, value)
	}
}

// NewHTTPChecker creates an HTTP endpoint health checker. An empty name defaults to the URL.
func NewHTTPChecker(url string, name string, opts ...HTTPOption) *HTTPChecker {
	if name == "" {
		name = url
	}

	h := &HTTPChecker{
		url:     url,
		name:    name,
		client:  &http.Client{Timeout: 10 * time.Second},
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name returns the name of this health check.
func (h *HTTPChecker) Name() string {
	return h.name
}

// Check performs a GET against the endpoint. Only 5xx responses and
// transport errors count as unhealthy.
func (h *HTTPChecker) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range h.headers {
		req.Header[k] = v
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 500 {
		return fmt.Errorf("unhealthy status code: %d", resp.StatusCode)
	}

	return nil
}
