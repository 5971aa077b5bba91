package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
)

// Client is a small JSON-over-HTTP client bound to a base URL
type Client struct {
	baseURL string
	http    *http.Client
	headers map[string]string
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the overall request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHeader adds a header to every request
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// WithHTTPClient replaces the underlying client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a client for baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		headers: map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET and decodes the JSON response into out
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post sends body as JSON and decodes the response into out (if non-nil)
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to marshal request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeUnavailable, fmt.Sprintf("%s %s failed", method, path))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.New(codeForStatus(resp.StatusCode),
			fmt.Sprintf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to decode response body")
	}
	return nil
}

func codeForStatus(status int) errors.ErrorCode {
	switch {
	case status == http.StatusNotFound:
		return errors.ErrCodeNotFound
	case status == http.StatusConflict:
		return errors.ErrCodeConflict
	case status >= 400 && status < 500:
		return errors.ErrCodeInvalidInput
	default:
		return errors.ErrCodeUnavailable
	}
}
