// Package api holds the HTTP plumbing shared by the Misskey, Mastodon and
// feed clients.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pders01/fwtl/internal/config"
)

const (
	defaultUserAgent = "fwtl/1.0 (federated timeline client; github.com/pders01/fwtl)"
	defaultTimeout   = 30 * time.Second
	maxErrorBody     = 512
)

// HTTPError is returned for any response with status >= 400.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP error: %s %s: %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("HTTP error: %s %s: %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

type Client struct {
	client    *http.Client
	userAgent string
}

func NewClient(cfg *config.Config) *Client {
	timeout := defaultTimeout
	userAgent := defaultUserAgent
	if cfg != nil {
		if cfg.Timeline.HTTPTimeout > 0 {
			timeout = cfg.Timeline.HTTPTimeout
		}
		if cfg.Timeline.UserAgent != "" {
			userAgent = cfg.Timeline.UserAgent
		}
	}
	return &Client{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// HTTPClient exposes the underlying client for callers that need raw access,
// such as instance detection.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

func (c *Client) UserAgent() string {
	return c.userAgent
}

// PostJSON sends body as JSON and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, url string, body, out any) (http.Header, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doJSON(req, out)
}

// GetJSON issues a GET with an optional bearer token and decodes into out.
func (c *Client) GetJSON(ctx context.Context, url, token string, out any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) (http.Header, error) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(req, resp); err != nil {
		return resp.Header, err
	}

	if out == nil {
		return resp.Header, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.Header, fmt.Errorf("decoding %s response: %w", req.URL.Path, err)
	}
	return resp.Header, nil
}

// Conditional carries the validators of a previous response.
type Conditional struct {
	ETag         string
	LastModified string
}

// Fetch performs a conditional GET. It returns (nil, false, nil) when the
// server answers 304 Not Modified. The caller closes the body.
func (c *Client) Fetch(ctx context.Context, url, accept string, cond Conditional) (*http.Response, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if cond.ETag != "" {
		req.Header.Set("If-None-Match", cond.ETag)
	}
	if cond.LastModified != "" {
		req.Header.Set("If-Modified-Since", cond.LastModified)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("fetching %s: %w", url, err)
	}

	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		return nil, false, nil
	}

	if err := checkStatus(req, resp); err != nil {
		resp.Body.Close()
		return nil, false, err
	}

	return resp, true, nil
}

// ConditionalFrom extracts validators from resp for the next Fetch.
func ConditionalFrom(resp *http.Response) Conditional {
	return Conditional{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
}

func checkStatus(req *http.Request, resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{
		Method:     req.Method,
		URL:        req.URL.Redacted(),
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// JoinURL appends path to base, tolerating a trailing slash on base.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
