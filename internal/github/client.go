// Package github is a small client for the GitHub REST v3 endpoints the
// pipeline publishes through: contents, git data, pulls and reviews.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docmeta/internal/logging"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.github.com"

	mediaJSON  = "application/vnd.github+json"
	mediaRaw   = "application/vnd.github.raw"
	apiVersion = "2022-11-28"
)

// Client talks to one repository.
type Client struct {
	httpClient *http.Client
	baseURL    string
	owner      string
	repo       string
	token      string

	// raw caches file bodies by ref and path for the life of a run.
	raw *expirable.LRU[string, string]
}

type Option func(*Client)

// WithBaseURL points the client at a GitHub Enterprise or test server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			c.baseURL = u
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithCache sets the raw content cache size and TTL. A size of zero
// disables caching.
func WithCache(size int, ttl time.Duration) Option {
	return func(c *Client) {
		if size <= 0 {
			c.raw = nil
			return
		}
		c.raw = expirable.NewLRU[string, string](size, nil, ttl)
	}
}

func NewClient(owner, repo, token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    DefaultBaseURL,
		owner:      owner,
		repo:       repo,
		token:      token,
		raw:        expirable.NewLRU[string, string](256, nil, 10*time.Minute),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) repoURL(parts ...string) string {
	return c.baseURL + "/repos/" + url.PathEscape(c.owner) + "/" + url.PathEscape(c.repo) + "/" + strings.Join(parts, "/")
}

// escapePath escapes every segment of a slash separated repository path.
func escapePath(p string) string {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// doJSON sends body as JSON and decodes a JSON reply into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(buf)
	}

	data, err := c.send(ctx, method, endpoint, mediaJSON, reader)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, endpoint, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, endpoint, accept string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github request %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()
	logging.FromContext(ctx).Debug("github request",
		zap.String("method", method),
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
	)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read github response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(method, endpoint, resp.StatusCode, data)
	}
	return data, nil
}
