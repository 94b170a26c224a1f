package deploy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Publisher sends one admin API request and reports its HTTP status.
type Publisher interface {
	Trigger(ctx context.Context, method, url string, header http.Header) (int, error)
}

// HTTPPublisher is a Publisher over net/http.
type HTTPPublisher struct {
	client *http.Client
	token  string
}

// NewHTTPPublisher returns a publisher that authenticates with token when set.
func NewHTTPPublisher(token string) *HTTPPublisher {
	return &HTTPPublisher{
		client: &http.Client{Timeout: 60 * time.Second},
		token:  token,
	}
}

func (p *HTTPPublisher) Trigger(ctx context.Context, method, url string, header http.Header) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if p.token != "" {
		req.Header.Set("Authorization", "token "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
