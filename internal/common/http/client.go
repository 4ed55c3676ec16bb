// Package http wraps the standard client with the conventions the entity
// service integrations speak: requests carry JSON, responses are size-capped
// before decoding.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const userAgent = "growth-chat/1.0"

// MaxResponseBytes caps how much of a collaborator response is read. Entity
// results are small; anything larger is a misbehaving service.
const MaxResponseBytes = 1 << 20

type Client struct {
	httpClient *http.Client
}

// NewClient creates a client with a hard timeout backstop. Per-operation
// deadlines come from the caller's ctx.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// PostJSON marshals payload and POSTs it to url with the service's JSON
// headers. The caller owns the response; read it with ReadBody.
func (c *Client) PostJSON(ctx context.Context, url string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	return c.httpClient.Do(req)
}

// ReadBody drains and closes the response body, bounded by MaxResponseBytes.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
}
