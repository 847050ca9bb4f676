// Package client is a small HTTP client for a running gateway, used by
// the CLI probe commands.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hlsgate/pkg/api"
	"hlsgate/pkg/object"
)

// Client talks to a gateway instance over HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ObjectInfo mirrors the headers the gateway attaches to object
// responses.
type ObjectInfo struct {
	ContentType   string
	CacheControl  string
	ETag          string
	ContentLength int64
}

// Health checks GET /api/health.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("client: health returned status %d", resp.StatusCode)
	}
	var body api.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("client: decode health response: %w", err)
	}
	if body.Status != "ok" {
		return fmt.Errorf("client: unexpected health status %q", body.Status)
	}
	return nil
}

// Stat probes object metadata with a HEAD request. The key includes the
// route prefix, e.g. video-hls/abc/000.ts.
func (c *Client) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.keyURL(key), nil)
	if err != nil {
		return ObjectInfo{}, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return ObjectInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ObjectInfo{}, object.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return ObjectInfo{}, fmt.Errorf("client: stat returned status %d", resp.StatusCode)
	}
	return infoFromResponse(resp), nil
}

// Fetch reads an object, optionally with a Range header. The caller must
// close the returned body.
func (c *Client) Fetch(ctx context.Context, key, rangeHeader string) (ObjectInfo, io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.keyURL(key), nil)
	if err != nil {
		return ObjectInfo{}, nil, err
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return ObjectInfo{}, nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		return infoFromResponse(resp), resp.Body, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return ObjectInfo{}, nil, object.ErrNotFound
	default:
		resp.Body.Close()
		return ObjectInfo{}, nil, fmt.Errorf("client: fetch returned status %d", resp.StatusCode)
	}
}

func (c *Client) keyURL(key string) string {
	return c.BaseURL + "/" + strings.TrimPrefix(key, "/")
}

func infoFromResponse(resp *http.Response) ObjectInfo {
	return ObjectInfo{
		ContentType:   resp.Header.Get("Content-Type"),
		CacheControl:  resp.Header.Get("Cache-Control"),
		ETag:          resp.Header.Get("ETag"),
		ContentLength: resp.ContentLength,
	}
}
