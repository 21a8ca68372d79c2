// Package firebase implements the remote boundaries against a Firebase-style
// backend: the realtime-database JSON REST API, the identity-toolkit
// endpoints, a storage upload function and the Google geocode API.
package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/place-keeper/internal/errs"
)

// Client is the shared HTTP transport for all firebase adapters.
type Client struct {
	http *http.Client
	log  *zap.Logger
}

// NewClient constructs the shared transport with a per-request timeout.
func NewClient(timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

// doJSON sends a request with an optional JSON body and decodes the response
// into out when out is non-nil. Transport errors and non-2xx responses map to
// *errs.RemoteError; the response body is preserved for error-code mapping
// upstream.
func (c *Client) doJSON(ctx context.Context, method, url string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

// do executes a prepared request and decodes the JSON response into out.
func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &errs.RemoteError{Body: err.Error()}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.RemoteError{Status: resp.StatusCode, Body: err.Error()}
	}

	c.log.Debug("remote call",
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &errs.RemoteError{Status: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &errs.RemoteError{Status: resp.StatusCode, Body: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}
