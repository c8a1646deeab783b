package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"procurement-service/pkg/logger"
	"procurement-service/prometheus"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client calls the inventory REST API on behalf of one browser session
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	token          string
	onUnauthorized func()
}

// NewClient creates a client without credentials. Use WithToken to bind a session.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// WithToken returns a copy of the client that sends the bearer token on every
// request. onUnauthorized, if set, runs once per 401 answer.
func (c *Client) WithToken(token string, onUnauthorized func()) *Client {
	clone := *c
	clone.token = token
	clone.onUnauthorized = onUnauthorized
	return &clone
}

// do performs one JSON request. in is encoded as the body when non-nil; out is
// decoded from a 2xx body when non-nil.
func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, in, out any) error {
	log := logger.FromStdContext(ctx)
	start := time.Now()

	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", operation, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		log.Error("Failed to create request", zap.String("operation", operation), zap.Error(err))
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	log.Debug("Making API call",
		zap.String("operation", operation),
		zap.String("method", method),
		zap.String("path", path))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		prometheus.ObserveUpstreamCall(operation, "network_error", time.Since(start))
		log.Error("API request failed", zap.String("operation", operation), zap.Error(err))
		return &NetworkError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		prometheus.ObserveUpstreamCall(operation, "network_error", time.Since(start))
		log.Error("Failed to read response body", zap.String("operation", operation), zap.Error(err))
		return &NetworkError{Method: method, Path: path, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		prometheus.ObserveUpstreamCall(operation, "unauthorized", time.Since(start))
		log.Warn("Inventory API rejected the session token", zap.String("operation", operation))
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return fmt.Errorf("%w: %w", ErrSessionExpired, newServerError(resp, respBody))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		prometheus.ObserveUpstreamCall(operation, "server_error", time.Since(start))
		srvErr := newServerError(resp, respBody)
		log.Error("API request returned error status",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", srvErr.Message()))
		return srvErr
	}

	prometheus.ObserveUpstreamCall(operation, "success", time.Since(start))
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		log.Error("Failed to parse response", zap.String("operation", operation), zap.Error(err))
		return fmt.Errorf("decode %s response: %w", operation, err)
	}

	log.Debug("API call successful", zap.String("operation", operation), zap.Int("status", resp.StatusCode))
	return nil
}
