// Package client is the caller-side resilience layer over the back-office
// API: retry with exponential backoff and jitter for transient failures, a
// short-lived read cache for rarely-changing configuration, and recovery
// actions keyed by error kind.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/kanzleiwerk/aktenregister/internal/casefile"
)

const defaultSettingsTTL = 30 * time.Second

// Client talks to the back-office API.
type Client struct {
	baseURL string
	httpc   *http.Client
	policy  RetryPolicy
	cache   *settingsCache
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithSettingsTTL sets the freshness window of the settings read cache.
func WithSettingsTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache = newSettingsCache(ttl) }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		policy:  DefaultRetryPolicy(),
		cache:   newSettingsCache(defaultSettingsTTL),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateCase registers a new case.
//
// A retry after an ambiguous timeout is safe for families carrying an
// external reference: a create the server actually completed is rejected as
// a duplicate on the retry. Families without one must not be retried past an
// acknowledged commit.
func (c *Client) CreateCase(ctx context.Context, in casefile.CreateInput) (*casefile.Case, error) {
	var out casefile.Case
	if err := c.doRetry(ctx, http.MethodPost, "/api/cases", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// updatePayload mirrors the server's update request shape.
type updatePayload struct {
	casefile.UpdateInput
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

// UpdateCase applies changes under optimistic locking. Pass the version
// from the last read as expectedVersion; on a version-mismatch conflict,
// reload the case and re-apply.
func (c *Client) UpdateCase(ctx context.Context, id string, changes casefile.UpdateInput, expectedVersion *int64) (*casefile.Case, error) {
	var out casefile.Case
	payload := updatePayload{UpdateInput: changes, ExpectedVersion: expectedVersion}
	if err := c.doRetry(ctx, http.MethodPatch, "/api/cases/"+url.PathEscape(id), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCase fetches one case.
func (c *Client) GetCase(ctx context.Context, id string) (*casefile.Case, error) {
	var out casefile.Case
	if err := c.doRetry(ctx, http.MethodGet, "/api/cases/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSettings returns the configuration, served from the local cache while
// it is fresh.
func (c *Client) GetSettings(ctx context.Context) (map[string]string, error) {
	if values, ok := c.cache.get(); ok {
		return values, nil
	}

	var out map[string]string
	if err := c.doRetry(ctx, http.MethodGet, "/api/settings", nil, &out); err != nil {
		return nil, err
	}
	c.cache.put(out)
	return out, nil
}

// UpdateSettings applies a batch update. Any successful write replaces the
// cached copy with the server's authoritative result.
func (c *Client) UpdateSettings(ctx context.Context, changes map[string]string) (map[string]string, error) {
	var out map[string]string
	if err := c.doRetry(ctx, http.MethodPut, "/api/settings", changes, &out); err != nil {
		return nil, err
	}
	c.cache.invalidate()
	c.cache.put(out)
	return out, nil
}

// doRetry wraps one request in the retry policy.
func (c *Client) doRetry(ctx context.Context, method, path string, body, out any) error {
	return c.policy.Do(ctx, func() error {
		return c.do(ctx, method, path, body, out)
	})
}

// do issues a single request, decoding either the success body into out or
// the structured error payload into an *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Message = resp.Status
		}
		c.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code),
		)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
