package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

const (
	remoteToolsPath  = "/tools"
	remoteCallPath   = "/tools/call"
	remoteHealthPath = "/health"

	retryBaseDelay = 1 * time.Second
)

// toolCacheEntry is one cached tool listing keyed by connector address.
type toolCacheEntry struct {
	tools     []ToolDescriptor
	expiresAt time.Time
}

// RemoteClient invokes tools on a remotely reachable connector over HTTP
// with bounded retry for transient network failures.
type RemoteClient struct {
	cfg        Config
	httpClient *http.Client
	clock      clockwork.Clock
	cache      *xsync.MapOf[string, *toolCacheEntry]
}

// NewRemoteClient creates a remote transport client with a real clock
func NewRemoteClient(cfg Config) *RemoteClient {
	return NewRemoteClientWithClock(cfg, clockwork.NewRealClock())
}

// NewRemoteClientWithClock creates a remote transport client with a custom
// clock. This is useful for testing with a fake clock
func NewRemoteClientWithClock(cfg Config, clock clockwork.Clock) *RemoteClient {
	return &RemoteClient{
		cfg:        cfg,
		httpClient: &http.Client{},
		clock:      clock,
		cache:      xsync.NewMapOf[string, *toolCacheEntry](),
	}
}

// baseURL returns the connector address without a trailing slash.
func (c *RemoteClient) baseURL() string {
	return strings.TrimRight(c.cfg.BaseURL, "/")
}

// doRequest performs one HTTP exchange bounded by the per-call timeout,
// independent of the retry loop's backoff delays.
func (c *RemoteClient) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout())
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			zap.L().Debug("Failed to close response body", zap.Error(closeErr))
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}

// withRetry runs fn up to the configured retry budget, backing off with a
// doubling delay between attempts. Only transient-network error signatures
// are retried; everything else propagates immediately.
func (c *RemoteClient) withRetry(ctx context.Context, op string, fn func() ([]byte, error)) ([]byte, error) {
	attempts := c.cfg.RetryBudget()
	delay := retryBaseDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := fn()
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !isTransient(err) {
			return nil, err
		}
		if attempt == attempts {
			break
		}

		zap.L().Debug("Retrying remote call",
			zap.String("connector", c.cfg.ID),
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-c.clock.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
	}

	return nil, fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}

// ListTools fetches the connector's tool descriptors, serving from the
// address-keyed cache while the time-to-live holds.
func (c *RemoteClient) ListTools(ctx context.Context, forceRefresh bool) ([]ToolDescriptor, error) {
	key := c.baseURL()
	if !forceRefresh {
		if entry, ok := c.cache.Load(key); ok && c.clock.Now().Before(entry.expiresAt) {
			return entry.tools, nil
		}
	}

	body, err := c.withRetry(ctx, "tools/list", func() ([]byte, error) {
		return c.doRequest(ctx, http.MethodGet, remoteToolsPath, nil)
	})
	if err != nil {
		return nil, err
	}

	var result toolsListResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse tools listing: %w", err)
	}
	if result.Tools == nil {
		result.Tools = []ToolDescriptor{}
	}

	c.cache.Store(key, &toolCacheEntry{
		tools:     result.Tools,
		expiresAt: c.clock.Now().Add(c.cfg.CacheTTL()),
	})
	return result.Tools, nil
}

// CallTool invokes one named tool. Tool invocations are not assumed
// idempotent, so a failed call is surfaced rather than retried blindly;
// the retry wrapper still covers transient transport failures.
func (c *RemoteClient) CallTool(ctx context.Context, name string, arguments map[string]any) (*CallResult, error) {
	if arguments == nil {
		arguments = map[string]any{}
	}

	body, err := c.withRetry(ctx, "tools/call", func() ([]byte, error) {
		return c.doRequest(ctx, http.MethodPost, remoteCallPath, toolsCallParams{Name: name, Arguments: arguments})
	})
	if err != nil {
		return nil, err
	}

	var result CallResult
	if err := json.Unmarshal(body, &result); err != nil {
		return &CallResult{Content: body}, nil
	}
	if result.Content == nil {
		result.Content = body
	}
	return &result, nil
}

// HealthCheck probes the health endpoint; endpoints without one (404) fall
// back to a successful tool listing as the healthiness proxy.
func (c *RemoteClient) HealthCheck(ctx context.Context) bool {
	_, err := c.doRequest(ctx, http.MethodGet, remoteHealthPath, nil)
	if err == nil {
		return true
	}
	if se, ok := IsStatusError(err); ok && se.StatusCode == http.StatusNotFound {
		_, listErr := c.ListTools(ctx, false)
		return listErr == nil
	}
	return false
}

// ClearCache drops the cached tool listing for this connector address.
func (c *RemoteClient) ClearCache() {
	c.cache.Delete(c.baseURL())
}

// Close releases client resources. The remote transport holds no
// connection state beyond the shared HTTP client.
func (c *RemoteClient) Close() error {
	c.ClearCache()
	return nil
}
