package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRemoteConfig(baseURL string) Config {
	return Config{
		ID:        "todoist",
		Transport: TransportRemote,
		BaseURL:   baseURL,
	}
}

// advanceThroughBackoffs releases n pending backoff waits on the fake clock.
func advanceThroughBackoffs(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	delay := retryBaseDelay
	for i := 0; i < n; i++ {
		require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
		clock.Advance(delay)
		delay *= 2
	}
}

// TestRemoteClient_WithRetry_TransientRetried tests that a transient
// network failure is retried until the call succeeds
func TestRemoteClient_WithRetry_TransientRetried(t *testing.T) {
	clock := clockwork.NewFakeClock()
	client := NewRemoteClientWithClock(testRemoteConfig("http://connector.local"), clock)

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		_, err := client.withRetry(context.Background(), "tools/call", func() ([]byte, error) {
			if calls.Add(1) < 3 {
				return nil, errors.New("read tcp: connection reset by peer")
			}
			return []byte(`{}`), nil
		})
		done <- err
	}()

	advanceThroughBackoffs(t, clock, 2)
	require.NoError(t, <-done)
	assert.Equal(t, int32(3), calls.Load())
}

// TestRemoteClient_WithRetry_ExhaustsBudget tests that retries stop at the
// configured budget and the last error is wrapped with the attempt count
func TestRemoteClient_WithRetry_ExhaustsBudget(t *testing.T) {
	clock := clockwork.NewFakeClock()
	client := NewRemoteClientWithClock(testRemoteConfig("http://connector.local"), clock)

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		_, err := client.withRetry(context.Background(), "tools/call", func() ([]byte, error) {
			calls.Add(1)
			return nil, errors.New("dial tcp: connection refused")
		})
		done <- err
	}()

	advanceThroughBackoffs(t, clock, 2)
	err := <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, int32(3), calls.Load())
}

// TestRemoteClient_WithRetry_NonTransientFailsFast tests that HTTP status
// errors are never retried
func TestRemoteClient_WithRetry_NonTransientFailsFast(t *testing.T) {
	client := NewRemoteClient(testRemoteConfig("http://connector.local"))

	var calls atomic.Int32
	_, err := client.withRetry(context.Background(), "tools/call", func() ([]byte, error) {
		calls.Add(1)
		return nil, &StatusError{StatusCode: http.StatusNotFound, Body: "no such tool"}
	})

	require.Error(t, err)
	_, ok := IsStatusError(err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), calls.Load())
}

// TestRemoteClient_WithRetry_ContextCancel tests that cancellation during
// a backoff wait aborts the retry loop
func TestRemoteClient_WithRetry_ContextCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	client := NewRemoteClientWithClock(testRemoteConfig("http://connector.local"), clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := client.withRetry(ctx, "tools/list", func() ([]byte, error) {
			return nil, errors.New("read tcp: broken pipe")
		})
		done <- err
	}()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

// TestRemoteClient_CallTool_Success tests a full HTTP round trip including
// the bearer header and external reference extraction
func TestRemoteClient_CallTool_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, remoteCallPath, r.URL.Path)
		require.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		var params toolsCallParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		require.Equal(t, "create_task", params.Name)
		require.Equal(t, "buy milk", params.Arguments["title"])

		fmt.Fprint(w, `{"content":[{"type":"text","text":"created"}],"_meta":{"id":"task-1","url":"https://todo.example/task-1"}}`)
	}))
	defer server.Close()

	cfg := testRemoteConfig(server.URL)
	cfg.BearerToken = "secret-token"
	client := NewRemoteClient(cfg)

	result, err := client.CallTool(context.Background(), "create_task", map[string]any{"title": "buy milk"})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	id, url := result.ExternalRef()
	assert.Equal(t, "task-1", id)
	assert.Equal(t, "https://todo.example/task-1", url)
}

// TestRemoteClient_CallTool_NonJSONBody tests that an unparseable response
// body is preserved as the opaque result content
func TestRemoteClient_CallTool_NonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "created task 42")
	}))
	defer server.Close()

	client := NewRemoteClient(testRemoteConfig(server.URL))
	result, err := client.CallTool(context.Background(), "create_task", nil)
	require.NoError(t, err)
	assert.Equal(t, "created task 42", string(result.Content))
}

// TestRemoteClient_CallTool_StatusErrorSurfaced tests that a non-2xx reply
// fails immediately with the status and body attached
func TestRemoteClient_CallTool_StatusErrorSurfaced(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, "unknown project")
	}))
	defer server.Close()

	client := NewRemoteClient(testRemoteConfig(server.URL))
	_, err := client.CallTool(context.Background(), "create_task", nil)
	require.Error(t, err)

	se, ok := IsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Equal(t, "unknown project", se.Body)
	assert.Equal(t, int32(1), calls.Load())
}

// TestRemoteClient_ListTools_CacheTTL tests that tool listings are served
// from cache until the time-to-live lapses or a refresh is forced
func TestRemoteClient_ListTools_CacheTTL(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, remoteToolsPath, r.URL.Path)
		calls.Add(1)
		fmt.Fprint(w, `{"tools":[{"name":"create_task"}]}`)
	}))
	defer server.Close()

	clock := clockwork.NewFakeClock()
	client := NewRemoteClientWithClock(testRemoteConfig(server.URL), clock)

	tools, err := client.ListTools(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "create_task", tools[0].Name)

	_, err = client.ListTools(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	clock.Advance(DefaultCacheTTL + time.Second)
	_, err = client.ListTools(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	_, err = client.ListTools(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

// TestRemoteClient_HealthCheck tests the health probe and its listing
// fallback for endpoints without a health route
func TestRemoteClient_HealthCheck(t *testing.T) {
	tests := []struct {
		name         string
		healthStatus int
		toolsStatus  int
		want         bool
	}{
		{name: "healthy endpoint", healthStatus: http.StatusOK, toolsStatus: http.StatusOK, want: true},
		{name: "no health route falls back to listing", healthStatus: http.StatusNotFound, toolsStatus: http.StatusOK, want: true},
		{name: "no health route and listing fails", healthStatus: http.StatusNotFound, toolsStatus: http.StatusInternalServerError, want: false},
		{name: "unhealthy endpoint", healthStatus: http.StatusInternalServerError, toolsStatus: http.StatusOK, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case remoteHealthPath:
					w.WriteHeader(tt.healthStatus)
				case remoteToolsPath:
					w.WriteHeader(tt.toolsStatus)
					if tt.toolsStatus == http.StatusOK {
						fmt.Fprint(w, `{"tools":[]}`)
					}
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			}))
			defer server.Close()

			client := NewRemoteClient(testRemoteConfig(server.URL))
			assert.Equal(t, tt.want, client.HealthCheck(context.Background()))
		})
	}
}
