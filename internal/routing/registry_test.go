package routing

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dorcha-inc/relay/internal/connector"
)

func newTestRegistry(configs ...connector.Config) (*Registry, *fakeTransport) {
	transport := &fakeTransport{}
	store := NewMemoryConfigStore(configs...)
	return NewRegistry(store, NewMemoryCredentialStore(), connector.WithTransport(transport)), transport
}

func todoistConfig() connector.Config {
	return connector.Config{
		ID:        "todoist",
		Name:      "My Todoist",
		Owner:     "dana",
		Family:    connector.FamilyTodoist,
		Transport: connector.TransportRemote,
		BaseURL:   "http://todoist.local",
	}
}

// TestRegistry_Get_SameInstance tests that concurrent lookups of one id
// converge on a single connector instance
func TestRegistry_Get_SameInstance(t *testing.T) {
	registry, _ := newTestRegistry(todoistConfig())

	const lookups = 8
	instances := make([]*connector.Connector, lookups)
	var wg sync.WaitGroup
	for i := 0; i < lookups; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := registry.Get(context.Background(), "todoist")
			assert.NoError(t, err)
			instances[i] = conn
		}(i)
	}
	wg.Wait()

	for i := 1; i < lookups; i++ {
		assert.Same(t, instances[0], instances[i])
	}
}

// TestRegistry_Get_UnknownID tests the error for an unconfigured id
func TestRegistry_Get_UnknownID(t *testing.T) {
	registry, _ := newTestRegistry(todoistConfig())

	_, err := registry.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown connector id "nope"`)
}

// TestRegistry_Resolve tests reference resolution by id, by display name,
// and the typo suggestion for near-misses
func TestRegistry_Resolve(t *testing.T) {
	registry, _ := newTestRegistry(todoistConfig())

	byID, err := registry.Resolve(context.Background(), "dana", "todoist")
	require.NoError(t, err)
	assert.Equal(t, "todoist", byID.ID())

	byName, err := registry.Resolve(context.Background(), "dana", "my todoist")
	require.NoError(t, err)
	assert.Same(t, byID, byName)

	_, err = registry.Resolve(context.Background(), "dana", "todolst")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "todoist"?`)

	_, err = registry.Resolve(context.Background(), "dana", "completely-unrelated")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "did you mean")

	_, err = registry.Resolve(context.Background(), "dana", "")
	assert.Error(t, err)
}

// TestRegistry_CloseAll tests that shutdown drops built connectors so a
// later lookup constructs afresh
func TestRegistry_CloseAll(t *testing.T) {
	registry, _ := newTestRegistry(todoistConfig())

	first, err := registry.Get(context.Background(), "todoist")
	require.NoError(t, err)

	registry.CloseAll()

	second, err := registry.Get(context.Background(), "todoist")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

// TestAdapterRegistry tests registration, lookup, and sorted kind listing
func TestAdapterRegistry(t *testing.T) {
	registry := NewAdapterRegistry()
	registry.Register(&recordingAdapter{kind: "webhook"})
	registry.Register(&recordingAdapter{kind: "file"})

	adapter, ok := registry.Lookup("webhook")
	require.True(t, ok)
	assert.Equal(t, "webhook", adapter.Kind())

	_, ok = registry.Lookup("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"file", "webhook"}, registry.Kinds())
}
