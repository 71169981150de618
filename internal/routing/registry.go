package routing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/dorcha-inc/relay/internal/connector"
)

// Registry constructs and caches connector facades per connector id. It is
// built once at process start and passed by handle into the engine; there
// are no ambient globals. Construction is lazy and concurrent lookups of
// one id converge on the same instance.
type Registry struct {
	configs ConfigStore
	creds   CredentialStore
	opts    []connector.Option
	built   *xsync.MapOf[string, *connector.Connector]
}

// NewRegistry creates a connector registry. The options are applied to
// every connector constructed through it.
func NewRegistry(configs ConfigStore, creds CredentialStore, opts ...connector.Option) *Registry {
	return &Registry{
		configs: configs,
		creds:   creds,
		opts:    opts,
		built:   xsync.NewMapOf[string, *connector.Connector](),
	}
}

// Get returns the facade for a connector id, constructing it on first use.
func (r *Registry) Get(ctx context.Context, id string) (*connector.Connector, error) {
	if conn, ok := r.built.Load(id); ok {
		return conn, nil
	}

	cfg, found, err := r.configs.Config(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load connector config: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("unknown connector id %q", id)
	}

	creds, err := r.creds.Credentials(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load connector credentials: %w", err)
	}

	conn, err := connector.New(cfg, creds, r.opts...)
	if err != nil {
		return nil, err
	}

	actual, loaded := r.built.LoadOrStore(id, conn)
	if loaded {
		// A concurrent lookup won; discard ours before it spawns anything.
		if closeErr := conn.Close(); closeErr != nil {
			zap.L().Debug("Failed to close duplicate connector", zap.Error(closeErr))
		}
		return actual, nil
	}
	return conn, nil
}

// suggestionMaxDistance bounds how far a name can be from an existing one
// before we stop suggesting it.
const suggestionMaxDistance = 3

// Resolve finds a connector by id or by display name scoped to the owner.
// Unresolvable references include the closest known name as a suggestion.
func (r *Registry) Resolve(ctx context.Context, owner, ref string) (*connector.Connector, error) {
	if ref == "" {
		return nil, fmt.Errorf("empty connector reference")
	}

	if _, found, err := r.configs.Config(ctx, ref); err != nil {
		return nil, fmt.Errorf("failed to load connector config: %w", err)
	} else if found {
		return r.Get(ctx, ref)
	}

	configs, err := r.configs.Configs(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list connectors: %w", err)
	}

	refLower := strings.ToLower(ref)
	for _, cfg := range configs {
		if strings.ToLower(cfg.Name) == refLower {
			return r.Get(ctx, cfg.ID)
		}
	}

	if suggestion := suggestSimilarName(configs, refLower); suggestion != "" {
		return nil, fmt.Errorf("unknown connector %q (did you mean %q?)", ref, suggestion)
	}
	return nil, fmt.Errorf("unknown connector %q", ref)
}

// suggestSimilarName finds the most similar connector name for typo
// detection using Levenshtein distance.
func suggestSimilarName(configs []connector.Config, refLower string) string {
	var best string
	bestDistance := suggestionMaxDistance

	for _, cfg := range configs {
		for _, candidate := range []string{cfg.Name, cfg.ID} {
			if candidate == "" {
				continue
			}
			distance := levenshtein.ComputeDistance(refLower, strings.ToLower(candidate))
			if distance < bestDistance {
				bestDistance = distance
				best = candidate
			}
		}
	}
	return best
}

// CloseAll closes every constructed connector. Used on shutdown.
func (r *Registry) CloseAll() {
	r.built.Range(func(id string, conn *connector.Connector) bool {
		if err := conn.Close(); err != nil {
			zap.L().Warn("Failed to close connector", zap.String("connector", id), zap.Error(err))
		}
		r.built.Delete(id)
		return true
	})
}

// Adapter delivers items to destinations that are not connector-protocol
// endpoints (plain webhooks, local files). Registered once at startup.
type Adapter interface {
	Kind() string
	Deliver(ctx context.Context, item *Item, target Target) (*connector.Delivery, error)
}

// AdapterRegistry holds the non-connector adapters keyed by target kind.
type AdapterRegistry struct {
	adapters *xsync.MapOf[string, Adapter]
	kinds    mapset.Set[string]
}

func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{
		adapters: xsync.NewMapOf[string, Adapter](),
		kinds:    mapset.NewSet[string](),
	}
}

// Register installs an adapter for its kind, replacing any previous one.
func (r *AdapterRegistry) Register(adapter Adapter) {
	r.adapters.Store(adapter.Kind(), adapter)
	r.kinds.Add(adapter.Kind())
}

// Lookup returns the adapter for a target kind.
func (r *AdapterRegistry) Lookup(kind string) (Adapter, bool) {
	return r.adapters.Load(kind)
}

// Kinds returns the registered adapter kinds, sorted for stable output.
func (r *AdapterRegistry) Kinds() []string {
	kinds := r.kinds.ToSlice()
	sort.Strings(kinds)
	return kinds
}
