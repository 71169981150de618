package routing

import (
	"context"
	"fmt"
	"sync"

	"github.com/dorcha-inc/relay/internal/connector"
)

// RuleStore supplies the active routing rules for one owner. Rules are
// authored externally and re-read each time an item is routed.
type RuleStore interface {
	ActiveRules(ctx context.Context, owner string) ([]Rule, error)
}

// TargetStore supplies the static distribution targets for one owner.
type TargetStore interface {
	Targets(ctx context.Context, owner string) ([]Target, error)
}

// ItemStore is the external durable record of captured items. The engine
// only ever mutates item fields through it.
type ItemStore interface {
	UpdateFields(ctx context.Context, itemID string, fields map[string]any) error
}

// CredentialStore supplies per-connector authentication material. relay
// never persists secrets itself.
type CredentialStore interface {
	Credentials(ctx context.Context, connectorID string) (connector.Credentials, error)
}

// ConfigStore supplies connector configurations by id and by owner.
type ConfigStore interface {
	Config(ctx context.Context, id string) (connector.Config, bool, error)
	Configs(ctx context.Context, owner string) ([]connector.Config, error)
}

// MemoryRuleStore is an in-memory RuleStore for single-node use and tests.
type MemoryRuleStore struct {
	mu    sync.RWMutex
	rules []Rule
}

func NewMemoryRuleStore(rules ...Rule) *MemoryRuleStore {
	return &MemoryRuleStore{rules: rules}
}

func (s *MemoryRuleStore) Add(rule Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, rule)
}

func (s *MemoryRuleStore) ActiveRules(_ context.Context, owner string) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Rule
	for _, rule := range s.rules {
		if rule.Active && (rule.Owner == "" || owner == "" || rule.Owner == owner) {
			out = append(out, rule)
		}
	}
	return out, nil
}

// MemoryTargetStore is an in-memory TargetStore.
type MemoryTargetStore struct {
	mu      sync.RWMutex
	targets []Target
}

func NewMemoryTargetStore(targets ...Target) *MemoryTargetStore {
	return &MemoryTargetStore{targets: targets}
}

func (s *MemoryTargetStore) Add(target Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = append(s.targets, target)
}

func (s *MemoryTargetStore) Targets(_ context.Context, owner string) ([]Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Target
	for _, target := range s.targets {
		if target.Owner == "" || owner == "" || target.Owner == owner {
			out = append(out, target)
		}
	}
	return out, nil
}

// MemoryItemStore is an in-memory ItemStore.
type MemoryItemStore struct {
	mu    sync.RWMutex
	items map[string]*Item
}

func NewMemoryItemStore(items ...*Item) *MemoryItemStore {
	store := &MemoryItemStore{items: make(map[string]*Item, len(items))}
	for _, item := range items {
		store.items[item.ID] = item
	}
	return store
}

func (s *MemoryItemStore) Put(item *Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
}

func (s *MemoryItemStore) Get(itemID string) (*Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemID]
	return item, ok
}

func (s *MemoryItemStore) UpdateFields(_ context.Context, itemID string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return fmt.Errorf("item %q not found", itemID)
	}
	if item.Metadata == nil {
		item.Metadata = make(map[string]any, len(fields))
	}
	for key, value := range fields {
		switch key {
		case "category":
			item.Category = stringify(value)
		case "summary":
			item.Summary = stringify(value)
		case "content":
			item.Content = stringify(value)
		default:
			item.Metadata[key] = value
		}
	}
	return nil
}

// MemoryCredentialStore is an in-memory CredentialStore. A connector with
// no entry gets zero credentials, not an error; whether that is fatal
// depends on the connector's auth kind.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	creds map[string]connector.Credentials
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{creds: make(map[string]connector.Credentials)}
}

func (s *MemoryCredentialStore) Set(connectorID string, creds connector.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[connectorID] = creds
}

func (s *MemoryCredentialStore) Credentials(_ context.Context, connectorID string) (connector.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds[connectorID], nil
}

// MemoryConfigStore is an in-memory ConfigStore.
type MemoryConfigStore struct {
	mu      sync.RWMutex
	configs []connector.Config
}

func NewMemoryConfigStore(configs ...connector.Config) *MemoryConfigStore {
	return &MemoryConfigStore{configs: configs}
}

func (s *MemoryConfigStore) Add(cfg connector.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs = append(s.configs, cfg)
}

func (s *MemoryConfigStore) Config(_ context.Context, id string) (connector.Config, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cfg := range s.configs {
		if cfg.ID == id {
			return cfg, true, nil
		}
	}
	return connector.Config{}, false, nil
}

func (s *MemoryConfigStore) Configs(_ context.Context, owner string) ([]connector.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []connector.Config
	for _, cfg := range s.configs {
		if cfg.Owner == "" || owner == "" || cfg.Owner == owner {
			out = append(out, cfg)
		}
	}
	return out, nil
}
