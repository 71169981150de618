package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dorcha-inc/relay/internal/config"
	"github.com/dorcha-inc/relay/internal/connector"
	"github.com/dorcha-inc/relay/internal/core"
	"github.com/dorcha-inc/relay/internal/ratelimit"
	"github.com/dorcha-inc/relay/internal/routing"
)

const defaultDefinitionsFile = "definitions.yaml"

// runtime is everything a command needs after loading configuration.
type runtime struct {
	cfg      *config.RelayConfig
	defs     *config.Definitions
	registry *routing.Registry
	engine   *routing.Engine
	items    *routing.MemoryItemStore
}

// loadRuntime loads the service config and the definitions file, then
// wires the stores, the connector registry, and the routing engine.
func loadRuntime(configPath, definitionsPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if definitionsPath == "" {
		definitionsPath = cfg.DefinitionsFile
	}
	if definitionsPath == "" {
		definitionsPath = defaultDefinitionsFile
	}

	defs, err := config.LoadDefinitions(definitionsPath)
	if err != nil {
		return nil, err
	}

	configs := routing.NewMemoryConfigStore(defs.Connectors...)
	registry := routing.NewRegistry(configs, envCredentialStore{})

	items := routing.NewMemoryItemStore()
	engine := routing.NewEngine(
		routing.NewMemoryRuleStore(defs.Rules...),
		routing.NewMemoryTargetStore(defs.Targets...),
		items,
		registry,
		routing.NewAdapterRegistry(),
		ratelimit.New(cfg.RatePerMinute, cfg.RateBurst),
	)

	return &runtime{cfg: cfg, defs: defs, registry: registry, engine: engine, items: items}, nil
}

// envCredentialStore resolves connector credentials from the process
// environment: TODOIST_OAUTH_TOKEN beats TODOIST_API_KEY for a connector
// with id "todoist", each also honored with the RELAY_ prefix.
type envCredentialStore struct{}

func (envCredentialStore) Credentials(_ context.Context, connectorID string) (connector.Credentials, error) {
	key := strings.ToUpper(strings.ReplaceAll(connectorID, "-", "_"))
	return connector.Credentials{
		OAuthAccessToken: core.GetEnv(key + "_OAUTH_TOKEN"),
		APIKey:           core.GetEnv(key + "_API_KEY"),
	}, nil
}

// findConfig returns the definition for one connector id.
func findConfig(defs *config.Definitions, id string) (connector.Config, error) {
	for _, cfg := range defs.Connectors {
		if cfg.ID == id {
			return cfg, nil
		}
	}
	return connector.Config{}, fmt.Errorf("unknown connector id %q", id)
}
