// Package connector implements the transports and the unified invocation
// facade used to reach external tool-providing endpoints. A connector is
// reached either through a long-lived subprocess speaking newline-delimited
// JSON-RPC over its standard streams, or through a remote HTTP endpoint.
package connector

import (
	"encoding/json"
	"time"
)

// TransportKind selects how a connector is reached.
type TransportKind string

const (
	TransportSubprocess TransportKind = "subprocess"
	TransportRemote     TransportKind = "remote"
)

func ValidTransportKinds() map[TransportKind]struct{} {
	return map[TransportKind]struct{}{
		TransportSubprocess: {},
		TransportRemote:     {},
	}
}

func IsValidTransportKind(kind TransportKind) bool {
	_, ok := ValidTransportKinds()[kind]
	return ok
}

// AuthKind selects how a connector authenticates against its tool endpoint.
type AuthKind string

const (
	AuthAPIKey AuthKind = "api_key"
	AuthOAuth  AuthKind = "oauth"
	AuthNone   AuthKind = "none"
)

func ValidAuthKinds() map[AuthKind]struct{} {
	return map[AuthKind]struct{}{
		AuthAPIKey: {},
		AuthOAuth:  {},
		AuthNone:   {},
	}
}

func IsValidAuthKind(kind AuthKind) bool {
	_, ok := ValidAuthKinds()[kind]
	return ok
}

const (
	// DefaultCallTimeout bounds a single request to a connector.
	DefaultCallTimeout = 30 * time.Second
	// DefaultMaxRetries bounds retry attempts for the remote transport.
	DefaultMaxRetries = 3
	// DefaultCacheTTL is how long remote tool listings stay fresh.
	DefaultCacheTTL = 5 * time.Minute
)

// Config describes one configured connector. Configs are authored by an
// external admin surface and are read-only here; one config may back many
// concurrent invocations but at most one live subprocess at a time.
type Config struct {
	ID     string `yaml:"id" mapstructure:"id" validate:"required"`
	Owner  string `yaml:"owner,omitempty" mapstructure:"owner"`
	Name   string `yaml:"name,omitempty" mapstructure:"name"`
	Family Family `yaml:"family,omitempty" mapstructure:"family"`

	Transport TransportKind `yaml:"transport" mapstructure:"transport" validate:"required,oneof=subprocess remote"`

	// Subprocess transport parameters
	Command string            `yaml:"command,omitempty" mapstructure:"command" validate:"required_if=Transport subprocess"`
	Args    []string          `yaml:"args,omitempty" mapstructure:"args"`
	Env     map[string]string `yaml:"env,omitempty" mapstructure:"env"`

	// Remote transport parameters
	BaseURL     string `yaml:"base_url,omitempty" mapstructure:"base_url" validate:"required_if=Transport remote,omitempty,url"`
	BearerToken string `yaml:"bearer_token,omitempty" mapstructure:"bearer_token"`

	Auth        AuthKind `yaml:"auth,omitempty" mapstructure:"auth" validate:"omitempty,oneof=api_key oauth none"`
	DefaultTool string   `yaml:"default_tool,omitempty" mapstructure:"default_tool"`

	TimeoutSeconds  int `yaml:"timeout_seconds,omitempty" mapstructure:"timeout_seconds" validate:"gte=0"`
	MaxRetries      int `yaml:"max_retries,omitempty" mapstructure:"max_retries" validate:"gte=0"`
	CacheTTLSeconds int `yaml:"cache_ttl_seconds,omitempty" mapstructure:"cache_ttl_seconds" validate:"gte=0"`
}

// CallTimeout returns the configured per-call timeout or the default.
func (c *Config) CallTimeout() time.Duration {
	if c.TimeoutSeconds > 0 {
		return time.Duration(c.TimeoutSeconds) * time.Second
	}
	return DefaultCallTimeout
}

// RetryBudget returns the configured retry attempt count or the default.
func (c *Config) RetryBudget() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return DefaultMaxRetries
}

// CacheTTL returns the configured tool cache time-to-live or the default.
func (c *Config) CacheTTL() time.Duration {
	if c.CacheTTLSeconds > 0 {
		return time.Duration(c.CacheTTLSeconds) * time.Second
	}
	return DefaultCacheTTL
}

// ToolDescriptor describes one named tool a connector exposes. The input
// schema is opaque here; it is only handed to the content transformer.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

// CallResult is the raw result of one tool invocation. Immutable once
// produced. Content is the opaque payload as the connector returned it.
type CallResult struct {
	Content json.RawMessage `json:"content,omitempty"`
	IsError bool            `json:"isError,omitempty"`
	Meta    map[string]any  `json:"_meta,omitempty"`
}

// ExternalRef extracts the external id and url a tool reported for the
// created resource, when present in the result metadata.
func (r *CallResult) ExternalRef() (id string, url string) {
	if r == nil || r.Meta == nil {
		return "", ""
	}
	if v, ok := r.Meta["id"].(string); ok {
		id = v
	}
	if v, ok := r.Meta["url"].(string); ok {
		url = v
	}
	return id, url
}
