// Package config provides configuration management for relay: loading the
// service configuration with precedence, environment variable overrides,
// and the yaml definitions file for connectors, rules, and targets.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/dorcha-inc/relay/internal/connector"
	"github.com/dorcha-inc/relay/internal/routing"
)

const (
	DefaultRatePerMinute  = 60
	DefaultRateBurst      = 10
	DefaultTimeoutSeconds = 30
)

type RelayLogLevel string

const (
	RelayLogLevelDebug RelayLogLevel = "debug"
	RelayLogLevelInfo  RelayLogLevel = "info"
	RelayLogLevelWarn  RelayLogLevel = "warn"
	RelayLogLevelError RelayLogLevel = "error"
	RelayLogLevelFatal RelayLogLevel = "fatal"
)

func ValidLogLevels() map[RelayLogLevel]struct{} {
	return map[RelayLogLevel]struct{}{
		RelayLogLevelDebug: {},
		RelayLogLevelInfo:  {},
		RelayLogLevelWarn:  {},
		RelayLogLevelError: {},
		RelayLogLevelFatal: {},
	}
}

func IsValidLogLevel(level RelayLogLevel) bool {
	_, ok := ValidLogLevels()[level]
	return ok
}

type RelayLogFormat string

const (
	RelayLogFormatPretty RelayLogFormat = "pretty"
	RelayLogFormatJSON   RelayLogFormat = "json"
)

func ValidLogFormats() map[RelayLogFormat]struct{} {
	return map[RelayLogFormat]struct{}{
		RelayLogFormatPretty: {},
		RelayLogFormatJSON:   {},
	}
}

func IsValidLogFormat(format RelayLogFormat) bool {
	_, ok := ValidLogFormats()[format]
	return ok
}

// RelayConfig is the service configuration: the global rate budget, the
// default per-call timeout, logging, and where the definitions file lives.
type RelayConfig struct {
	DefinitionsFile string         `yaml:"definitions_file,omitempty" mapstructure:"definitions_file"`
	RatePerMinute   int            `yaml:"rate_per_minute,omitempty" mapstructure:"rate_per_minute"`
	RateBurst       int            `yaml:"rate_burst,omitempty" mapstructure:"rate_burst"`
	TimeoutSeconds  int            `yaml:"timeout_seconds,omitempty" mapstructure:"timeout_seconds"`
	LogFormat       RelayLogFormat `yaml:"log_format,omitempty" mapstructure:"log_format"`
	LogLevel        string         `yaml:"log_level,omitempty" mapstructure:"log_level"`
}

// Default returns the built-in configuration.
func Default() *RelayConfig {
	return &RelayConfig{
		RatePerMinute:  DefaultRatePerMinute,
		RateBurst:      DefaultRateBurst,
		TimeoutSeconds: DefaultTimeoutSeconds,
		LogFormat:      RelayLogFormatJSON,
		LogLevel:       string(RelayLogLevelInfo),
	}
}

// Load reads the service configuration. Precedence: explicit path, then
// relay.yaml in the working directory, then RELAY_-prefixed environment
// variables over file values, then defaults.
func Load(configPath string) (*RelayConfig, error) {
	v := viper.New()
	v.SetDefault("rate_per_minute", DefaultRatePerMinute)
	v.SetDefault("rate_burst", DefaultRateBurst)
	v.SetDefault("timeout_seconds", DefaultTimeoutSeconds)
	v.SetDefault("log_format", string(RelayLogFormatJSON))
	v.SetDefault("log_level", string(RelayLogLevelInfo))

	v.SetEnvPrefix("RELAY")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("relay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
			zap.L().Debug("No config file found, using defaults")
		}
	}

	cfg := &RelayConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.LogFormat != "" && !IsValidLogFormat(cfg.LogFormat) {
		return nil, fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}
	if cfg.LogLevel != "" && !IsValidLogLevel(RelayLogLevel(cfg.LogLevel)) {
		return nil, fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}

	return cfg, nil
}

// Definitions is the operator-authored routing surface for a single-node
// deployment: connectors, rules, and static targets in one yaml document.
type Definitions struct {
	Connectors []connector.Config `yaml:"connectors,omitempty"`
	Rules      []routing.Rule     `yaml:"rules,omitempty"`
	Targets    []routing.Target   `yaml:"targets,omitempty"`
}

// LoadDefinitions reads and validates a definitions file. Each connector
// config must pass struct validation before anything is returned.
func LoadDefinitions(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions file: %w", err)
	}

	defs := &Definitions{}
	if err := yaml.Unmarshal(data, defs); err != nil {
		return nil, fmt.Errorf("failed to parse definitions file: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	for i := range defs.Connectors {
		if err := validate.Struct(&defs.Connectors[i]); err != nil {
			return nil, fmt.Errorf("invalid connector %q: %w", defs.Connectors[i].ID, err)
		}
		if !connector.IsValidTransportKind(defs.Connectors[i].Transport) {
			return nil, fmt.Errorf("invalid connector %q: unknown transport kind %q",
				defs.Connectors[i].ID, defs.Connectors[i].Transport)
		}
		if defs.Connectors[i].Auth != "" && !connector.IsValidAuthKind(defs.Connectors[i].Auth) {
			return nil, fmt.Errorf("invalid connector %q: unknown auth kind %q",
				defs.Connectors[i].ID, defs.Connectors[i].Auth)
		}
	}

	return defs, nil
}
