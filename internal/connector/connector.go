package connector

import (
	"context"
	"fmt"
	"maps"

	"github.com/jonboulle/clockwork"

	"github.com/dorcha-inc/relay/internal/core"
)

// Transport is the transport-agnostic invocation surface. Exactly two
// implementations exist, selected once at construction: StdioClient for
// subprocess connectors and RemoteClient for remote ones.
type Transport interface {
	ListTools(ctx context.Context, forceRefresh bool) ([]ToolDescriptor, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) (*CallResult, error)
	HealthCheck(ctx context.Context) bool
	ClearCache()
	Close() error
}

// Interface guards for the closed set of transports
var (
	_ Transport = &StdioClient{}
	_ Transport = &RemoteClient{}
)

// ContentTransformer maps item fields into a tool's declared input schema
// before invocation. Implementations live outside this package; relay only
// invokes them.
type ContentTransformer interface {
	Transform(ctx context.Context, fields map[string]any, schema map[string]any) (map[string]any, error)
}

// DistributeInput is one distribution attempt against a connector.
type DistributeInput struct {
	ItemID string
	Fields map[string]any
	// Tool is the explicit per-target tool override; empty falls back to
	// the connector default and then the family default.
	Tool string
}

// Delivery is the normalized result of one successful distribution.
type Delivery struct {
	Tool        string
	ExternalID  string
	ExternalURL string
	Result      *CallResult
}

// Option configures optional connector collaborators.
type Option func(*options)

type options struct {
	clock       clockwork.Clock
	runner      CommandRunner
	transformer ContentTransformer
	transport   Transport
}

// WithClock injects a custom clock, useful for testing with a fake clock
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithRunner injects a custom command runner for subprocess connectors
func WithRunner(runner CommandRunner) Option {
	return func(o *options) { o.runner = runner }
}

// WithTransformer installs a content transformation step applied before
// each tool call
func WithTransformer(t ContentTransformer) Option {
	return func(o *options) { o.transformer = t }
}

// WithTransport overrides transport construction entirely, useful for
// testing the facade with a stub
func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

// Connector hides transport choice and authentication plumbing behind one
// invocation surface.
type Connector struct {
	cfg         Config
	clock       clockwork.Clock
	transport   Transport
	transformer ContentTransformer
}

// New constructs the connector for a config, selecting the transport by
// kind and resolving authentication material. A connector whose auth kind
// demands a credential that cannot be resolved fails here, before any
// transport attempt.
func New(cfg Config, creds Credentials, opts ...Option) (*Connector, error) {
	o := options{
		clock:  clockwork.NewRealClock(),
		runner: &execCommandRunner{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	token, source := ResolveBearer(creds)
	if (cfg.Auth == AuthOAuth || cfg.Auth == AuthAPIKey) && token == "" && source != SourceEnv {
		return nil, fmt.Errorf("connector %s: missing credential for auth kind %s", cfg.ID, cfg.Auth)
	}

	transport := o.transport
	if transport == nil {
		switch cfg.Transport {
		case TransportSubprocess:
			if token != "" {
				injectBearer(&cfg, token)
			}
			transport = NewStdioClientWithClockAndRunner(cfg, o.clock, o.runner)
		case TransportRemote:
			if token != "" {
				cfg.BearerToken = token
			}
			transport = NewRemoteClientWithClock(cfg, o.clock)
		default:
			return nil, fmt.Errorf("connector %s: unsupported transport kind %q", cfg.ID, cfg.Transport)
		}
	}

	return &Connector{
		cfg:         cfg,
		clock:       o.clock,
		transport:   transport,
		transformer: o.transformer,
	}, nil
}

// injectBearer hands the resolved token to a subprocess connector the way
// its family expects it: an environment variable, or an extra argument for
// tools that only accept header-style auth via command-line flags.
func injectBearer(cfg *Config, token string) {
	profile := profileFor(cfg.Family)
	switch profile.Injection {
	case InjectArgv:
		args := make([]string, 0, len(cfg.Args)+2)
		args = append(args, cfg.Args...)
		cfg.Args = append(args, profile.Flag, token)
	default:
		env := make(map[string]string, len(cfg.Env)+1)
		maps.Copy(env, cfg.Env)
		env[profile.EnvVar] = token
		cfg.Env = env
	}
}

// ID returns the connector id.
func (c *Connector) ID() string { return c.cfg.ID }

// Name returns the connector display name, falling back to the id.
func (c *Connector) Name() string {
	if c.cfg.Name != "" {
		return c.cfg.Name
	}
	return c.cfg.ID
}

// Config returns the connector configuration.
func (c *Connector) Config() Config { return c.cfg }

// ListTools delegates to the active transport.
func (c *Connector) ListTools(ctx context.Context, forceRefresh bool) ([]ToolDescriptor, error) {
	return c.transport.ListTools(ctx, forceRefresh)
}

// CallTool delegates to the active transport.
func (c *Connector) CallTool(ctx context.Context, name string, arguments map[string]any) (*CallResult, error) {
	return c.transport.CallTool(ctx, name, arguments)
}

// HealthCheck delegates to the active transport.
func (c *Connector) HealthCheck(ctx context.Context) bool {
	return c.transport.HealthCheck(ctx)
}

// Close releases the transport.
func (c *Connector) Close() error {
	return c.transport.Close()
}

// ResolveTool picks the tool to invoke: explicit target override first,
// then the connector's configured default, then the family default.
func (c *Connector) ResolveTool(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if c.cfg.DefaultTool != "" {
		return c.cfg.DefaultTool
	}
	return profileFor(c.cfg.Family).DefaultTool
}

// Distribute routes one item to this connector: resolves the tool, runs
// the optional content transformation against the tool's declared input
// schema, invokes the tool, and normalizes the result.
func (c *Connector) Distribute(ctx context.Context, in DistributeInput) (*Delivery, error) {
	tool := c.ResolveTool(in.Tool)

	arguments := in.Fields
	if c.transformer != nil {
		transformed, err := c.transformer.Transform(ctx, in.Fields, c.toolSchema(ctx, tool))
		if err != nil {
			return nil, fmt.Errorf("content transform failed: %w", err)
		}
		arguments = transformed
	}

	start := c.clock.Now()
	result, err := c.transport.CallTool(ctx, tool, arguments)
	core.LogToolCall(c.cfg.ID, tool, c.clock.Since(start).Seconds(), err)
	if err != nil {
		return nil, err
	}
	if result.IsError {
		return nil, fmt.Errorf("tool %s reported an error: %s", tool, summarizeContent(result.Content))
	}

	externalID, externalURL := result.ExternalRef()
	return &Delivery{
		Tool:        tool,
		ExternalID:  externalID,
		ExternalURL: externalURL,
		Result:      result,
	}, nil
}

// toolSchema looks up the declared input schema for a tool. A listing
// failure degrades to a nil schema rather than blocking the call.
func (c *Connector) toolSchema(ctx context.Context, tool string) map[string]any {
	tools, err := c.transport.ListTools(ctx, false)
	if err != nil {
		return nil
	}
	for _, descriptor := range tools {
		if descriptor.Name == tool {
			return descriptor.InputSchema
		}
	}
	return nil
}

const maxErrorContentLen = 200

// summarizeContent renders an opaque content payload for error messages.
func summarizeContent(content []byte) string {
	s := string(content)
	if len(s) > maxErrorContentLen {
		return s[:maxErrorContentLen] + "..."
	}
	return s
}
