package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

const clientVersion = "1.0.0"

// CommandRunner is an interface for spawning connector processes, allowing
// for testing with mocks
type CommandRunner interface {
	CommandContext(ctx context.Context, name string, arg ...string) Command
}

// Command is an interface over exec.Cmd, allowing for testing with mocks
type Command interface {
	StdinPipe() (io.WriteCloser, error)
	StdoutPipe() (io.ReadCloser, error)
	SetEnv(env []string)
	Start() error
	Wait() error
	Kill() error
}

// execCommand wraps exec.Cmd to implement the Command interface
type execCommand struct {
	*exec.Cmd
}

func (e *execCommand) SetEnv(env []string) {
	e.Cmd.Env = env
}

func (e *execCommand) StdinPipe() (io.WriteCloser, error) {
	return e.Cmd.StdinPipe()
}

func (e *execCommand) StdoutPipe() (io.ReadCloser, error) {
	return e.Cmd.StdoutPipe()
}

func (e *execCommand) Start() error {
	return e.Cmd.Start()
}

func (e *execCommand) Wait() error {
	return e.Cmd.Wait()
}

func (e *execCommand) Kill() error {
	if e.Cmd.Process == nil {
		return nil
	}
	return e.Cmd.Process.Kill()
}

// Interface guard for execCommand
var _ Command = &execCommand{}

// execCommandRunner wraps exec.CommandContext to implement CommandRunner
type execCommandRunner struct{}

func (e *execCommandRunner) CommandContext(ctx context.Context, name string, arg ...string) Command {
	return &execCommand{Cmd: exec.CommandContext(ctx, name, arg...)}
}

// Interface guard for execCommandRunner
var _ CommandRunner = &execCommandRunner{}

// callReply carries either a parsed response or a terminal error to the
// goroutine awaiting a pending request.
type callReply struct {
	resp *rpcResponse
	err  error
}

// stdioSession is the live state of one spawned connector process.
type stdioSession struct {
	cmd     Command
	stdin   io.WriteCloser
	writeMu sync.Mutex
	dead    atomic.Bool
}

// StdioClient speaks newline-delimited JSON-RPC to one connector subprocess.
// Exactly one process is alive per client at a time, shared by all
// concurrent invocations; a crashed process is respawned lazily on next use.
type StdioClient struct {
	cfg     Config
	runner  CommandRunner
	clock   clockwork.Clock
	timeout time.Duration

	mu       sync.Mutex
	sess     *stdioSession
	initWait chan struct{}
	initErr  error

	nextID  atomic.Int64
	pending *xsync.MapOf[int64, chan callReply]

	toolsMu sync.RWMutex
	tools   []ToolDescriptor
}

// NewStdioClient creates a subprocess transport client with a real clock
func NewStdioClient(cfg Config) *StdioClient {
	return NewStdioClientWithClock(cfg, clockwork.NewRealClock())
}

// NewStdioClientWithClock creates a subprocess transport client with a
// custom clock. This is useful for testing with a fake clock
func NewStdioClientWithClock(cfg Config, clock clockwork.Clock) *StdioClient {
	return NewStdioClientWithClockAndRunner(cfg, clock, &execCommandRunner{})
}

// NewStdioClientWithClockAndRunner creates a subprocess transport client
// with a custom clock and command runner. This is useful for testing with
// mocked process execution
func NewStdioClientWithClockAndRunner(cfg Config, clock clockwork.Clock, runner CommandRunner) *StdioClient {
	return &StdioClient{
		cfg:     cfg,
		runner:  runner,
		clock:   clock,
		timeout: cfg.CallTimeout(),
		pending: xsync.NewMapOf[int64, chan callReply](),
	}
}

// Initialize spawns the connector process and performs the handshake.
// Idempotent; concurrent callers share one in-flight attempt so two
// simultaneous initializations never spawn two processes.
func (c *StdioClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.sess != nil && !c.sess.dead.Load() {
		c.mu.Unlock()
		return nil
	}
	if c.initWait != nil {
		wait := c.initWait
		c.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
		err := c.initErr
		c.mu.Unlock()
		return err
	}
	wait := make(chan struct{})
	c.initWait = wait
	c.sess = nil
	c.mu.Unlock()

	sess, err := c.spawnAndHandshake(ctx)

	c.mu.Lock()
	if err == nil {
		c.sess = sess
	}
	c.initErr = err
	c.initWait = nil
	c.mu.Unlock()
	close(wait)
	return err
}

// spawnAndHandshake starts the process, waits for the initialize response
// and emits the initialized notification before the session is usable.
func (c *StdioClient) spawnAndHandshake(ctx context.Context) (*stdioSession, error) {
	cmd := c.runner.CommandContext(context.Background(), c.cfg.Command, c.cfg.Args...)

	if len(c.cfg.Env) > 0 {
		env := os.Environ()
		for key, value := range c.cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", key, value))
		}
		cmd.SetEnv(env)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start connector process: %w", err)
	}

	sess := &stdioSession{cmd: cmd, stdin: stdin}

	go c.readLoop(sess, stdout)
	go func() {
		// Reap the process exactly once; readLoop observes the EOF.
		if waitErr := cmd.Wait(); waitErr != nil {
			zap.L().Debug("Connector process exited",
				zap.String("connector", c.cfg.ID), zap.Error(waitErr))
		}
	}()

	params := initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo{Name: clientName, Version: clientVersion},
	}
	if _, err := c.roundTrip(ctx, sess, methodInitialize, params); err != nil {
		if killErr := cmd.Kill(); killErr != nil {
			zap.L().Debug("Failed to kill connector after handshake failure",
				zap.String("connector", c.cfg.ID), zap.Error(killErr))
		}
		return nil, fmt.Errorf("initialize handshake failed: %w", err)
	}

	if err := c.notify(sess, methodNotifyInit, nil); err != nil {
		zap.L().Warn("Failed to send initialized notification",
			zap.String("connector", c.cfg.ID), zap.Error(err))
	}

	zap.L().Debug("Connector session ready", zap.String("connector", c.cfg.ID))
	return sess, nil
}

// readLoop demultiplexes inbound frames to pending calls. Malformed or
// unmatched frames are logged and dropped, never fatal. When the stream
// ends, every still-pending call is rejected and the session resets so
// the next use respawns.
func (c *StdioClient) readLoop(sess *stdioSession, stdout io.ReadCloser) {
	fr := newFrameReader(stdout)
	var readErr error
	for {
		line, err := fr.Next()
		if err != nil {
			if err != io.EOF {
				readErr = err
			}
			break
		}

		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			zap.L().Debug("Dropping malformed frame",
				zap.String("connector", c.cfg.ID), zap.Error(err))
			continue
		}
		if resp.Method != "" {
			// Server-initiated notification; nothing routes on these.
			zap.L().Debug("Ignoring server notification",
				zap.String("connector", c.cfg.ID), zap.String("method", resp.Method))
			continue
		}
		ch, ok := c.pending.LoadAndDelete(resp.ID)
		if !ok {
			zap.L().Debug("Dropping response with no pending request",
				zap.String("connector", c.cfg.ID), zap.Int64("id", resp.ID))
			continue
		}
		ch <- callReply{resp: &resp}
	}

	c.sessionEnded(sess, readErr)
}

// sessionEnded resets state after the process stream closed. Tool caches
// do not survive a restart.
func (c *StdioClient) sessionEnded(sess *stdioSession, cause error) {
	sess.dead.Store(true)

	c.mu.Lock()
	if c.sess == sess {
		c.sess = nil
	}
	c.mu.Unlock()

	c.ClearCache()

	exitErr := &ProcessExitError{Connector: c.cfg.ID, Cause: cause}
	c.failPending(exitErr)

	zap.L().Debug("Connector session ended",
		zap.String("connector", c.cfg.ID), zap.Error(cause))
}

// failPending rejects every pending call with the given error. Each entry
// is removed exactly once, so a concurrent response or timeout cannot
// double-deliver.
func (c *StdioClient) failPending(err error) {
	c.pending.Range(func(id int64, _ chan callReply) bool {
		if ch, ok := c.pending.LoadAndDelete(id); ok {
			ch <- callReply{err: err}
		}
		return true
	})
}

// session returns the live session or an error when none is alive.
func (c *StdioClient) session() (*stdioSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.sess.dead.Load() {
		return nil, &ProcessExitError{Connector: c.cfg.ID}
	}
	return c.sess, nil
}

// send serializes one frame and writes it to the child's stdin. Writes are
// serialized so concurrent calls cannot interleave partial frames.
func (c *StdioClient) send(sess *stdioSession, req rpcRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	data = append(data, '\n')

	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	if _, err := sess.stdin.Write(data); err != nil {
		return fmt.Errorf("failed to write request: %w", err)
	}
	return nil
}

// notify sends a fire-and-forget notification (no id, no response).
func (c *StdioClient) notify(sess *stdioSession, method string, params any) error {
	return c.send(sess, rpcRequest{JSONRPC: jsonRPCVersion, Method: method, Params: params})
}

// roundTrip sends one request and waits for its response, the per-call
// timeout, or process exit, whichever comes first. A timeout fails only
// this call; the process stays alive for subsequent requests.
func (c *StdioClient) roundTrip(ctx context.Context, sess *stdioSession, method string, params any) (*rpcResponse, error) {
	id := c.nextID.Add(1)
	ch := make(chan callReply, 1)
	c.pending.Store(id, ch)

	req := rpcRequest{JSONRPC: jsonRPCVersion, ID: id, Method: method, Params: params}
	if err := c.send(sess, req); err != nil {
		c.pending.Delete(id)
		return nil, err
	}

	select {
	case reply := <-ch:
		return replyResult(reply)
	case <-c.clock.After(c.timeout):
		if _, ok := c.pending.LoadAndDelete(id); ok {
			return nil, &TimeoutError{Connector: c.cfg.ID, Method: method, Timeout: c.timeout.String()}
		}
		// The reader claimed the entry first; its reply is in flight.
		return replyResult(<-ch)
	case <-ctx.Done():
		if _, ok := c.pending.LoadAndDelete(id); ok {
			return nil, ctx.Err()
		}
		return replyResult(<-ch)
	}
}

// replyResult unpacks a callReply, surfacing remote error messages verbatim.
func replyResult(reply callReply) (*rpcResponse, error) {
	if reply.err != nil {
		return nil, reply.err
	}
	if reply.resp.Error != nil {
		return nil, &RPCError{Code: reply.resp.Error.Code, Message: reply.resp.Error.Message}
	}
	return reply.resp, nil
}

// ListTools returns the connector's tool descriptors. The cache has no
// expiry; it is invalidated only by ClearCache or a process restart.
func (c *StdioClient) ListTools(ctx context.Context, forceRefresh bool) ([]ToolDescriptor, error) {
	if !forceRefresh {
		c.toolsMu.RLock()
		cached := c.tools
		c.toolsMu.RUnlock()
		if cached != nil {
			return cached, nil
		}
	}

	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}
	sess, err := c.session()
	if err != nil {
		return nil, err
	}

	resp, err := c.roundTrip(ctx, sess, methodToolsList, map[string]any{})
	if err != nil {
		return nil, err
	}

	var result toolsListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to parse tools/list result: %w", err)
	}
	if result.Tools == nil {
		result.Tools = []ToolDescriptor{}
	}

	c.toolsMu.Lock()
	c.tools = result.Tools
	c.toolsMu.Unlock()

	return result.Tools, nil
}

// CallTool invokes one named tool with the given arguments and returns the
// raw result.
func (c *StdioClient) CallTool(ctx context.Context, name string, arguments map[string]any) (*CallResult, error) {
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}
	sess, err := c.session()
	if err != nil {
		return nil, err
	}

	if arguments == nil {
		arguments = map[string]any{}
	}
	resp, err := c.roundTrip(ctx, sess, methodToolsCall, toolsCallParams{Name: name, Arguments: arguments})
	if err != nil {
		return nil, err
	}

	var result CallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		// Opaque payloads that do not match the content shape are passed
		// through untouched.
		return &CallResult{Content: resp.Result}, nil
	}
	if result.Content == nil {
		result.Content = resp.Result
	}
	return &result, nil
}

// HealthCheck reports whether the connector can be initialized and lists
// its tools.
func (c *StdioClient) HealthCheck(ctx context.Context) bool {
	if err := c.Initialize(ctx); err != nil {
		return false
	}
	_, err := c.ListTools(ctx, false)
	return err == nil
}

// ClearCache drops the cached tool descriptors.
func (c *StdioClient) ClearCache() {
	c.toolsMu.Lock()
	c.tools = nil
	c.toolsMu.Unlock()
}

// Close terminates the process and clears caches and pending state. Safe
// to call when no process is running.
func (c *StdioClient) Close() error {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	c.mu.Unlock()

	c.ClearCache()

	if sess == nil {
		return nil
	}
	if err := sess.cmd.Kill(); err != nil {
		return fmt.Errorf("failed to kill connector process: %w", err)
	}
	return nil
}
