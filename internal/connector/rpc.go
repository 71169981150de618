package connector

import "encoding/json"

// Wire protocol constants for the subprocess transport. The dialect is
// JSON-RPC 2.0, one object per line, over the child's standard streams.
const (
	jsonRPCVersion  = "2.0"
	protocolVersion = "2024-11-05"

	methodInitialize = "initialize"
	methodNotifyInit = "notifications/initialized"
	methodToolsList  = "tools/list"
	methodToolsCall  = "tools/call"

	clientName = "relay"
)

// rpcRequest represents a JSON-RPC request. Notifications omit the id.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC response carrying either a result or
// an error.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method,omitempty"` // set on inbound notifications
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcErrorBody   `json:"error,omitempty"`
}

// rpcErrorBody is the JSON-RPC error object.
type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// initializeParams is sent with the initialize handshake request.
type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// toolsListResult is the payload of a tools/list response.
type toolsListResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

// toolsCallParams is the payload of a tools/call request.
type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}
