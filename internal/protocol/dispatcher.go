package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mcpd/internal/events"
	"mcpd/internal/task"
	"mcpd/internal/tools"
	"mcpd/internal/version"
)

// Handler processes one method's params into a result value. Returning an
// *RPCError produces an error response; any other error is treated as
// internal.
type Handler func(ctx context.Context, req *Request) (any, *RPCError)

// Dispatcher routes request envelopes to method handlers. It is stateless
// between calls except for request counters; mutable state lives in the
// registry and tracker it references.
type Dispatcher struct {
	registry *tools.Registry
	tracker  *task.Tracker
	logger   *zap.Logger
	handlers map[string]Handler
	activity *events.Log

	requests atomic.Int64
	failures atomic.Int64
}

// NewDispatcher wires the method table.
func NewDispatcher(registry *tools.Registry, tracker *task.Tracker, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		registry: registry,
		tracker:  tracker,
		logger:   logger,
		activity: events.NewLog(events.DefaultCapacity),
	}
	d.handlers = map[string]Handler{
		"initialize":     d.handleInitialize,
		"shutdown":       d.handleShutdown,
		"ping":           d.handlePing,
		"tools/list":     d.handleToolsList,
		"tools/call":     d.handleToolsCall,
		"resources/list": d.handleResourcesList,
		"resources/read": d.handleResourcesRead,
		"prompts/list":   d.handlePromptsList,
		"prompts/get":    d.handlePromptsGet,
		"mcpd/status":    d.handleStatus,
		"mcpd/tasks":     d.handleTasks,
		"mcpd/audit":     d.handleAudit,
		"mcpd/events":    d.handleEvents,
	}
	d.activity.Append(events.ServerStarted, nil)
	if tracker != nil {
		tracker.AttachActivity(d.activity)
	}
	return d
}

// HandleRaw parses one JSON body and dispatches it. A parse failure is the
// only case that yields -32700.
func (d *Dispatcher) HandleRaw(ctx context.Context, raw []byte) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		d.failures.Add(1)
		return NewError(nil, CodeParseError, "Parse error")
	}
	return d.Handle(ctx, &req)
}

// Handle routes a parsed request. Every request yields exactly one
// response; a panic anywhere in a handler is recovered here, logged, and
// sanitized into an internal error that never leaks internals.
func (d *Dispatcher) Handle(ctx context.Context, req *Request) (resp *Response) {
	d.requests.Add(1)

	id := req.ID
	if id == nil {
		// Synthesize an id so the echo-back contract still holds.
		id = uuid.NewString()
	}

	defer func() {
		if r := recover(); r != nil {
			d.failures.Add(1)
			d.logger.Error("handler panicked",
				zap.String("method", req.Method),
				zap.Any("panic", r),
				zap.Stack("stack"))
			resp = NewError(id, CodeInternalError, "Internal error")
		}
	}()

	handler, ok := d.handlers[req.Method]
	if !ok {
		d.failures.Add(1)
		return NewError(id, CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}

	result, rpcErr := handler(ctx, req)
	if rpcErr != nil {
		d.failures.Add(1)
		return &Response{JSONRPC: "2.0", ID: id, Error: rpcErr}
	}
	return NewResult(id, result)
}

func (d *Dispatcher) handleInitialize(ctx context.Context, req *Request) (any, *RPCError) {
	return InitializeResult{
		ProtocolVersion: version.ProtocolVersion,
		Capabilities: map[string]any{
			"tools":     map[string]any{"listChanged": false},
			"resources": map[string]any{"listChanged": false},
			"prompts":   map[string]any{"listChanged": false},
		},
		ServerInfo: ServerInfo{Name: version.ServerName, Version: version.Version},
	}, nil
}

func (d *Dispatcher) handleShutdown(ctx context.Context, req *Request) (any, *RPCError) {
	return map[string]any{"ok": true}, nil
}

func (d *Dispatcher) handlePing(ctx context.Context, req *Request) (any, *RPCError) {
	return map[string]any{}, nil
}

func (d *Dispatcher) handleToolsList(ctx context.Context, req *Request) (any, *RPCError) {
	return map[string]any{"tools": d.registry.List()}, nil
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, req *Request) (any, *RPCError) {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "Invalid params"}
	}
	if params.Name == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "Invalid params: tool name is required"}
	}
	if params.Arguments == nil {
		params.Arguments = map[string]any{}
	}

	d.activity.Append(events.ToolCallStarted, events.ToolCallPayload{Tool: params.Name})
	started := time.Now()
	content, callErr := d.registry.Call(ctx, params.Name, params.Arguments)
	elapsed := time.Since(started).Milliseconds()
	if callErr != nil {
		d.activity.Append(events.ToolCallFailed, events.ToolCallPayload{
			Tool: params.Name, DurationMS: elapsed, Error: callErr.Message,
		})
		return nil, &RPCError{Code: callErr.Code, Message: callErr.Message}
	}
	d.activity.Append(events.ToolCallFinished, events.ToolCallPayload{
		Tool: params.Name, DurationMS: elapsed,
	})
	return content, nil
}

func (d *Dispatcher) handleStatus(ctx context.Context, req *Request) (any, *RPCError) {
	return map[string]any{
		"server":   version.ServerName,
		"version":  version.Version,
		"requests": d.requests.Load(),
		"failures": d.failures.Load(),
		"tools":    len(d.registry.List()),
	}, nil
}

func (d *Dispatcher) handleTasks(ctx context.Context, req *Request) (any, *RPCError) {
	return map[string]any{"tasks": d.tracker.List()}, nil
}

func (d *Dispatcher) handleAudit(ctx context.Context, req *Request) (any, *RPCError) {
	issues := d.registry.Audit()
	return map[string]any{"issues": issues, "clean": len(issues) == 0}, nil
}

func (d *Dispatcher) handleEvents(ctx context.Context, req *Request) (any, *RPCError) {
	var params struct {
		Limit int `json:"limit"`
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "Invalid params"}
		}
	}
	return map[string]any{"events": d.activity.Recent(params.Limit)}, nil
}
