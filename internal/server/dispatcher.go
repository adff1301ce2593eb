package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/gmail-send-mcp/internal/instrumentation"
	"github.com/teemow/gmail-send-mcp/internal/jsonrpc"
	"github.com/teemow/gmail-send-mcp/internal/logging"
	"github.com/teemow/gmail-send-mcp/internal/tools"
)

// MethodPing is the MCP liveness probe.
const MethodPing = "ping"

const notificationPrefix = "notifications/"

// Instructions is returned to clients on initialize.
const Instructions = "Use send_email to send a plain-text email from the configured Gmail account. " +
	"attachment_path must be a path readable by this server process."

// SupportedProtocolVersions lists the MCP revisions this server accepts, oldest first.
var SupportedProtocolVersions = []string{"2024-11-05", "2025-03-26", "2025-06-18", mcp.LATEST_PROTOCOL_VERSION}

type initializeParams struct {
	ProtocolVersion string              `json:"protocolVersion"`
	ClientInfo      *mcp.Implementation `json:"clientInfo,omitempty"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    serverCapabilities `json:"capabilities"`
	ServerInfo      mcp.Implementation `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

type serverCapabilities struct {
	Tools struct{} `json:"tools"`
}

type listToolsResult struct {
	Tools []mcp.Tool `json:"tools"`
}

type callToolParams struct {
	Name      json.RawMessage `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Dispatcher turns one raw line into at most one response. It holds no
// per-request state and is driven by a single goroutine. Initialized may be
// called from any goroutine.
type Dispatcher struct {
	sc          *ServerContext
	logger      *slog.Logger
	initialized atomic.Bool
}

// NewDispatcher creates a dispatcher over the context's registry.
func NewDispatcher(sc *ServerContext) *Dispatcher {
	return &Dispatcher{
		sc:     sc,
		logger: logging.WithOperation(sc.Logger(), "dispatch"),
	}
}

// Handle processes one line. It returns nil when no response must be sent.
func (d *Dispatcher) Handle(ctx context.Context, line []byte) *jsonrpc.Response {
	start := time.Now()

	req, id, rpcErr := parseRequest(line)
	if rpcErr != nil {
		d.logger.Debug("rejected message",
			logging.RequestID(id),
			slog.Int("code", rpcErr.Code),
		)
		d.sc.Metrics().RecordRPCRequest(ctx, "", rpcErr.Code, time.Since(start))
		return jsonrpc.NewErrorResponse(id, rpcErr)
	}

	method, _ := req.MethodName()
	ctx, span := instrumentation.StartRequestSpan(ctx, method, req.ID.String())
	defer span.End()

	result, rpcErr := d.route(ctx, method, req)

	code := 0
	if rpcErr != nil {
		code = rpcErr.Code
		instrumentation.SetSpanError(span, rpcErr)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	d.sc.Metrics().RecordRPCRequest(ctx, method, code, time.Since(start))

	d.logger.Debug("handled message",
		logging.Method(method),
		logging.RequestID(req.ID),
		slog.Duration(logging.KeyDuration, time.Since(start)),
		slog.Int("code", code),
	)

	if req.IsNotification() {
		return nil
	}
	if rpcErr != nil {
		return jsonrpc.NewErrorResponse(req.ID, rpcErr)
	}
	return jsonrpc.NewResult(req.ID, result)
}

// Initialized reports whether the client sent notifications/initialized.
func (d *Dispatcher) Initialized() bool {
	return d.initialized.Load()
}

// parseRequest validates the envelope. On failure it returns the id to echo,
// which is nil whenever the id itself could not be trusted.
func parseRequest(line []byte) (*jsonrpc.Request, jsonrpc.ID, *jsonrpc.Error) {
	if !json.Valid(line) {
		return nil, nil, jsonrpc.ErrParse()
	}

	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil, jsonrpc.ErrInvalidRequest("request must be a JSON object")
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, salvageID(trimmed), jsonrpc.ErrInvalidRequest("malformed request object")
	}

	if !req.ID.Valid() {
		return nil, nil, jsonrpc.ErrInvalidRequest("id must be a string, number or null")
	}
	if req.JSONRPC != jsonrpc.Version {
		return nil, req.ID, jsonrpc.ErrInvalidRequest(`jsonrpc must be "2.0"`)
	}
	if _, ok := req.MethodName(); !ok {
		return nil, req.ID, jsonrpc.ErrInvalidRequest("method must be a string")
	}

	return &req, req.ID, nil
}

func salvageID(obj []byte) jsonrpc.ID {
	var probe struct {
		ID jsonrpc.ID `json:"id"`
	}
	if err := json.Unmarshal(obj, &probe); err != nil || !probe.ID.Valid() {
		return nil
	}
	return probe.ID
}

// route dispatches on method. A panic in any handler becomes an internal error.
func (d *Dispatcher) route(ctx context.Context, method string, req *jsonrpc.Request) (result any, rpcErr *jsonrpc.Error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while handling request",
				logging.Method(method),
				logging.RequestID(req.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			result, rpcErr = nil, jsonrpc.ErrInternal()
		}
	}()

	switch method {
	case string(mcp.MethodInitialize):
		return d.handleInitialize(req.Params)
	case MethodPing:
		return struct{}{}, nil
	case string(mcp.MethodToolsList):
		return listToolsResult{Tools: d.sc.Registry().List()}, nil
	case string(mcp.MethodToolsCall):
		return d.handleToolsCall(ctx, req.Params)
	}

	if strings.HasPrefix(method, notificationPrefix) && req.IsNotification() {
		d.handleNotification(method)
		return nil, nil
	}
	return nil, jsonrpc.ErrMethodNotFound(method)
}

func (d *Dispatcher) handleInitialize(raw json.RawMessage) (any, *jsonrpc.Error) {
	var params initializeParams
	if !isAbsent(raw) {
		if !isObject(raw) {
			return nil, jsonrpc.ErrInvalidParams("params", "must be an object")
		}
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, jsonrpc.ErrInvalidParams("protocolVersion", "must be a string")
		}
	}

	version := negotiateProtocolVersion(params.ProtocolVersion)

	attrs := []any{slog.String("protocol_version", version)}
	if params.ClientInfo != nil {
		attrs = append(attrs, slog.String("client", params.ClientInfo.Name+"/"+params.ClientInfo.Version))
	}
	d.logger.Info("client initialized session", attrs...)

	return initializeResult{
		ProtocolVersion: version,
		ServerInfo: mcp.Implementation{
			Name:    d.sc.config.Name,
			Version: d.sc.config.Version,
		},
		Instructions: Instructions,
	}, nil
}

// negotiateProtocolVersion echoes a supported requested version and falls
// back to the latest one.
func negotiateProtocolVersion(requested string) string {
	if slices.Contains(SupportedProtocolVersions, requested) {
		return requested
	}
	return mcp.LATEST_PROTOCOL_VERSION
}

func (d *Dispatcher) handleNotification(method string) {
	switch method {
	case "notifications/initialized":
		d.initialized.Store(true)
		d.logger.Debug("client reported initialized")
	case "notifications/cancelled":
		// Requests run to completion before the next line is read, so
		// there is never anything in flight to cancel.
		d.logger.Debug("ignoring cancellation notification")
	default:
		d.logger.Debug("ignoring notification", logging.Method(method))
	}
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, raw json.RawMessage) (any, *jsonrpc.Error) {
	if isAbsent(raw) || !isObject(raw) {
		return nil, jsonrpc.ErrInvalidParams("params", "must be an object")
	}

	var params callToolParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, jsonrpc.ErrInvalidParams("params", "must be an object")
	}

	var name string
	if len(params.Name) == 0 || json.Unmarshal(params.Name, &name) != nil {
		return nil, jsonrpc.ErrInvalidParams("name", "must be a string")
	}

	args := map[string]any{}
	if !isAbsent(params.Arguments) {
		if !isObject(params.Arguments) {
			return nil, jsonrpc.ErrInvalidParams("arguments", "must be an object")
		}
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return nil, jsonrpc.ErrInvalidParams("arguments", "must be an object")
		}
	}

	result, err := d.sc.Registry().Call(ctx, name, args)
	if err != nil {
		return nil, d.toolError(name, err)
	}
	return result, nil
}

// toolError maps a registry or handler error onto the wire. Raw error text
// is logged, never returned.
func (d *Dispatcher) toolError(tool string, err error) *jsonrpc.Error {
	var unknown *tools.UnknownToolError
	if errors.As(err, &unknown) {
		return jsonrpc.ErrToolNotFound(unknown.Name)
	}

	var argErr *tools.ArgumentError
	if errors.As(err, &argErr) {
		return jsonrpc.ErrInvalidParams(argErr.Field, argErr.Reason)
	}

	d.logger.Warn("tool execution failed",
		logging.Tool(tool),
		slog.String("kind", tools.ErrorKind(err)),
		logging.Err(err),
	)

	var execErr tools.ExecutionError
	if errors.As(err, &execErr) {
		return jsonrpc.ErrToolExecution(tool, execErr.Kind(), execErr.PublicMessage())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return jsonrpc.ErrToolExecution(tool, tools.KindInternal, "request was cancelled")
	}
	return jsonrpc.ErrToolExecution(tool, tools.KindInternal, fmt.Sprintf("%s failed unexpectedly", tool))
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
