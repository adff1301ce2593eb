package jsonrpc

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// Standard JSON-RPC 2.0 error codes plus the server-defined tool execution code.
const (
	CodeParseError     = mcp.PARSE_ERROR
	CodeInvalidRequest = mcp.INVALID_REQUEST
	CodeMethodNotFound = mcp.METHOD_NOT_FOUND
	CodeInvalidParams  = mcp.INVALID_PARAMS
	CodeInternalError  = mcp.INTERNAL_ERROR

	// CodeToolExecution reports a tool that was invoked but failed.
	CodeToolExecution = -32000
)

// ErrParse reports a line that is not valid JSON.
func ErrParse() *Error {
	return &Error{Code: CodeParseError, Message: "Parse error"}
}

// ErrInvalidRequest reports a JSON value that is not a valid request object.
func ErrInvalidRequest(reason string) *Error {
	return &Error{
		Code:    CodeInvalidRequest,
		Message: "Invalid Request",
		Data:    map[string]any{"reason": reason},
	}
}

// ErrMethodNotFound reports an unknown method.
func ErrMethodNotFound(method string) *Error {
	return &Error{
		Code:    CodeMethodNotFound,
		Message: "Method not found",
		Data:    map[string]any{"method": method},
	}
}

// ErrToolNotFound reports a tools/call for a tool that is not registered.
func ErrToolNotFound(tool string) *Error {
	return &Error{
		Code:    CodeMethodNotFound,
		Message: fmt.Sprintf("Method not found: unknown tool %q", tool),
		Data:    map[string]any{"tool": tool},
	}
}

// ErrInvalidParams reports params that fail validation. field may be empty
// when the params object itself is malformed.
func ErrInvalidParams(field, reason string) *Error {
	if field == "" {
		return &Error{
			Code:    CodeInvalidParams,
			Message: "Invalid params: " + reason,
		}
	}
	return &Error{
		Code:    CodeInvalidParams,
		Message: fmt.Sprintf("Invalid params: %s: %s", field, reason),
		Data:    map[string]any{"field": field},
	}
}

// ErrInternal reports an unexpected server failure.
func ErrInternal() *Error {
	return &Error{Code: CodeInternalError, Message: "Internal error"}
}

// ErrToolExecution reports a failed tool invocation. kind is a
// machine-readable failure category.
func ErrToolExecution(tool, kind, message string) *Error {
	return &Error{
		Code:    CodeToolExecution,
		Message: "Tool execution error: " + message,
		Data:    map[string]any{"kind": kind, "tool": tool},
	}
}
