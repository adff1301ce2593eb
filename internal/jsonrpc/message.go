package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// Version is the only protocol version accepted in the jsonrpc member.
const Version = mcp.JSONRPC_VERSION

// ID is a raw JSON-RPC request id. It is kept as the original bytes so the
// response echoes exactly what the client sent. A nil ID marshals as null.
type ID json.RawMessage

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if len(id) == 0 {
		return []byte("null"), nil
	}
	return id, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	*id = append((*id)[:0], data...)
	return nil
}

// IsNull reports whether the id is absent or the JSON literal null.
func (id ID) IsNull() bool {
	return len(id) == 0 || bytes.Equal(bytes.TrimSpace(id), []byte("null"))
}

// Valid reports whether the id is null, a string or a number.
func (id ID) Valid() bool {
	if id.IsNull() {
		return true
	}
	var v any
	if err := json.Unmarshal(id, &v); err != nil {
		return false
	}
	switch v.(type) {
	case string, float64:
		return true
	default:
		return false
	}
}

// String returns the id as it appeared on the wire, or "null".
func (id ID) String() string {
	if id.IsNull() {
		return "null"
	}
	return string(id)
}

// Request is a decoded JSON-RPC 2.0 request or notification.
// Method is left raw so that a non-string method can be reported as an
// invalid request instead of a parse error.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  json.RawMessage `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      ID              `json:"id,omitempty"`
}

// MethodName returns the method when it is a JSON string.
func (r *Request) MethodName() (string, bool) {
	if len(r.Method) == 0 {
		return "", false
	}
	var name string
	if err := json.Unmarshal(r.Method, &name); err != nil {
		return "", false
	}
	return name, true
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool {
	return r.ID.IsNull()
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      ID     `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is the error member of a JSON-RPC response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface so handlers can return protocol
// errors directly.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewResult builds a success response.
func NewResult(id ID, result any) *Response {
	return &Response{JSONRPC: Version, ID: id, Result: result}
}

// NewErrorResponse builds an error response.
func NewErrorResponse(id ID, err *Error) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: err}
}
