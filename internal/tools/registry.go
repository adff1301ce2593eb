package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handler executes a tool with validated arguments.
type Handler func(ctx context.Context, args map[string]any) (*Result, error)

// Tool is one registry entry.
type Tool struct {
	Descriptor mcp.Tool
	Handler    Handler
}

// Registry maps tool names to entries in registration order. It is built
// at startup and read-only afterwards.
type Registry struct {
	tools []Tool
	index map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds a tool. Names must be unique and non-empty.
func (r *Registry) Register(t Tool) error {
	name := t.Descriptor.Name
	if name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", name)
	}
	if _, exists := r.index[name]; exists {
		return fmt.Errorf("tool %q is already registered", name)
	}
	r.index[name] = len(r.tools)
	r.tools = append(r.tools, t)
	return nil
}

// List returns the descriptors in registration order.
func (r *Registry) List() []mcp.Tool {
	out := make([]mcp.Tool, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.Descriptor
	}
	return out
}

// Lookup finds a tool by name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	i, ok := r.index[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// Call validates args against the tool's schema and runs its handler.
// It returns *UnknownToolError, *ArgumentError, or whatever the handler
// returns.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (*Result, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := ValidateArguments(t.Descriptor.InputSchema, args); err != nil {
		return nil, err
	}
	return t.Handler(ctx, args)
}
