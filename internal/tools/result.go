package tools

import "github.com/mark3labs/mcp-go/mcp"

// Result is the tools/call success payload. IsError is always serialized.
type Result struct {
	Content []mcp.Content `json:"content"`
	IsError bool          `json:"isError"`
}

// TextResult returns a successful result with a single text block.
func TextResult(text string) *Result {
	return &Result{
		Content: []mcp.Content{mcp.NewTextContent(text)},
	}
}
