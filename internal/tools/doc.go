// Package tools holds the static tool registry served over tools/list and
// tools/call.
//
// Each entry pairs an mcp-go descriptor with a handler. Argument validation
// reads the descriptor's input schema, so the advertised schema and the
// enforced one cannot drift apart.
package tools
