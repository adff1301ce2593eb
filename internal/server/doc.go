// Package server implements the stdio JSON-RPC loop of the MCP server.
//
// # Key Components
//
// ServerContext holds the process-wide collaborators: the tool registry,
// the credential provider, the mail sender and the instrumentation
// recorders.
//
// Dispatcher handles exactly one framed line at a time:
//
//	AwaitingLine -> ParsingJSON -> Routing -> Handling | ErrorTerminal -> Responding
//
// Every request with a non-null id receives exactly one response;
// notifications never do. Handler failures, including panics, become error
// responses and never stop the loop.
//
// Server drives the Dispatcher over an io.Reader/io.Writer pair and stops
// cleanly at end of input.
//
// MetricsServer optionally exposes Prometheus metrics and health endpoints
// over HTTP, since standard output is reserved for protocol traffic.
package server
