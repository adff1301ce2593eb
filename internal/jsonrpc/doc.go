// Package jsonrpc implements the wire layer of the server: newline-delimited
// framing of JSON-RPC 2.0 messages, the request/response types and the
// response writer.
//
// Routing and tool execution live in package server; this package knows
// nothing about tools or mail.
package jsonrpc
