// Package cmd implements the command-line interface for gmail-send-mcp.
//
// This package provides the following commands:
//   - serve: Run the MCP server on standard input and output
//   - auth: Authorize a Google account and store its token
//   - tools: Print markdown documentation for the exposed tools
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
