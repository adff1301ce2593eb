// Package logging provides structured logging utilities for gmail-send-mcp.
//
// The server speaks JSON-RPC on stdout, so every diagnostic goes to stderr
// through log/slog. This package builds that logger and centralizes the
// attribute names used across the codebase.
//
// # Usage Patterns
//
//	logger := logging.NewLogger(os.Stderr, debug)
//	logger.Info("request handled",
//	    logging.Method("tools/call"),
//	    logging.Status(logging.StatusSuccess))
//
// # Security Considerations
//
//   - Recipient addresses are hashed with AnonymizeEmail before logging
//   - Credentials are never logged; SanitizeToken only reveals a length
package logging
