// Package mail_tools provides the send_email MCP tool.
//
// A call runs three steps in order: compose (including reading any
// attachment), acquire a credential, deliver. A failure in one step skips
// the rest, so a missing attachment never triggers authorization or a
// network call.
package mail_tools
