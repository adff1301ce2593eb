// Package instrumentation provides OpenTelemetry instrumentation for the
// gmail-send-mcp server.
//
// # Metrics
//
// JSON-RPC Metrics:
//   - rpc_requests_total: Counter of handled messages by method and response code
//   - rpc_request_duration_seconds: Histogram of request handling durations
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total: Counter of tool invocations by tool and status
//   - mcp_tool_duration_seconds: Histogram of tool execution durations
//
// Mail Metrics:
//   - mail_deliveries_total: Counter of delivery attempts by transport and status
//   - mail_delivery_duration_seconds: Histogram of delivery durations
//
// OAuth Metrics:
//   - oauth_token_acquisitions_total: Counter of credential acquisitions by result
//
// Method labels are bounded by NormalizeMethod since method names arrive
// from the client.
//
// # Output streams
//
// Standard output carries the JSON-RPC stream. The stdout exporters are
// therefore pointed at standard error, and Prometheus metrics are only
// reachable over HTTP when a metrics address is configured.
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: gmail-send-mcp)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_PII: audit log controls
package instrumentation
