package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrCode      = "code"
	attrStatus    = "status"
	attrResult    = "result"
	attrTool      = "tool"
	attrAccount   = "account"
	attrTransport = "transport"
)

// CodeOK is the code label for requests answered with a result.
const CodeOK = "ok"

// Metrics provides methods for recording observability metrics. The zero
// value and a nil *Metrics are valid and record nothing.
type Metrics struct {
	// JSON-RPC metrics
	rpcRequestsTotal   metric.Int64Counter
	rpcRequestDuration metric.Float64Histogram

	// MCP Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// Mail delivery metrics
	deliveriesTotal  metric.Int64Counter
	deliveryDuration metric.Float64Histogram

	// OAuth metrics
	tokenAcquisitionsTotal metric.Int64Counter

	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.rpcRequestsTotal, err = meter.Int64Counter(
		"rpc_requests_total",
		metric.WithDescription("Total number of JSON-RPC messages handled"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rpc_requests_total counter: %w", err)
	}

	m.rpcRequestDuration, err = meter.Float64Histogram(
		"rpc_request_duration_seconds",
		metric.WithDescription("JSON-RPC request handling duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rpc_request_duration_seconds histogram: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	m.deliveriesTotal, err = meter.Int64Counter(
		"mail_deliveries_total",
		metric.WithDescription("Total number of outgoing mail delivery attempts"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail_deliveries_total counter: %w", err)
	}

	m.deliveryDuration, err = meter.Float64Histogram(
		"mail_delivery_duration_seconds",
		metric.WithDescription("Outgoing mail delivery duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail_delivery_duration_seconds histogram: %w", err)
	}

	m.tokenAcquisitionsTotal, err = meter.Int64Counter(
		"oauth_token_acquisitions_total",
		metric.WithDescription("Total number of OAuth credential acquisitions by result"),
		metric.WithUnit("{acquisition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_acquisitions_total counter: %w", err)
	}

	return m, nil
}

// RecordRPCRequest records one handled JSON-RPC message. code is the error
// code of the response, or 0 when a result was returned.
func (m *Metrics) RecordRPCRequest(ctx context.Context, method string, code int, duration time.Duration) {
	if m == nil || m.rpcRequestsTotal == nil || m.rpcRequestDuration == nil {
		return
	}

	codeLabel := CodeOK
	if code != 0 {
		codeLabel = strconv.Itoa(code)
	}

	method = NormalizeMethod(method)
	m.rpcRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrCode, codeLabel),
	))
	m.rpcRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(attrMethod, method),
	))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
// The account label is only added when detailed labels are enabled.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status, account string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && account != "" {
		attrs = append(attrs, attribute.String(attrAccount, account))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordDelivery records one delivery attempt through a transport.
func (m *Metrics) RecordDelivery(ctx context.Context, transport, status string, duration time.Duration) {
	if m == nil || m.deliveriesTotal == nil || m.deliveryDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTransport, transport),
		attribute.String(attrStatus, status),
	}

	m.deliveriesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.deliveryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordTokenAcquisition records how a credential was obtained.
// Result should be one of the TokenResult constants.
func (m *Metrics) RecordTokenAcquisition(ctx context.Context, result string) {
	if m == nil || m.tokenAcquisitionsTotal == nil {
		return
	}

	m.tokenAcquisitionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}
