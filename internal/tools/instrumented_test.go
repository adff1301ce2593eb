package tools

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/teemow/gmail-send-mcp/internal/instrumentation"
)

type kindError struct{ kind string }

func (e kindError) Error() string         { return e.kind + " failed" }
func (e kindError) Kind() string          { return e.kind }
func (e kindError) PublicMessage() string { return e.kind + " failed publicly" }

func TestInstrumentedToolHandler_NoInstrumentation(t *testing.T) {
	called := false
	handler := func(context.Context, map[string]any) (*Result, error) {
		called = true
		return TextResult("ok"), nil
	}

	wrapped := InstrumentedToolHandler("test_tool", Instrumentation{}, handler)
	result, err := wrapped(context.Background(), map[string]any{})

	require.NoError(t, err)
	assert.True(t, called)
	assert.NotNil(t, result)
}

func TestInstrumentedToolHandler_RecordsMetricsAndAudit(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := instrumentation.NewMetrics(mp.Meter("test"), false)
	require.NoError(t, err)

	var buf bytes.Buffer
	audit := instrumentation.NewAuditLogger(
		slog.New(slog.NewTextHandler(&buf, nil)),
		instrumentation.AuditLoggingConfig{Enabled: true},
	)

	inst := Instrumentation{Metrics: metrics, AuditLogger: audit, Account: "work", Transport: "smtp"}

	ok := InstrumentedToolHandler("send_email", inst, func(context.Context, map[string]any) (*Result, error) {
		return TextResult("sent"), nil
	})
	failing := InstrumentedToolHandler("send_email", inst, func(context.Context, map[string]any) (*Result, error) {
		return nil, kindError{kind: "delivery"}
	})

	_, err = ok(context.Background(), map[string]any{"to": "jane@example.com"})
	require.NoError(t, err)
	_, err = failing(context.Background(), map[string]any{"to": "jane@example.com"})
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "mcp_tool_invocations_total" {
				continue
			}
			for _, p := range m.Data.(metricdata.Sum[int64]).DataPoints {
				total += p.Value
			}
		}
	}
	assert.Equal(t, int64(2), total)

	out := buf.String()
	assert.Contains(t, out, "tool_executed")
	assert.Contains(t, out, "tool_failed")
	assert.Contains(t, out, "error_kind=delivery")
	assert.Contains(t, out, "recipient_domain=example.com")
	assert.NotContains(t, out, "jane@example.com")
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "auth", ErrorKind(kindError{kind: "auth"}))
	assert.Equal(t, "auth", ErrorKind(errors.Join(errors.New("ctx"), kindError{kind: "auth"})))
	assert.Equal(t, "arguments", ErrorKind(&ArgumentError{Field: "to", Reason: "is required"}))
	assert.Equal(t, KindInternal, ErrorKind(errors.New("boom")))
}
