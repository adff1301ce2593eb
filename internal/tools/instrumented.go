package tools

import (
	"context"
	"errors"
	"time"

	"github.com/teemow/gmail-send-mcp/internal/instrumentation"
)

// Instrumentation bundles the recorders a handler wrapper reports to. Any
// field may be nil.
type Instrumentation struct {
	Metrics     *instrumentation.Metrics
	AuditLogger *instrumentation.AuditLogger

	// Account and Transport are attached to audit records.
	Account   string
	Transport string
}

// InstrumentedToolHandler wraps a tool handler with a span, metrics and an
// audit record. The recipient is taken from the "to" argument when present.
//
// Usage:
//
//	registry.Register(tools.Tool{Descriptor: t, Handler: tools.InstrumentedToolHandler("send_email", inst, handler)})
func InstrumentedToolHandler(toolName string, inst Instrumentation, handler Handler) Handler {
	return func(ctx context.Context, args map[string]any) (*Result, error) {
		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		defer span.End()

		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName).
			WithSpanContext(ctx).
			WithAccount(inst.Account).
			WithTransport(inst.Transport)
		if to, ok := args["to"].(string); ok {
			invocation.WithRecipient(to)
		}

		result, err := handler(ctx, args)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
			invocation.Complete(false, ErrorKind(err), err)
			instrumentation.SetSpanError(span, err)
		} else {
			invocation.CompleteSuccess()
			instrumentation.SetSpanSuccess(span)
		}

		inst.Metrics.RecordToolInvocation(ctx, toolName, status, inst.Account, duration)
		inst.AuditLogger.LogToolInvocation(invocation)

		return result, err
	}
}

// ErrorKind returns the kind of an ExecutionError in err's chain, "" for
// nil, and KindInternal otherwise. Argument errors report "arguments".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var execErr ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Kind()
	}
	var argErr *ArgumentError
	if errors.As(err, &argErr) {
		return "arguments"
	}
	return KindInternal
}
