package instrumentation

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

const (
	testRecipient = "jane@example.com"
	testDomain    = "example.com"
	testAccount   = "work"
	testTool      = "send_email"
)

func TestToolInvocation_NewAndComplete(t *testing.T) {
	ti := NewToolInvocation(testTool)

	if ti.Tool != testTool {
		t.Errorf("Tool = %q, want %q", ti.Tool, testTool)
	}
	if ti.StartTime.IsZero() {
		t.Error("StartTime should not be zero")
	}

	ti.CompleteSuccess()

	if !ti.Success {
		t.Error("Success should be true")
	}
	if ti.Duration < 0 {
		t.Errorf("Duration should be non-negative, got %v", ti.Duration)
	}
	if ti.Status() != StatusSuccess {
		t.Errorf("Status() = %q, want %q", ti.Status(), StatusSuccess)
	}
}

func TestToolInvocation_CompleteWithFailure(t *testing.T) {
	ti := NewToolInvocation(testTool).
		WithAccount(testAccount).
		WithRecipient(testRecipient).
		WithTransport(TransportSMTP)

	ti.Complete(false, "delivery", errors.New("550 mailbox unavailable"))

	if ti.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", ti.Status(), StatusError)
	}
	if ti.ErrorKind != "delivery" {
		t.Errorf("ErrorKind = %q, want delivery", ti.ErrorKind)
	}
	if ti.Error != "550 mailbox unavailable" {
		t.Errorf("Error = %q", ti.Error)
	}
}

func TestToolInvocation_LogAttrs(t *testing.T) {
	ti := NewToolInvocation(testTool).
		WithAccount(testAccount).
		WithRecipient(testRecipient)
	ti.CompleteSuccess()

	anonymized := attrMap(ti.LogAttrs(false))
	if anonymized["recipient_domain"] != testDomain {
		t.Errorf("recipient_domain = %q, want %q", anonymized["recipient_domain"], testDomain)
	}
	if _, ok := anonymized["recipient"]; ok {
		t.Error("recipient must not be logged without PII")
	}

	full := attrMap(ti.LogAttrs(true))
	if full["recipient"] != testRecipient {
		t.Errorf("recipient = %q, want %q", full["recipient"], testRecipient)
	}
	if full["account"] != testAccount {
		t.Errorf("account = %q, want %q", full["account"], testAccount)
	}
}

func attrMap(attrs []slog.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Value.String()
	}
	return m
}

func TestAuditLogger_LogToolInvocation(t *testing.T) {
	tests := []struct {
		name       string
		config     AuditLoggingConfig
		success    bool
		wantOutput []string
		wantAbsent []string
	}{
		{
			name:       "success without PII",
			config:     AuditLoggingConfig{Enabled: true},
			success:    true,
			wantOutput: []string{"tool_executed", "level=INFO", "recipient_domain=" + testDomain},
			wantAbsent: []string{testRecipient},
		},
		{
			name:       "failure with PII",
			config:     AuditLoggingConfig{Enabled: true, IncludePII: true},
			success:    false,
			wantOutput: []string{"tool_failed", "level=WARN", "recipient=" + testRecipient, "error_kind=auth"},
		},
		{
			name:       "disabled",
			config:     AuditLoggingConfig{Enabled: false},
			success:    true,
			wantAbsent: []string{"tool_executed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			al := NewAuditLogger(logger, tt.config)

			ti := NewToolInvocation(testTool).WithRecipient(testRecipient)
			if tt.success {
				ti.CompleteSuccess()
			} else {
				ti.Complete(false, "auth", errors.New("token revoked"))
			}
			al.LogToolInvocation(ti)

			out := buf.String()
			for _, want := range tt.wantOutput {
				if !strings.Contains(out, want) {
					t.Errorf("output %q missing %q", out, want)
				}
			}
			for _, absent := range tt.wantAbsent {
				if strings.Contains(out, absent) {
					t.Errorf("output %q must not contain %q", out, absent)
				}
			}
		})
	}
}

func TestAuditLogger_NilIsNoop(t *testing.T) {
	var al *AuditLogger
	al.LogToolInvocation(NewToolInvocation(testTool).CompleteSuccess())
}
