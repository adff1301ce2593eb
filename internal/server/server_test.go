package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/gmail-send-mcp/internal/mail"
	"github.com/teemow/gmail-send-mcp/internal/mail/mailtest"
	"github.com/teemow/gmail-send-mcp/internal/server"
	"github.com/teemow/gmail-send-mcp/internal/tools/mail_tools"
)

type harness struct {
	server *server.Server
	sender *mailtest.Sender
	creds  *mailtest.CredentialProvider
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sender: &mailtest.Sender{MessageID: "18c2f0a1b2"},
		creds:  &mailtest.CredentialProvider{Account: "default"},
	}
	sc, err := server.NewServerContext(context.Background(), server.Config{
		From:        "me@example.com",
		Credentials: h.creds,
		Sender:      h.sender,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	require.NoError(t, mail_tools.RegisterTools(sc))

	h.server = server.New(sc)
	return h
}

// run feeds lines to the server and returns the raw response lines.
func (h *harness) run(t *testing.T, lines ...string) []string {
	t.Helper()
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	var out bytes.Buffer
	require.NoError(t, h.server.Serve(context.Background(), in, &out))

	var responses []string
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		responses = append(responses, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return responses
}

func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &m), line)
	return m
}

func TestServe_ListTools(t *testing.T) {
	h := newHarness(t)
	out := h.run(t, `{"jsonrpc":"2.0","method":"tools/list","id":1}`)
	require.Len(t, out, 1)

	resp := decodeLine(t, out[0])
	assert.Equal(t, 1.0, resp["id"])
	assert.NotContains(t, resp, "error")

	toolList := resp["result"].(map[string]any)["tools"].([]any)
	require.Len(t, toolList, 1)

	tool := toolList[0].(map[string]any)
	assert.Equal(t, "send_email", tool["name"])
	assert.NotEmpty(t, tool["description"])

	schema := tool["inputSchema"].(map[string]any)
	assert.Equal(t, "object", schema["type"])
	props := schema["properties"].(map[string]any)
	assert.Len(t, props, 4)
	for _, field := range []string{"to", "subject", "body", "attachment_path"} {
		prop, ok := props[field].(map[string]any)
		require.True(t, ok, "missing property %s", field)
		assert.Equal(t, "string", prop["type"])
	}
	assert.ElementsMatch(t, []any{"to", "subject", "body"}, schema["required"])
}

func TestServe_SendEmail(t *testing.T) {
	h := newHarness(t)
	out := h.run(t, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"send_email","arguments":{"to":"a@example.com","subject":"s","body":"b"}},"id":2}`)
	require.Len(t, out, 1)

	resp := decodeLine(t, out[0])
	assert.Equal(t, 2.0, resp["id"])
	assert.NotContains(t, resp, "error")

	result := resp["result"].(map[string]any)
	assert.Equal(t, false, result["isError"])
	text := result["content"].([]any)[0].(map[string]any)["text"]
	assert.Equal(t, "Email sent successfully to a@example.com. Message ID: 18c2f0a1b2", text)

	assert.Equal(t, 1, h.creds.Calls())
	require.Equal(t, 1, h.sender.Calls())
	msg := h.sender.Messages()[0]
	assert.Equal(t, "a@example.com", msg.To)
	assert.Equal(t, "s", msg.Subject)
	assert.Equal(t, "b", msg.Body)
	assert.Equal(t, "me@example.com", msg.From)
	assert.Nil(t, msg.Attachment)
}

func TestServe_MissingAttachment(t *testing.T) {
	h := newHarness(t)
	missing := filepath.Join(t.TempDir(), "nope.pdf")
	args, err := json.Marshal(map[string]any{
		"to": "a@example.com", "subject": "s", "body": "b", "attachment_path": missing,
	})
	require.NoError(t, err)

	out := h.run(t, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"send_email","arguments":`+string(args)+`},"id":3}`)
	require.Len(t, out, 1)

	resp := decodeLine(t, out[0])
	assert.Equal(t, 3.0, resp["id"])
	assert.NotContains(t, resp, "result")

	e := resp["error"].(map[string]any)
	assert.Equal(t, -32000.0, e["code"])
	assert.Contains(t, e["message"], "attachment")
	assert.Equal(t, map[string]any{"kind": "attachment", "tool": "send_email"}, e["data"])

	assert.Equal(t, 0, h.sender.Calls())
	assert.Equal(t, 0, h.creds.Calls())
}

func TestServe_ParseErrorThenValidRequest(t *testing.T) {
	h := newHarness(t)
	out := h.run(t,
		`not json`,
		`{"jsonrpc":"2.0","method":"tools/list","id":5}`,
	)
	require.Len(t, out, 2)

	first := decodeLine(t, out[0])
	assert.Nil(t, first["id"])
	assert.Contains(t, first, "id")
	assert.Equal(t, -32700.0, first["error"].(map[string]any)["code"])

	second := decodeLine(t, out[1])
	assert.Equal(t, 5.0, second["id"])
	assert.Contains(t, second, "result")
}

func TestServe_ResponsesKeepRequestOrder(t *testing.T) {
	h := newHarness(t)
	out := h.run(t,
		`{"jsonrpc":"2.0","method":"tools/list","id":1}`,
		`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"send_email","arguments":{"subject":"s","body":"b"}},"id":2}`,
		`{"jsonrpc":"2.0","method":"initialize","id":3}`,
	)
	require.Len(t, out, 3)

	for i, want := range []float64{1, 2, 3} {
		assert.Equal(t, want, decodeLine(t, out[i])["id"])
	}

	e := decodeLine(t, out[1])["error"].(map[string]any)
	assert.Equal(t, -32602.0, e["code"])
	assert.Equal(t, map[string]any{"field": "to"}, e["data"])
}

func TestServe_NotificationsProduceNoOutput(t *testing.T) {
	h := newHarness(t)
	out := h.run(t,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","method":"tools/list"}`,
		`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"send_email","arguments":{"to":"a@example.com","subject":"s","body":"b"}}}`,
		`{"jsonrpc":"2.0","method":"ping","id":7}`,
	)
	require.Len(t, out, 1)
	assert.Equal(t, 7.0, decodeLine(t, out[0])["id"])

	// Notifications still execute; only the response is suppressed.
	assert.Equal(t, 1, h.sender.Calls())
	assert.Equal(t, int64(4), h.server.Handled())
}

func TestServe_ListToolsIsIdempotent(t *testing.T) {
	h := newHarness(t)
	out := h.run(t,
		`{"jsonrpc":"2.0","method":"tools/list","id":1}`,
		`{"jsonrpc":"2.0","method":"tools/list","id":1}`,
	)
	require.Len(t, out, 2)
	assert.Equal(t, out[0], out[1])
}

func TestServe_ToolFailuresDoNotStopTheLoop(t *testing.T) {
	h := newHarness(t)
	h.sender.Err = &mail.DeliveryError{Reason: "recipient rejected", Err: errors.New("550 5.1.1 internal detail")}
	h.creds.Err = nil

	out := h.run(t,
		`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"send_email","arguments":{"to":"a@example.com","subject":"s","body":"b"}},"id":1}`,
		`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"unknown_tool","arguments":{}},"id":2}`,
		`{"jsonrpc":"2.0","method":"ping","id":3}`,
	)
	require.Len(t, out, 3)

	first := decodeLine(t, out[0])["error"].(map[string]any)
	assert.Equal(t, "delivery", first["data"].(map[string]any)["kind"])
	assert.NotContains(t, out[0], "internal detail")

	second := decodeLine(t, out[1])["error"].(map[string]any)
	assert.Equal(t, -32601.0, second["code"])

	assert.Contains(t, decodeLine(t, out[2]), "result")
}

func TestServe_AuthFailure(t *testing.T) {
	h := newHarness(t)
	h.creds.Err = errors.New("token expired and refresh failed")

	out := h.run(t, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"send_email","arguments":{"to":"a@example.com","subject":"s","body":"b"}},"id":"req-1"}`)
	require.Len(t, out, 1)

	resp := decodeLine(t, out[0])
	assert.Equal(t, "req-1", resp["id"])
	e := resp["error"].(map[string]any)
	assert.Equal(t, "auth", e["data"].(map[string]any)["kind"])
	assert.NotContains(t, out[0], "refresh failed")
	assert.Equal(t, 0, h.sender.Calls())
}

func TestServe_EmptyInput(t *testing.T) {
	h := newHarness(t)
	var out bytes.Buffer
	require.NoError(t, h.server.Serve(context.Background(), strings.NewReader(""), &out))
	assert.Empty(t, out.String())
}

func TestServe_BlankLinesIgnored(t *testing.T) {
	h := newHarness(t)
	out := h.run(t, ``, `   `, `{"jsonrpc":"2.0","method":"ping","id":1}`)
	require.Len(t, out, 1)
}

func TestServe_StopsWhenContextDone(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := h.server.Serve(ctx, strings.NewReader(`{"jsonrpc":"2.0","method":"ping","id":1}`+"\n"), &out)
	require.NoError(t, err)
	assert.Empty(t, out.String())
}

func TestServe_ReadyWhileServing(t *testing.T) {
	h := newHarness(t)
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- h.server.Serve(context.Background(), pr, io.Discard)
	}()

	require.Eventually(t, h.server.Health().IsReady, time.Second, 10*time.Millisecond)
	require.NoError(t, pw.Close())
	require.NoError(t, <-done)
	assert.False(t, h.server.Health().IsReady())
}

func TestServe_DetailedHealthWhileServing(t *testing.T) {
	h := newHarness(t)
	detailed := h.server.Health().DetailedHealthHandler()

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- h.server.Serve(context.Background(), pr, io.Discard)
	}()

	go func() {
		for i := 0; i < 200; i++ {
			if _, err := io.WriteString(pw, `{"jsonrpc":"2.0","method":"notifications/initialized"}`+"\n"); err != nil {
				return
			}
		}
		_ = pw.Close()
	}()

	for i := 0; i < 200; i++ {
		rec := httptest.NewRecorder()
		detailed.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil))
		var resp server.DetailedHealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	}
	require.NoError(t, <-done)

	rec := httptest.NewRecorder()
	detailed.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil))
	var resp server.DetailedHealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.ClientInitialized)
	assert.EqualValues(t, 200, resp.MessagesHandled)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestServe_WriteFailureIsReturned(t *testing.T) {
	h := newHarness(t)
	err := h.server.Serve(context.Background(), strings.NewReader(`{"jsonrpc":"2.0","method":"ping","id":1}`+"\n"), failingWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write response")
}
