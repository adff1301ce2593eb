package smtp

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	netsmtp "net/smtp"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/gmail-send-mcp/internal/mail"
)

// fakeServer is a minimal in-process SMTP submission server.
type fakeServer struct {
	ln net.Listener

	rejectAuth bool
	rejectRcpt bool
	noAuth     bool

	mu    sync.Mutex
	conns int
	auth  []string
	from  []string
	rcpt  []string
	data  []string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeServer{ln: ln}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go f.serve(conn)
		}
	}()
	return f
}

func (f *fakeServer) serve(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	f.mu.Lock()
	f.conns++
	f.mu.Unlock()

	tc := textproto.NewConn(conn)
	_ = tc.PrintfLine("220 fake.example ESMTP ready")

	for {
		line, err := tc.ReadLine()
		if err != nil {
			return
		}
		verb, arg, _ := strings.Cut(line, " ")

		f.mu.Lock()
		switch strings.ToUpper(verb) {
		case "EHLO":
			if f.noAuth {
				_ = tc.PrintfLine("250-fake.example\r\n250 8BITMIME")
			} else {
				_ = tc.PrintfLine("250-fake.example\r\n250-AUTH PLAIN XOAUTH2\r\n250 8BITMIME")
			}
		case "AUTH":
			f.auth = append(f.auth, arg)
			if f.rejectAuth {
				_ = tc.PrintfLine("535 5.7.8 Username and Password not accepted")
			} else {
				_ = tc.PrintfLine("235 2.7.0 Accepted")
			}
		case "*":
			_ = tc.PrintfLine("501 5.5.2 Cancelled")
		case "MAIL":
			f.from = append(f.from, arg)
			_ = tc.PrintfLine("250 2.1.0 OK")
		case "RCPT":
			f.rcpt = append(f.rcpt, arg)
			if f.rejectRcpt {
				_ = tc.PrintfLine("550 5.1.1 mailbox unavailable secret-detail")
			} else {
				_ = tc.PrintfLine("250 2.1.5 OK")
			}
		case "DATA":
			_ = tc.PrintfLine("354 Go ahead")
			f.mu.Unlock()
			body, err := tc.ReadDotBytes()
			f.mu.Lock()
			if err != nil {
				f.mu.Unlock()
				return
			}
			f.data = append(f.data, string(body))
			_ = tc.PrintfLine("250 2.0.0 OK queued")
		case "QUIT":
			_ = tc.PrintfLine("221 2.0.0 Bye")
			f.mu.Unlock()
			return
		case "RSET", "NOOP":
			_ = tc.PrintfLine("250 2.0.0 OK")
		default:
			_ = tc.PrintfLine("502 5.5.1 Unrecognized command")
		}
		f.mu.Unlock()
	}
}

func (f *fakeServer) snapshot() (conns int, auth, from, rcpt, data []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns, append([]string(nil), f.auth...), append([]string(nil), f.from...),
		append([]string(nil), f.rcpt...), append([]string(nil), f.data...)
}

func newTestSender(t *testing.T, f *fakeServer) *Sender {
	t.Helper()
	s, err := NewSender(Config{
		Addr:          f.ln.Addr().String(),
		Username:      "me@example.com",
		AllowInsecure: true,
	})
	require.NoError(t, err)
	return s
}

func testMessage() *mail.Message {
	return &mail.Message{
		From:    "Me <me@example.com>",
		To:      "a@example.com",
		Subject: "Hi",
		Body:    "Hello there",
	}
}

func TestSender_PasswordCredential(t *testing.T) {
	f := newFakeServer(t)
	s := newTestSender(t, f)

	id, err := s.Send(context.Background(), testMessage(), mail.NewPasswordCredential("default", "app-password"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, auth, from, rcpt, data := f.snapshot()
	require.Len(t, auth, 1)
	wantPlain := base64.StdEncoding.EncodeToString([]byte("\x00me@example.com\x00app-password"))
	assert.Equal(t, "PLAIN "+wantPlain, auth[0])

	require.Len(t, from, 1)
	assert.True(t, strings.HasPrefix(from[0], "FROM:<me@example.com>"), from[0])
	require.Len(t, rcpt, 1)
	assert.Equal(t, "TO:<a@example.com>", rcpt[0])

	require.Len(t, data, 1)
	assert.Contains(t, data[0], "Subject: Hi")
	assert.Contains(t, data[0], "<"+id+">")
}

func TestSender_TokenCredential(t *testing.T) {
	f := newFakeServer(t)
	s := newTestSender(t, f)

	cred := mail.NewTokenCredential("default", oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "ya29.token"}))
	_, err := s.Send(context.Background(), testMessage(), cred)
	require.NoError(t, err)

	_, auth, _, _, _ := f.snapshot()
	require.Len(t, auth, 1)
	want := base64.StdEncoding.EncodeToString([]byte("user=me@example.com\x01auth=Bearer ya29.token\x01\x01"))
	assert.Equal(t, "XOAUTH2 "+want, auth[0])
}

func TestSender_AuthRejected(t *testing.T) {
	f := newFakeServer(t)
	f.rejectAuth = true
	s := newTestSender(t, f)

	_, err := s.Send(context.Background(), testMessage(), mail.NewPasswordCredential("default", "wrong"))

	var authErr *mail.AuthError
	require.ErrorAs(t, err, &authErr)

	_, _, from, _, _ := f.snapshot()
	assert.Empty(t, from)
}

func TestSender_RecipientRejected(t *testing.T) {
	f := newFakeServer(t)
	f.rejectRcpt = true
	s := newTestSender(t, f)

	_, err := s.Send(context.Background(), testMessage(), mail.NewPasswordCredential("default", "pw"))

	var deliveryErr *mail.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Contains(t, deliveryErr.Reason, "recipient was rejected")
	assert.NotContains(t, deliveryErr.PublicMessage(), "secret-detail")

	_, _, _, _, data := f.snapshot()
	assert.Empty(t, data)
}

func TestSender_RequiresStartTLS(t *testing.T) {
	f := newFakeServer(t)
	s, err := NewSender(Config{Addr: f.ln.Addr().String(), Username: "me@example.com"})
	require.NoError(t, err)

	_, err = s.Send(context.Background(), testMessage(), mail.NewPasswordCredential("default", "pw"))

	var deliveryErr *mail.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Contains(t, deliveryErr.Reason, "STARTTLS")
}

func TestSender_ServerWithoutAuth(t *testing.T) {
	f := newFakeServer(t)
	f.noAuth = true
	s := newTestSender(t, f)

	_, err := s.Send(context.Background(), testMessage(), mail.NewPasswordCredential("default", "pw"))

	var deliveryErr *mail.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Contains(t, deliveryErr.Reason, "authentication")
}

func TestSender_TokenErrorDoesNotConnect(t *testing.T) {
	f := newFakeServer(t)
	s := newTestSender(t, f)

	cred := mail.NewTokenCredential("default", oauth2.ReuseTokenSource(nil, tokenSourceFunc(func() (*oauth2.Token, error) {
		return nil, errors.New("refresh failed")
	})))
	_, err := s.Send(context.Background(), testMessage(), cred)

	var authErr *mail.AuthError
	require.ErrorAs(t, err, &authErr)

	conns, _, _, _, _ := f.snapshot()
	assert.Zero(t, conns)
}

func TestSender_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s, err := NewSender(Config{Addr: addr, Username: "me@example.com", AllowInsecure: true})
	require.NoError(t, err)

	_, err = s.Send(context.Background(), testMessage(), mail.NewPasswordCredential("default", "pw"))

	var deliveryErr *mail.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Contains(t, deliveryErr.Reason, "could not reach")
}

func TestSender_CancelledContext(t *testing.T) {
	f := newFakeServer(t)
	s := newTestSender(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Send(ctx, testMessage(), mail.NewPasswordCredential("default", "pw"))

	var deliveryErr *mail.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
}

func TestNewSender(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "defaults address", config: Config{Username: "me@example.com"}},
		{name: "missing username", config: Config{Addr: "smtp.example.com:587"}, wantErr: true},
		{name: "address without port", config: Config{Addr: "smtp.example.com", Username: "me@example.com"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSender(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "smtp.gmail.com", s.host)
		})
	}
}

func TestXOAuth2_RefusesPlaintextRemote(t *testing.T) {
	a := XOAuth2("me@example.com", "token")

	_, _, err := a.Start(&netsmtp.ServerInfo{Name: "smtp.gmail.com"})
	assert.Error(t, err)

	mech, resp, err := a.Start(&netsmtp.ServerInfo{Name: "smtp.gmail.com", TLS: true})
	require.NoError(t, err)
	assert.Equal(t, "XOAUTH2", mech)
	assert.Equal(t, "user=me@example.com\x01auth=Bearer token\x01\x01", string(resp))

	next, err := a.Next([]byte(`{"status":"400"}`), true)
	require.NoError(t, err)
	assert.Empty(t, next)
}

func TestEnvelopeAddress(t *testing.T) {
	got, err := envelopeAddress("Jane Doe <jane@example.com>", "")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", got)

	got, err = envelopeAddress("", "fallback@example.com")
	require.NoError(t, err)
	assert.Equal(t, "fallback@example.com", got)

	_, err = envelopeAddress("not an address", "")
	assert.Error(t, err)
}

type tokenSourceFunc func() (*oauth2.Token, error)

func (f tokenSourceFunc) Token() (*oauth2.Token, error) { return f() }
