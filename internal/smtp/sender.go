package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	netmail "net/mail"
	netsmtp "net/smtp"
	"strings"
	"time"

	"github.com/teemow/gmail-send-mcp/internal/mail"
)

// DefaultAddr is Gmail's submission endpoint.
const DefaultAddr = "smtp.gmail.com:587"

// DefaultTimeout bounds one delivery when the caller sets no deadline.
const DefaultTimeout = 60 * time.Second

// Config configures a Sender.
type Config struct {
	// Addr is host:port of the submission server.
	Addr string
	// Username is the SMTP login, usually the full email address.
	Username string
	// LocalName is sent in EHLO. Defaults to "localhost".
	LocalName string
	// ImplicitTLS dials TLS directly instead of using STARTTLS.
	ImplicitTLS bool
	// AllowInsecure permits servers without STARTTLS. Only for tests and
	// local relays.
	AllowInsecure bool
	// TLSConfig overrides the TLS client configuration.
	TLSConfig *tls.Config
	// Timeout applies when ctx has no deadline. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Sender implements mail.Sender over SMTP.
type Sender struct {
	config Config
	host   string
	now    func() time.Time
}

// NewSender validates the config and returns a Sender.
func NewSender(config Config) (*Sender, error) {
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	host, _, err := net.SplitHostPort(config.Addr)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP address %q: %w", config.Addr, err)
	}
	if config.Username == "" {
		return nil, fmt.Errorf("SMTP username is required")
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	return &Sender{config: config, host: host, now: time.Now}, nil
}

// Send implements mail.Sender. SMTP returns no message id, so the
// Message-ID header of the submitted message is returned instead.
func (s *Sender) Send(ctx context.Context, msg *mail.Message, cred mail.Credential) (string, error) {
	auth, err := s.auth(cred)
	if err != nil {
		return "", err
	}

	from, err := envelopeAddress(msg.From, s.config.Username)
	if err != nil {
		return "", &mail.DeliveryError{Reason: "the sender address is invalid", Err: err}
	}
	to, err := envelopeAddress(msg.To, "")
	if err != nil {
		return "", &mail.DeliveryError{Reason: "the recipient address is invalid", Err: err}
	}

	raw, err := msg.Bytes(s.now())
	if err != nil {
		return "", fmt.Errorf("failed to render message: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return "", classifyError(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := s.submit(conn, auth, from, to, raw); err != nil {
		if ctx.Err() != nil {
			err = errors.Join(ctx.Err(), err)
		}
		return "", classifyError(err)
	}
	return messageID(raw), nil
}

func (s *Sender) auth(cred mail.Credential) (netsmtp.Auth, error) {
	if ts := cred.TokenSource(); ts != nil {
		token, err := ts.Token()
		if err != nil {
			return nil, &mail.AuthError{Err: err}
		}
		return XOAuth2(s.config.Username, token.AccessToken), nil
	}
	if password := cred.Password(); password != "" {
		return netsmtp.PlainAuth("", s.config.Username, password, s.host), nil
	}
	return nil, &mail.AuthError{Err: errors.New("credential carries no secret")}
}

func (s *Sender) dial(ctx context.Context) (net.Conn, error) {
	if s.config.ImplicitTLS {
		d := &tls.Dialer{Config: s.tlsConfig()}
		return d.DialContext(ctx, "tcp", s.config.Addr)
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", s.config.Addr)
}

func (s *Sender) tlsConfig() *tls.Config {
	if s.config.TLSConfig != nil {
		return s.config.TLSConfig.Clone()
	}
	return &tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}
}

func (s *Sender) submit(conn net.Conn, auth netsmtp.Auth, from, to string, raw []byte) error {
	c, err := netsmtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = c.Close() }()

	localName := s.config.LocalName
	if localName == "" {
		localName = "localhost"
	}
	if err := c.Hello(localName); err != nil {
		return err
	}

	if !s.config.ImplicitTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(s.tlsConfig()); err != nil {
				return err
			}
		} else if !s.config.AllowInsecure {
			return errNoStartTLS
		}
	}

	if ok, _ := c.Extension("AUTH"); !ok {
		return errNoAuth
	}
	if err := c.Auth(auth); err != nil {
		return &authFailure{err: err}
	}

	if err := c.Mail(from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return &rejectedRecipient{err: err}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// envelopeAddress extracts the bare address for MAIL FROM / RCPT TO.
func envelopeAddress(header, fallback string) (string, error) {
	if strings.TrimSpace(header) == "" {
		header = fallback
	}
	addr, err := netmail.ParseAddress(header)
	if err != nil {
		return "", err
	}
	return addr.Address, nil
}

func messageID(raw []byte) string {
	m, err := netmail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	return strings.Trim(m.Header.Get("Message-Id"), "<>")
}
