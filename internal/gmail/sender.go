package gmail

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/gmail-send-mcp/internal/mail"
)

// MaxMessageSize is the largest raw message the Gmail API accepts.
const MaxMessageSize = 25 * 1024 * 1024

// DefaultTimeout bounds a single send request.
const DefaultTimeout = 60 * time.Second

// Me is the Gmail API alias for the authenticated user.
const Me = "me"

// Sender implements mail.Sender on top of the Gmail API.
type Sender struct {
	endpoint string
	base     http.RoundTripper
	timeout  time.Duration
	now      func() time.Time
}

// Option configures a Sender.
type Option func(*Sender)

// WithEndpoint overrides the Gmail API base URL.
func WithEndpoint(endpoint string) Option {
	return func(s *Sender) { s.endpoint = endpoint }
}

// WithBaseTransport sets the transport under the OAuth2 layer.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(s *Sender) { s.base = rt }
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) { s.timeout = d }
}

// NewSender creates a Gmail API sender.
func NewSender(opts ...Option) *Sender {
	s := &Sender{
		base:    newHTTP1Transport(),
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newHTTP1Transport returns a transport that never negotiates HTTP/2.
func newHTTP1Transport() http.RoundTripper {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ForceAttemptHTTP2 = false
	t.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	return t
}

// Send implements mail.Sender and returns the Gmail message id.
func (s *Sender) Send(ctx context.Context, msg *mail.Message, cred mail.Credential) (string, error) {
	ts := cred.TokenSource()
	if ts == nil {
		return "", &mail.AuthError{Err: errors.New("the Gmail API requires an OAuth2 credential")}
	}

	raw, err := msg.Bytes(s.now())
	if err != nil {
		return "", fmt.Errorf("failed to render message: %w", err)
	}
	if len(raw) > MaxMessageSize {
		return "", &mail.DeliveryError{
			Reason: fmt.Sprintf("message is %d bytes, over the Gmail limit of %d bytes", len(raw), MaxMessageSize),
		}
	}

	svc, err := s.service(ctx, ts)
	if err != nil {
		return "", err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	sent, err := svc.Users.Messages.Send(Me, &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return "", classifyError(err)
	}
	if sent.Id == "" {
		return "", &mail.DeliveryError{Reason: "Gmail did not return a message id"}
	}
	return sent.Id, nil
}

func (s *Sender) service(ctx context.Context, ts oauth2.TokenSource) (*gmail.Service, error) {
	client := &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: s.base},
	}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return svc, nil
}
