package smtp

import (
	"context"
	"errors"
	"net"
	"net/textproto"

	"github.com/teemow/gmail-send-mcp/internal/mail"
)

var (
	errNoStartTLS = errors.New("server does not offer STARTTLS")
	errNoAuth     = errors.New("server does not offer AUTH")
)

type authFailure struct{ err error }

func (e *authFailure) Error() string { return "smtp auth: " + e.err.Error() }
func (e *authFailure) Unwrap() error { return e.err }

type rejectedRecipient struct{ err error }

func (e *rejectedRecipient) Error() string { return "smtp rcpt: " + e.err.Error() }
func (e *rejectedRecipient) Unwrap() error { return e.err }

// classifyError maps SMTP failures onto the mail error taxonomy. Server
// reply text is kept behind Unwrap and never becomes the public reason.
func classifyError(err error) error {
	var af *authFailure
	if errors.As(err, &af) {
		return &mail.AuthError{Err: err}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &mail.DeliveryError{Reason: "the SMTP server did not respond in time", Err: err}
	case errors.Is(err, context.Canceled):
		return &mail.DeliveryError{Reason: "the request was cancelled", Err: err}
	case errors.Is(err, errNoStartTLS):
		return &mail.DeliveryError{Reason: "the SMTP server does not support STARTTLS", Err: err}
	case errors.Is(err, errNoAuth):
		return &mail.DeliveryError{Reason: "the SMTP server does not support authentication", Err: err}
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		var rr *rejectedRecipient
		switch {
		case errors.As(err, &rr) && protoErr.Code >= 500:
			return &mail.DeliveryError{Reason: "the recipient was rejected by the SMTP server", Err: err}
		case protoErr.Code == 552:
			return &mail.DeliveryError{Reason: "the message is too large for the SMTP server", Err: err}
		case protoErr.Code >= 400 && protoErr.Code < 500:
			return &mail.DeliveryError{Reason: "the SMTP server temporarily refused the message; try again later", Err: err}
		default:
			return &mail.DeliveryError{Reason: "the SMTP server rejected the message", Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &mail.DeliveryError{Reason: "the SMTP server did not respond in time", Err: err}
		}
		return &mail.DeliveryError{Reason: "could not reach the SMTP server", Err: err}
	}
	return &mail.DeliveryError{Reason: "SMTP delivery failed", Err: err}
}
