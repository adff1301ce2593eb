package gmail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/teemow/gmail-send-mcp/internal/mail"
)

// classifyError maps a Gmail API failure to the mail error taxonomy. The
// original error stays reachable through Unwrap for logging.
func classifyError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &mail.AuthError{Err: err}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized {
			return &mail.AuthError{Err: err}
		}
		return &mail.DeliveryError{Reason: reasonForStatus(apiErr.Code), Err: err}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &mail.DeliveryError{Reason: "the Gmail API did not respond in time", Err: err}
	case errors.Is(err, context.Canceled):
		return &mail.DeliveryError{Reason: "the request was cancelled", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &mail.DeliveryError{Reason: "could not reach the Gmail API", Err: err}
	}
	return &mail.DeliveryError{Reason: "the Gmail API returned an unexpected error", Err: err}
}

func reasonForStatus(code int) string {
	switch {
	case code == http.StatusBadRequest:
		return "Gmail rejected the message as invalid"
	case code == http.StatusForbidden:
		return "Gmail refused to send; check the granted scopes and sending limits"
	case code == http.StatusRequestEntityTooLarge:
		return "the message is too large for Gmail"
	case code == http.StatusTooManyRequests:
		return "Gmail rate limit exceeded; try again later"
	case code >= 500:
		return "Gmail is temporarily unavailable"
	default:
		return fmt.Sprintf("Gmail returned HTTP %d", code)
	}
}
