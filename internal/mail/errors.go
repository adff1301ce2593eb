package mail

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// Failure kinds reported to the remote caller.
const (
	KindAttachment = "attachment"
	KindAuth       = "auth"
	KindDelivery   = "delivery"
)

// AttachmentError is returned when the attachment file cannot be read.
type AttachmentError struct {
	Path string
	Err  error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("failed to read attachment %s: %v", e.Path, e.Err)
}

func (e *AttachmentError) Unwrap() error { return e.Err }

// Kind returns KindAttachment.
func (e *AttachmentError) Kind() string { return KindAttachment }

// PublicMessage describes the failure without OS-specific error text.
func (e *AttachmentError) PublicMessage() string {
	return fmt.Sprintf("attachment %q could not be read: %s", e.Path, attachmentCause(e.Err))
}

func attachmentCause(err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "file not found"
	case errors.Is(err, fs.ErrPermission):
		return "permission denied"
	case errors.Is(err, syscall.EISDIR), errors.Is(err, errIsDirectory):
		return "path is a directory"
	default:
		return "read failed"
	}
}

var errIsDirectory = errors.New("is a directory")

// AuthError is returned when no usable credential could be acquired.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("failed to acquire credentials: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Kind returns KindAuth.
func (e *AuthError) Kind() string { return KindAuth }

// PublicMessage tells the caller how to recover.
func (e *AuthError) PublicMessage() string {
	return "failed to acquire mail credentials; run the auth command to authorize the account"
}

// DeliveryError is returned when the transport rejects or fails to deliver
// a message. Reason is a short description safe to show to the caller.
type DeliveryError struct {
	Reason string
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Err == nil {
		return "delivery failed: " + e.Reason
	}
	return fmt.Sprintf("delivery failed: %s: %v", e.Reason, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Kind returns KindDelivery.
func (e *DeliveryError) Kind() string { return KindDelivery }

// PublicMessage returns the delivery failure reason.
func (e *DeliveryError) PublicMessage() string {
	return "email delivery failed: " + e.Reason
}
