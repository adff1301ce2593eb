package mail

import (
	"context"
	"errors"
)

// Sender delivers a composed message using a credential and returns the
// provider's message id.
type Sender interface {
	Send(ctx context.Context, msg *Message, cred Credential) (string, error)
}

// CredentialProvider yields a credential that is valid for at least one
// send. Implementations may cache and refresh internally.
type CredentialProvider interface {
	Acquire(ctx context.Context) (Credential, error)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg *Message, cred Credential) (string, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, msg *Message, cred Credential) (string, error) {
	return f(ctx, msg, cred)
}

// StaticPasswordProvider returns the same password credential every time.
type StaticPasswordProvider struct {
	Account  string
	Password string
}

// Acquire returns the configured password credential.
func (p *StaticPasswordProvider) Acquire(_ context.Context) (Credential, error) {
	if p.Password == "" {
		return Credential{}, &AuthError{Err: errors.New("no SMTP password configured")}
	}
	return NewPasswordCredential(p.Account, p.Password), nil
}
