// Package mailtest provides recording fakes for the mail collaborators.
package mailtest

import (
	"context"
	"sync"

	"golang.org/x/oauth2"

	"github.com/teemow/gmail-send-mcp/internal/mail"
)

// Sender records every message it is asked to deliver.
type Sender struct {
	// MessageID is returned on success.
	MessageID string
	// Err, when set, is returned instead of delivering.
	Err error

	mu       sync.Mutex
	messages []*mail.Message
	creds    []mail.Credential
}

// Send implements mail.Sender.
func (s *Sender) Send(_ context.Context, msg *mail.Message, cred mail.Credential) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	s.creds = append(s.creds, cred)
	if s.Err != nil {
		return "", s.Err
	}
	if s.MessageID == "" {
		return "fake-message-id", nil
	}
	return s.MessageID, nil
}

// Calls returns how many times Send was called.
func (s *Sender) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Messages returns the messages passed to Send.
func (s *Sender) Messages() []*mail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*mail.Message(nil), s.messages...)
}

// Credentials returns the credentials passed to Send.
func (s *Sender) Credentials() []mail.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mail.Credential(nil), s.creds...)
}

// CredentialProvider hands out a static token credential.
type CredentialProvider struct {
	Account string
	// Err, when set, is returned instead of a credential.
	Err error

	mu    sync.Mutex
	calls int
}

// Acquire implements mail.CredentialProvider.
func (p *CredentialProvider) Acquire(_ context.Context) (mail.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.Err != nil {
		return mail.Credential{}, p.Err
	}
	account := p.Account
	if account == "" {
		account = "default"
	}
	return mail.NewTokenCredential(account, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-access-token"})), nil
}

// Calls returns how many times Acquire was called.
func (p *CredentialProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
