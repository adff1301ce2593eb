package mail

import (
	"log/slog"

	"golang.org/x/oauth2"
)

// Credential is an opaque capability to send as one account. Either an
// OAuth token source or a password is present, never both. It never renders
// its secret.
type Credential struct {
	account     string
	tokenSource oauth2.TokenSource
	password    string
}

// NewTokenCredential wraps an OAuth token source.
func NewTokenCredential(account string, ts oauth2.TokenSource) Credential {
	return Credential{account: account, tokenSource: ts}
}

// NewPasswordCredential wraps an SMTP password such as a Gmail app password.
func NewPasswordCredential(account, password string) Credential {
	return Credential{account: account, password: password}
}

// Account returns the account the credential belongs to.
func (c Credential) Account() string { return c.account }

// TokenSource returns the OAuth token source, or nil for password credentials.
func (c Credential) TokenSource() oauth2.TokenSource { return c.tokenSource }

// Password returns the password, or "" for token credentials.
func (c Credential) Password() string { return c.password }

// IsZero reports whether the credential carries no secret.
func (c Credential) IsZero() bool { return c.tokenSource == nil && c.password == "" }

func (c Credential) String() string {
	switch {
	case c.tokenSource != nil:
		return "oauth2 credential for " + c.account
	case c.password != "":
		return "password credential for " + c.account
	default:
		return "empty credential"
	}
}

// LogValue keeps secrets out of structured logs.
func (c Credential) LogValue() slog.Value {
	return slog.StringValue(c.String())
}
