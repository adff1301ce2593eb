package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"

	"github.com/teemow/gmail-send-mcp/internal/instrumentation"
	"github.com/teemow/gmail-send-mcp/internal/logging"
	"github.com/teemow/gmail-send-mcp/internal/mail"
)

// TokenProviderConfig configures a TokenProvider.
type TokenProviderConfig struct {
	Account    string
	OAuth      *oauth2.Config
	Store      *TokenStore
	Authorizer Authorizer // nil disables interactive authorization
	Metrics    *instrumentation.Metrics
	Logger     *slog.Logger
}

// TokenProvider implements mail.CredentialProvider for one Google account.
//
// The token is loaded from the store on first use and kept in memory. Expired
// tokens are refreshed and written back. When no token exists, or the refresh
// token was revoked, the Authorizer is consulted once per Acquire call.
// Invalidate drops the in-memory token so the next Acquire rereads the store.
type TokenProvider struct {
	config TokenProviderConfig
	logger *slog.Logger

	mu         sync.Mutex
	source     oauth2.TokenSource
	lastAccess string
}

// NewTokenProvider validates the config and returns a provider.
func NewTokenProvider(config TokenProviderConfig) (*TokenProvider, error) {
	if err := ValidateAccountName(config.Account); err != nil {
		return nil, err
	}
	if config.OAuth == nil {
		return nil, ErrNoClientConfig
	}
	if config.Store == nil {
		return nil, fmt.Errorf("token store is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenProvider{
		config: config,
		logger: logging.WithAccount(logging.WithOperation(logger, "oauth"), config.Account),
	}, nil
}

// Account returns the account this provider serves.
func (p *TokenProvider) Account() string {
	return p.config.Account
}

// Acquire implements mail.CredentialProvider. The returned credential holds
// a token valid at the time of the call.
func (p *TokenProvider) Acquire(ctx context.Context) (mail.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok, result, err := p.token(ctx)
	if err != nil {
		p.config.Metrics.RecordTokenAcquisition(ctx, instrumentation.TokenResultFailure)
		p.logger.Warn("token acquisition failed", logging.Err(err))
		var authErr *mail.AuthError
		if !errors.As(err, &authErr) {
			err = &mail.AuthError{Err: err}
		}
		return mail.Credential{}, err
	}

	p.config.Metrics.RecordTokenAcquisition(ctx, result)
	p.logger.Debug("token acquired", slog.String("result", result))
	return mail.NewTokenCredential(p.config.Account, oauth2.StaticTokenSource(tok)), nil
}

// Invalidate drops the cached token.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = nil
	p.lastAccess = ""
}

// Authorize runs the interactive flow unconditionally and stores the result.
func (p *TokenProvider) Authorize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.authorize(ctx)
	return err
}

// token must be called with mu held.
func (p *TokenProvider) token(ctx context.Context) (*oauth2.Token, string, error) {
	authorized := false

	if p.source == nil {
		stored, err := p.config.Store.Load(p.config.Account)
		switch {
		case errors.Is(err, ErrTokenNotFound):
			if _, err := p.authorize(ctx); err != nil {
				return nil, "", err
			}
			authorized = true
		case err != nil:
			return nil, "", err
		default:
			p.setToken(ctx, stored)
		}
	}

	tok, err := p.source.Token()
	if err != nil && isRevoked(err) && !authorized {
		p.logger.Info("stored token was revoked, re-authorizing")
		if tok, err = p.authorize(ctx); err == nil {
			authorized = true
		}
	}
	if err != nil {
		p.source = nil
		return nil, "", err
	}

	result := instrumentation.TokenResultCached
	switch {
	case authorized:
		result = instrumentation.TokenResultAuthorized
	case tok.AccessToken != p.lastAccess:
		result = instrumentation.TokenResultRefreshed
		if err := p.config.Store.Save(p.config.Account, tok); err != nil {
			p.logger.Warn("failed to persist refreshed token", logging.Err(err))
		}
		p.lastAccess = tok.AccessToken
	}
	return tok, result, nil
}

// authorize must be called with mu held.
func (p *TokenProvider) authorize(ctx context.Context) (*oauth2.Token, error) {
	if p.config.Authorizer == nil {
		return nil, &mail.AuthError{Err: fmt.Errorf("no usable token for account %q", p.config.Account)}
	}

	tok, err := p.config.Authorizer.Authorize(ctx, p.config.OAuth)
	if err != nil {
		return nil, err
	}
	if err := p.config.Store.Save(p.config.Account, tok); err != nil {
		return nil, err
	}
	p.setToken(ctx, tok)
	p.logger.Info("account authorized")
	return tok, nil
}

// setToken installs tok as the refresh base. The refresh context outlives
// ctx's cancellation but keeps its values, such as oauth2.HTTPClient.
func (p *TokenProvider) setToken(ctx context.Context, tok *oauth2.Token) {
	base := p.config.OAuth.TokenSource(context.WithoutCancel(ctx), tok)
	p.source = oauth2.ReuseTokenSource(tok, base)
	p.lastAccess = tok.AccessToken
}

func isRevoked(err error) bool {
	var re *oauth2.RetrieveError
	return errors.As(err, &re) && re.ErrorCode == "invalid_grant"
}
