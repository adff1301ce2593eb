package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// AppName names the cache subdirectory.
const AppName = "gmail-send-mcp"

// ErrTokenNotFound is returned when an account has no stored token.
var ErrTokenNotFound = errors.New("no stored token")

var accountNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateAccountName rejects names that could escape the token directory.
func ValidateAccountName(account string) error {
	if !accountNamePattern.MatchString(account) {
		return fmt.Errorf("invalid account name %q: use letters, digits, '-' and '_'", account)
	}
	return nil
}

// DefaultTokenDir returns <user cache dir>/gmail-send-mcp.
func DefaultTokenDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user cache directory: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

// TokenStore persists one OAuth token per account.
type TokenStore struct {
	dir string
}

// NewTokenStore returns a store rooted at dir.
func NewTokenStore(dir string) *TokenStore {
	return &TokenStore{dir: dir}
}

// Dir returns the directory tokens are written to.
func (s *TokenStore) Dir() string {
	return s.dir
}

// Path returns the token file for account.
func (s *TokenStore) Path(account string) string {
	return filepath.Join(s.dir, "google-"+account+".token")
}

// Has reports whether a token file exists for account.
func (s *TokenStore) Has(account string) bool {
	if ValidateAccountName(account) != nil {
		return false
	}
	_, err := os.Stat(s.Path(account))
	return err == nil
}

// Load reads the token for account. Both the JSON format and the older
// "<access> <refresh>" format are accepted; the latter is treated as expired
// so it is refreshed on first use.
func (s *TokenStore) Load(account string) (*oauth2.Token, error) {
	if err := ValidateAccountName(account); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(account))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var tok oauth2.Token
		if err := json.Unmarshal([]byte(trimmed), &tok); err != nil {
			return nil, fmt.Errorf("invalid token file: %w", err)
		}
		if tok.AccessToken == "" && tok.RefreshToken == "" {
			return nil, fmt.Errorf("invalid token file: no tokens")
		}
		return &tok, nil
	}

	f := strings.Fields(trimmed)
	if len(f) != 2 {
		return nil, fmt.Errorf("invalid token format")
	}
	return &oauth2.Token{
		AccessToken:  f[0],
		TokenType:    "Bearer",
		RefreshToken: f[1],
		Expiry:       time.Unix(1, 0),
	}, nil
}

// Save writes the token for account atomically with owner-only permissions.
func (s *TokenStore) Save(account string, tok *oauth2.Token) error {
	if err := ValidateAccountName(account); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".google-"+account+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set token file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(account)); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// Delete removes the token for account. A missing file is not an error.
func (s *TokenStore) Delete(account string) error {
	if err := ValidateAccountName(account); err != nil {
		return err
	}
	if err := os.Remove(s.Path(account)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete token file: %w", err)
	}
	return nil
}
