package google

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrNoClientConfig is returned when no OAuth client is configured.
var ErrNoClientConfig = errors.New("no Google OAuth client configured")

// ClientConfig names the places an OAuth client can come from, in order of
// precedence.
type ClientConfig struct {
	// SecretJSON is the raw client secret JSON downloaded from the Google
	// Cloud console.
	SecretJSON string
	// SecretFile is a path to the same JSON.
	SecretFile string
	// ClientID and ClientSecret configure a desktop client directly.
	ClientID     string
	ClientSecret string
}

// LoadConfig builds the OAuth2 configuration for the given scopes. A missing
// SecretFile is not an error when explicit credentials are provided.
func LoadConfig(cc ClientConfig, scopes []string) (*oauth2.Config, error) {
	if cc.SecretJSON != "" {
		cfg, err := google.ConfigFromJSON([]byte(cc.SecretJSON), scopes...)
		if err != nil {
			return nil, fmt.Errorf("invalid client secret JSON: %w", err)
		}
		return cfg, nil
	}

	if cc.SecretFile != "" {
		data, err := os.ReadFile(cc.SecretFile)
		switch {
		case err == nil:
			cfg, err := google.ConfigFromJSON(data, scopes...)
			if err != nil {
				return nil, fmt.Errorf("invalid client secret file %s: %w", cc.SecretFile, err)
			}
			return cfg, nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read client secret file: %w", err)
		}
	}

	if cc.ClientID != "" && cc.ClientSecret != "" {
		return &oauth2.Config{
			ClientID:     cc.ClientID,
			ClientSecret: cc.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       scopes,
		}, nil
	}

	return nil, ErrNoClientConfig
}
