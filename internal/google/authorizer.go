package google

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"golang.org/x/oauth2"
)

// DefaultAuthorizeTimeout bounds how long the loopback flow waits for the
// user to finish in the browser.
const DefaultAuthorizeTimeout = 5 * time.Minute

// CallbackPath is the redirect path served by the loopback listener.
const CallbackPath = "/callback"

// Authorizer obtains a fresh token from the user. It may block for as long
// as the user takes to respond.
type Authorizer interface {
	Authorize(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error)

// Authorize implements Authorizer.
func (f AuthorizerFunc) Authorize(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	return f(ctx, config)
}

// LoopbackAuthorizer runs the installed-app flow: it listens on
// 127.0.0.1, prints the consent URL and exchanges the returned code using
// PKCE.
type LoopbackAuthorizer struct {
	// Out receives the consent URL. It must not be the protocol stream.
	Out io.Writer
	// OpenBrowser tries to open the URL with the platform's opener.
	OpenBrowser bool
	// Timeout defaults to DefaultAuthorizeTimeout.
	Timeout time.Duration
	// ListenAddr defaults to 127.0.0.1:0.
	ListenAddr string

	// urlHook observes the consent URL; tests use it to drive the callback.
	urlHook func(string)
}

type callbackResult struct {
	code string
	err  error
}

// Authorize implements Authorizer.
func (a *LoopbackAuthorizer) Authorize(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	timeout := a.Timeout
	if timeout == 0 {
		timeout = DefaultAuthorizeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := a.ListenAddr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start loopback listener: %w", err)
	}

	cfg := *config
	cfg.RedirectURL = "http://" + ln.Addr().String() + CallbackPath

	state, err := randomState()
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, func(w http.ResponseWriter, r *http.Request) {
		res := parseCallback(r, state)
		if res.err != nil {
			http.Error(w, "Authorization failed: "+html.EscapeString(res.err.Error()), http.StatusBadRequest)
		} else {
			_, _ = io.WriteString(w, "Authorization complete. You can close this window.")
		}
		select {
		case results <- res:
		default:
		}
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)
	if a.Out != nil {
		_, _ = fmt.Fprintf(a.Out, "Open this URL in your browser to authorize Gmail access:\n\n%s\n\n", authURL)
	}
	if a.OpenBrowser {
		_ = openBrowser(authURL)
	}
	if a.urlHook != nil {
		go a.urlHook(authURL)
	}

	var res callbackResult
	select {
	case res = <-results:
	case <-ctx.Done():
		return nil, fmt.Errorf("authorization not completed: %w", ctx.Err())
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := cfg.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tok, nil
}

func parseCallback(r *http.Request, state string) callbackResult {
	q := r.URL.Query()
	if q.Get("state") != state {
		return callbackResult{err: errors.New("state mismatch")}
	}
	if e := q.Get("error"); e != "" {
		return callbackResult{err: fmt.Errorf("authorization denied: %s", e)}
	}
	code := q.Get("code")
	if code == "" {
		return callbackResult{err: errors.New("no authorization code in callback")}
	}
	return callbackResult{code: code}
}

func randomState() (string, error) {
	var b [24]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
