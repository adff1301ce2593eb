package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/gmail-send-mcp/internal/gmail"
	"github.com/teemow/gmail-send-mcp/internal/google"
	"github.com/teemow/gmail-send-mcp/internal/instrumentation"
	"github.com/teemow/gmail-send-mcp/internal/logging"
	"github.com/teemow/gmail-send-mcp/internal/mail"
	"github.com/teemow/gmail-send-mcp/internal/server"
	"github.com/teemow/gmail-send-mcp/internal/smtp"
	"github.com/teemow/gmail-send-mcp/internal/tools/mail_tools"
)

// serveConfig is the resolved configuration of the serve and auth commands.
type serveConfig struct {
	Debug bool

	Account   string
	From      string
	Transport string

	SMTPAddr     string
	SMTPUsername string
	SMTPPassword string

	ClientSecretJSON   string
	ClientSecretFile   string
	GoogleClientID     string
	GoogleClientSecret string

	TokenDir    string
	NoBrowser   bool
	WatchToken  bool
	MetricsAddr string
}

// collaborators are the pieces the server context is assembled from.
type collaborators struct {
	credentials mail.CredentialProvider
	sender      mail.Sender
	// tokens is nil when the SMTP transport uses an app password.
	tokens *google.TokenProvider
	store  *google.TokenStore
}

func newServeCmd() *cobra.Command {
	var cfg serveConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Run the MCP server. Requests are read as newline-delimited JSON-RPC 2.0
from standard input and responses are written to standard output. Logs go to
standard error.

Transports:
  gmail-api  Send through the Gmail API using an OAuth token (default)
  smtp       Send through an SMTP submission server using an app password
             (SMTP_PASSWORD or GMAIL_APP_PASSWORD) or an OAuth token

OAuth client configuration is read from GOOGLE_CLIENT_SECRET (raw JSON), the
client secret file, or --google-client-id and --google-client-secret. When no
token is stored for the account the consent URL is printed to stderr on the
first send_email call.

Environment variables:
  GMAIL_ACCOUNT, GMAIL_FROM, MAIL_TRANSPORT, SMTP_ADDR, SMTP_USERNAME,
  SMTP_PASSWORD, GMAIL_APP_PASSWORD, GOOGLE_CLIENT_SECRET,
  GOOGLE_CLIENT_SECRET_FILE, GOOGLE_CLIENT_ID, GMAIL_TOKEN_DIR, METRICS_ADDR

Instrumentation is configured with INSTRUMENTATION_ENABLED, METRICS_EXPORTER,
TRACING_EXPORTER and the standard OTEL_* variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolveServeConfig(cmd, &cfg, os.Getenv)
			return runServe(cfg)
		},
	}

	addServeFlags(cmd, &cfg)
	return cmd
}

// addServeFlags registers the flags shared by serve and auth.
func addServeFlags(cmd *cobra.Command, cfg *serveConfig) {
	cmd.Flags().BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&cfg.Account, "account", "default", "Account name used for the stored token (can also be set via GMAIL_ACCOUNT)")
	cmd.Flags().StringVar(&cfg.From, "from", "", "From address of outgoing mail (can also be set via GMAIL_FROM)")
	cmd.Flags().StringVar(&cfg.Transport, "mail-transport", instrumentation.TransportGmailAPI, "Mail transport: gmail-api or smtp (can also be set via MAIL_TRANSPORT)")
	cmd.Flags().StringVar(&cfg.SMTPAddr, "smtp-addr", smtp.DefaultAddr, "SMTP submission server host:port (can also be set via SMTP_ADDR)")
	cmd.Flags().StringVar(&cfg.SMTPUsername, "smtp-username", "", "SMTP login, defaults to --from (can also be set via SMTP_USERNAME)")
	cmd.Flags().StringVar(&cfg.ClientSecretFile, "client-secret-file", "client_secret.json", "Google OAuth client secret file (can also be set via GOOGLE_CLIENT_SECRET_FILE)")
	cmd.Flags().StringVar(&cfg.GoogleClientID, "google-client-id", "", "Google OAuth client ID (can also be set via GOOGLE_CLIENT_ID)")
	cmd.Flags().StringVar(&cfg.GoogleClientSecret, "google-client-secret", "", "Google OAuth client secret")
	cmd.Flags().StringVar(&cfg.TokenDir, "token-dir", "", "Directory holding OAuth tokens (can also be set via GMAIL_TOKEN_DIR)")
	cmd.Flags().BoolVar(&cfg.NoBrowser, "no-browser", false, "Do not try to open a browser during authorization")
	cmd.Flags().BoolVar(&cfg.WatchToken, "watch-token", true, "Reload the token when the token file changes on disk")
	cmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Address for the /metrics and health endpoints, empty disables (can also be set via METRICS_ADDR)")
}

// resolveServeConfig fills values that were not set on the command line
// from the environment.
func resolveServeConfig(cmd *cobra.Command, cfg *serveConfig, getenv func(string) string) {
	fromEnv := func(flag string, dst *string, keys ...string) {
		if cmd.Flags().Changed(flag) {
			return
		}
		for _, key := range keys {
			if v := getenv(key); v != "" {
				*dst = v
				return
			}
		}
	}

	fromEnv("account", &cfg.Account, "GMAIL_ACCOUNT")
	fromEnv("from", &cfg.From, "GMAIL_FROM")
	fromEnv("mail-transport", &cfg.Transport, "MAIL_TRANSPORT")
	fromEnv("smtp-addr", &cfg.SMTPAddr, "SMTP_ADDR")
	fromEnv("smtp-username", &cfg.SMTPUsername, "SMTP_USERNAME")
	fromEnv("client-secret-file", &cfg.ClientSecretFile, "GOOGLE_CLIENT_SECRET_FILE")
	fromEnv("google-client-id", &cfg.GoogleClientID, "GOOGLE_CLIENT_ID")
	fromEnv("token-dir", &cfg.TokenDir, "GMAIL_TOKEN_DIR")
	fromEnv("metrics-addr", &cfg.MetricsAddr, "METRICS_ADDR")

	// Secrets are never taken from flags.
	cfg.ClientSecretJSON = getenv("GOOGLE_CLIENT_SECRET")
	cfg.SMTPPassword = getenv("SMTP_PASSWORD")
	if cfg.SMTPPassword == "" {
		cfg.SMTPPassword = getenv("GMAIL_APP_PASSWORD")
	}
}

func runServe(cfg serveConfig) error {
	logger := logging.NewLogger(os.Stderr, cfg.Debug)
	slog.SetDefault(logger)

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	instrumentationConfig := instrumentation.DefaultConfig()
	instrumentationConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, instrumentationConfig)
	if err != nil {
		return &FatalStartupError{Err: fmt.Errorf("failed to initialize instrumentation: %w", err)}
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error shutting down instrumentation", logging.Err(err))
		}
	}()

	deps, err := buildCollaborators(cfg, os.Stderr, provider.Metrics(), logger)
	if err != nil {
		return err
	}

	sc, err := server.NewServerContext(ctx, server.Config{
		Name:        instrumentation.DefaultServiceName,
		Version:     version,
		Account:     cfg.Account,
		From:        cfg.From,
		Transport:   cfg.Transport,
		Credentials: deps.credentials,
		Sender:      deps.sender,
		Metrics:     provider.Metrics(),
		AuditLogger: instrumentation.NewAuditLogger(logger, instrumentationConfig.AuditLogging),
		Logger:      logger,
	})
	if err != nil {
		return &FatalStartupError{Err: err}
	}
	defer func() {
		if err := sc.Shutdown(); err != nil {
			logger.Warn("error during server context shutdown", logging.Err(err))
		}
	}()

	if err := mail_tools.RegisterTools(sc); err != nil {
		return &FatalStartupError{Err: fmt.Errorf("failed to register tools: %w", err)}
	}

	srv := server.New(sc)

	if cfg.MetricsAddr != "" {
		metricsServer, err := startMetricsServer(cfg.MetricsAddr, provider, srv.Health(), logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer shutdownCancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("error shutting down metrics server", logging.Err(err))
			}
		}()
	}

	if cfg.WatchToken && deps.tokens != nil {
		path := deps.store.Path(cfg.Account)
		watcher, err := google.NewTokenWatcher(path, deps.tokens.Invalidate, logger)
		if err != nil {
			// Serving still works; changes on disk just need a restart.
			logger.Warn("token watcher disabled", slog.String("path", path), logging.Err(err))
		} else {
			defer watcher.Close()
			go watcher.Run(ctx)
		}
	}

	logger.Info("starting gmail-send-mcp",
		slog.String("version", version),
		logging.Account(cfg.Account),
		logging.Transport(cfg.Transport),
	)

	// A blocked stdin read cannot be interrupted, so the loop runs in its
	// own goroutine and a signal simply stops waiting for it.
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Serve(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		return nil
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	}
}

func startMetricsServer(addr string, provider *instrumentation.Provider, health *server.HealthChecker, logger *slog.Logger) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: provider,
		Health:                  health,
	})
	if err != nil {
		return nil, &FatalStartupError{Err: fmt.Errorf("failed to create metrics server: %w", err)}
	}
	if err := metricsServer.Listen(); err != nil {
		return nil, &FatalStartupError{Err: fmt.Errorf("failed to listen on %s: %w", addr, err)}
	}

	go func() {
		if err := metricsServer.Start(); err != nil {
			logger.Error("metrics server error", logging.Err(err))
		}
	}()
	logger.Info("metrics server listening", slog.String("addr", metricsServer.Addr()))
	return metricsServer, nil
}

// buildCollaborators validates cfg and wires the credential provider and
// sender for the selected transport. authOut receives the consent URL during
// interactive authorization and must not be the protocol stream.
func buildCollaborators(cfg serveConfig, authOut io.Writer, metrics *instrumentation.Metrics, logger *slog.Logger) (*collaborators, error) {
	if err := google.ValidateAccountName(cfg.Account); err != nil {
		return nil, &FatalStartupError{Err: err}
	}

	switch cfg.Transport {
	case instrumentation.TransportGmailAPI:
		tokens, store, err := newTokenProvider(cfg, authOut, metrics, logger)
		if err != nil {
			return nil, err
		}
		return &collaborators{
			credentials: tokens,
			sender:      gmail.NewSender(),
			tokens:      tokens,
			store:       store,
		}, nil

	case instrumentation.TransportSMTP:
		username := cfg.SMTPUsername
		if username == "" {
			username = cfg.From
		}
		if username == "" {
			return nil, fatalf("SMTP transport requires --smtp-username or --from")
		}

		sender, err := smtp.NewSender(smtp.Config{Addr: cfg.SMTPAddr, Username: username})
		if err != nil {
			return nil, &FatalStartupError{Err: err}
		}

		if cfg.SMTPPassword != "" {
			return &collaborators{
				credentials: &mail.StaticPasswordProvider{Account: cfg.Account, Password: cfg.SMTPPassword},
				sender:      sender,
			}, nil
		}

		tokens, store, err := newTokenProvider(cfg, authOut, metrics, logger)
		if err != nil {
			if errors.Is(err, google.ErrNoClientConfig) {
				return nil, fatalf("SMTP transport requires SMTP_PASSWORD, GMAIL_APP_PASSWORD or an OAuth client configuration")
			}
			return nil, err
		}
		return &collaborators{
			credentials: tokens,
			sender:      sender,
			tokens:      tokens,
			store:       store,
		}, nil

	default:
		return nil, fatalf("unknown mail transport %q (expected %s or %s)",
			cfg.Transport, instrumentation.TransportGmailAPI, instrumentation.TransportSMTP)
	}
}

func newTokenProvider(cfg serveConfig, authOut io.Writer, metrics *instrumentation.Metrics, logger *slog.Logger) (*google.TokenProvider, *google.TokenStore, error) {
	oauthConfig, err := google.LoadConfig(google.ClientConfig{
		SecretJSON:   cfg.ClientSecretJSON,
		SecretFile:   cfg.ClientSecretFile,
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
	}, google.ScopesForTransport(cfg.Transport))
	if err != nil {
		return nil, nil, &FatalStartupError{Err: err}
	}

	dir := cfg.TokenDir
	if dir == "" {
		dir, err = google.DefaultTokenDir()
		if err != nil {
			return nil, nil, &FatalStartupError{Err: err}
		}
	}
	store := google.NewTokenStore(dir)

	tokens, err := google.NewTokenProvider(google.TokenProviderConfig{
		Account: cfg.Account,
		OAuth:   oauthConfig,
		Store:   store,
		Authorizer: &google.LoopbackAuthorizer{
			Out:         authOut,
			OpenBrowser: !cfg.NoBrowser,
		},
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, &FatalStartupError{Err: err}
	}
	return tokens, store, nil
}
