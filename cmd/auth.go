package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/gmail-send-mcp/internal/instrumentation"
	"github.com/teemow/gmail-send-mcp/internal/logging"
)

func newAuthCmd() *cobra.Command {
	var cfg serveConfig

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize a Google account and store its token",
		Long: `Run the OAuth consent flow for an account ahead of time and store the
resulting token, so the server never has to block a send_email call on
authorization.

The consent URL is printed to stderr and, unless --no-browser is given,
opened in the default browser. A running server picks up the new token
automatically when --watch-token is enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolveServeConfig(cmd, &cfg, os.Getenv)
			return runAuth(cmd, cfg)
		},
	}

	addServeFlags(cmd, &cfg)
	return cmd
}

func runAuth(cmd *cobra.Command, cfg serveConfig) error {
	logger := logging.NewLogger(cmd.ErrOrStderr(), cfg.Debug)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Transport != instrumentation.TransportGmailAPI && cfg.Transport != instrumentation.TransportSMTP {
		return fatalf("unknown mail transport %q", cfg.Transport)
	}

	tokens, store, err := newTokenProvider(cfg, cmd.ErrOrStderr(), nil, logger)
	if err != nil {
		return err
	}

	if err := tokens.Authorize(ctx); err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Token for account %q saved to %s\n", cfg.Account, store.Path(cfg.Account))
	return nil
}
