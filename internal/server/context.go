package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teemow/gmail-send-mcp/internal/instrumentation"
	"github.com/teemow/gmail-send-mcp/internal/mail"
	"github.com/teemow/gmail-send-mcp/internal/tools"
)

// Config carries the collaborators a ServerContext is built from.
type Config struct {
	// Name and Version are reported as serverInfo on initialize.
	Name    string
	Version string

	// Account identifies the sending account in logs and audit records.
	Account string
	// From is the From header of outgoing mail; empty lets the transport decide.
	From string
	// Transport is the mail transport name, used as a metric label.
	Transport string

	Credentials mail.CredentialProvider
	Sender      mail.Sender

	Metrics     *instrumentation.Metrics
	AuditLogger *instrumentation.AuditLogger
	Logger      *slog.Logger
}

// ServerContext holds the process-wide state shared by the dispatcher and
// the tool handlers.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	config   Config
	registry *tools.Registry
	logger   *slog.Logger

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new server context. Credentials and Sender
// are required.
func NewServerContext(ctx context.Context, config Config) (*ServerContext, error) {
	if config.Credentials == nil {
		return nil, fmt.Errorf("credential provider is required")
	}
	if config.Sender == nil {
		return nil, fmt.Errorf("mail sender is required")
	}
	if config.Name == "" {
		config.Name = instrumentation.DefaultServiceName
	}
	if config.Version == "" {
		config.Version = "dev"
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)

	return &ServerContext{
		ctx:      shutdownCtx,
		cancel:   cancel,
		config:   config,
		registry: tools.NewRegistry(),
		logger:   logger,
	}, nil
}

// Context returns the server context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Registry returns the tool registry.
func (sc *ServerContext) Registry() *tools.Registry {
	return sc.registry
}

// Credentials returns the credential provider.
func (sc *ServerContext) Credentials() mail.CredentialProvider {
	return sc.config.Credentials
}

// Sender returns the mail sender.
func (sc *ServerContext) Sender() mail.Sender {
	return sc.config.Sender
}

// From returns the configured From address, which may be empty.
func (sc *ServerContext) From() string {
	return sc.config.From
}

// Account returns the sending account name.
func (sc *ServerContext) Account() string {
	return sc.config.Account
}

// Transport returns the mail transport name.
func (sc *ServerContext) Transport() string {
	return sc.config.Transport
}

// Metrics returns the metrics recorder, which may be nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.config.Metrics
}

// AuditLogger returns the audit logger, which may be nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.config.AuditLogger
}

// Logger returns the diagnostic logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Instrumentation returns the recorders for wrapping tool handlers.
func (sc *ServerContext) Instrumentation() tools.Instrumentation {
	return tools.Instrumentation{
		Metrics:     sc.config.Metrics,
		AuditLogger: sc.config.AuditLogger,
		Account:     sc.config.Account,
		Transport:   sc.config.Transport,
	}
}

// IsShutdown reports whether the server context has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context. Calling it again is a no-op.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
