package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/teemow/gmail-send-mcp/internal/jsonrpc"
)

// Server runs the newline-delimited JSON-RPC loop over a byte stream.
type Server struct {
	sc         *ServerContext
	dispatcher *Dispatcher
	health     *HealthChecker

	handled atomic.Int64
}

// New creates a server for the given context.
func New(sc *ServerContext) *Server {
	s := &Server{
		sc:         sc,
		dispatcher: NewDispatcher(sc),
	}
	s.health = NewHealthChecker(sc, s)
	return s
}

// Health returns the health checker bound to this server.
func (s *Server) Health() *HealthChecker {
	return s.health
}

// Handled returns the number of lines processed so far.
func (s *Server) Handled() int64 {
	return s.handled.Load()
}

// Serve reads requests from in and writes responses to out until in is
// exhausted or ctx is done. Requests are handled one at a time, so
// responses leave in request order. End of input is a clean exit.
//
// A blocked read is not interrupted by ctx; callers that need prompt
// shutdown run Serve in a goroutine and stop waiting on ctx.Done().
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	framer := jsonrpc.NewFramer(in)
	writer := jsonrpc.NewWriter(out)
	logger := s.sc.Logger()

	s.health.SetReady(true)
	defer s.health.SetReady(false)

	logger.Info("serving JSON-RPC on stdio",
		"tools", s.sc.Registry().Len(),
		"transport", s.sc.Transport(),
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line, err := framer.Next()
		if errors.Is(err, io.EOF) {
			logger.Info("input closed, stopping", "handled", s.handled.Load())
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read request: %w", err)
		}

		resp := s.dispatcher.Handle(ctx, line)
		s.handled.Add(1)
		if resp == nil {
			continue
		}

		if err := writer.Write(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
}
