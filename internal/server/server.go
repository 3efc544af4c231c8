package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	xlog "plexpresence/internal/log"
	"plexpresence/internal/poller"
)

const shutdownTimeout = 5 * time.Second

// StatusSource is the read side of the sync loop.
type StatusSource interface {
	LastStatus() poller.Status
	Interval() time.Duration
}

type Server struct {
	router   chi.Router
	status   StatusSource
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
}

func NewServer(status StatusSource, opts ...Option) *Server {
	srv := &Server{
		router: chi.NewRouter(),
		status: status,
		logger: xlog.WithComponent("server"),
	}
	for _, o := range opts {
		o(srv)
	}
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(requestLogger(srv.logger))
	srv.routes()
	return srv
}

type Option func(*Server)

// WithGatherer exposes the registry's metrics on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("diagnostics listening")
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("shutdown error")
	}
	<-errCh
	return nil
}
