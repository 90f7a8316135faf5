// Package server exposes conversion over HTTP: upload an export, get merged
// JSON and CSS back, download either of them once.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"djc/blocks"
	"djc/config"
	"djc/css"
	"djc/store"
)

const shutdownTimeout = 10 * time.Second

// Server serves conversion API until its context is canceled.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// Deps are collaborators server needs, all of them are required.
type Deps struct {
	Engine   *blocks.Engine
	Renderer *css.Renderer
	Store    store.Store
}

func New(cfg *config.Config, deps Deps, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("server")

	h := newHandler(cfg, deps, log)
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Server.Listen,
			Handler:           h2c.NewHandler(routes(h, &cfg.Server, log), &http2.Server{}),
			ReadHeaderTimeout: cfg.Server.RequestTimeout,
			ErrorLog:          zap.NewStdLog(log),
		},
		log: log,
	}
}

// Handler returns complete request handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run listens on configured address. It returns when ctx is done and
// in-flight requests are finished or when listener fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() {
		errc <- s.httpServer.Serve(ln)
	}()
	s.log.Info("Serving", zap.String("listen", ln.Addr().String()))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
