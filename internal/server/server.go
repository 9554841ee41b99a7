// Package server wraps http.Server with sane timeouts and graceful
// shutdown.
package server

import (
	"context"
	"net/http"
	"time"
)

type Server struct {
	srv *http.Server
}

// New creates a server listening on the given port.
func New(handler http.Handler, port string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start begins serving in a background goroutine. Listen errors other than
// a clean shutdown are reported on the returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown stops accepting new connections and waits for in-flight
// requests, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
