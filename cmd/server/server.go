package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// server wraps http.Server with the timeouts the API needs. Write and
// idle timeouts stay generous because batch creation responds quickly
// while reference image resolution can take several seconds.
type server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func newServer(port int, handler http.Handler, logger *slog.Logger) *server {
	return &server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// start blocks serving requests until the listener closes. A clean
// shutdown is not reported as an error.
func (s *server) start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// shutdown drains in-flight requests within the context deadline.
func (s *server) shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
