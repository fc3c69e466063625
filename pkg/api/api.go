// Package api serves recorded orchestrator runs over a read-only HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethpandaops/gatewaybench/pkg/config"
	"github.com/ethpandaops/gatewaybench/pkg/runindex"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
	// Addr returns the bound listen address once started.
	Addr() string
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.APIConfig
	store      runindex.Store
	metrics    *httpMetrics
	limiter    *clientLimiters
	httpServer *http.Server
	addr       string
	wg         sync.WaitGroup
}

// NewServer creates a new API server reading from store. The server owns
// the store lifecycle.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.APIConfig,
	store runindex.Store,
) Server {
	return newServer(log, cfg, store)
}

func newServer(log logrus.FieldLogger, cfg *config.APIConfig, store runindex.Store) *server {
	return &server{
		log:     log.WithField("component", "api"),
		cfg:     cfg,
		store:   store,
		metrics: newHTTPMetrics(),
	}
}

// Start opens the run index and starts the HTTP server.
func (s *server) Start(ctx context.Context) error {
	if err := s.store.Start(ctx); err != nil {
		return fmt.Errorf("starting run index: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind synchronously so port conflicts fail the command.
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		s.httpServer = nil

		if s.limiter != nil {
			s.limiter.stop()
			s.limiter = nil
		}

		if stopErr := s.store.Stop(); stopErr != nil {
			s.log.WithError(stopErr).Warn("Failed to close run index")
		}

		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}

	s.addr = ln.Addr().String()

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.addr).Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server and closes the store.
func (s *server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if s.limiter != nil {
		s.limiter.stop()
	}

	if err := s.store.Stop(); err != nil {
		return fmt.Errorf("stopping run index: %w", err)
	}

	s.log.Info("API server stopped")

	return nil
}

func (s *server) Addr() string {
	return s.addr
}
