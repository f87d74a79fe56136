package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/solatis/surveylogic/internal/core/config"
)

// HTTPServer manages the REST and metrics listener.
type HTTPServer struct {
	server *http.Server
	config *config.ServiceConfig
}

// NewHTTPServer wraps handler. Write timeouts follow the request timeout
// with headroom for encoding the response.
func NewHTTPServer(cfg *config.ServiceConfig, handler http.Handler) (*HTTPServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	return &HTTPServer{
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.HTTPPort),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       cfg.RequestTimeout,
			WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		config: cfg,
	}, nil
}

// Start binds the listener and serves HTTP requests.
// Blocks until Shutdown is called; a clean shutdown returns nil.
func (s *HTTPServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.server.Addr, err)
	}
	return s.Serve(listener)
}

// Serve serves HTTP requests on an already bound listener.
func (s *HTTPServer) Serve(listener net.Listener) error {
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
