// Package server provides gRPC and HTTP server lifecycle management.
package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/solatis/surveylogic/internal/core/api"
	"github.com/solatis/surveylogic/internal/core/auth"
	"github.com/solatis/surveylogic/internal/core/config"
)

// shutdownTimeout bounds graceful stop before connections are forced closed.
const shutdownTimeout = 30 * time.Second

// healthCheckMethods bypass API key authentication.
var healthCheckMethods = []string{
	"/grpc.health.v1.Health/Check",
	"/grpc.health.v1.Health/Watch",
	"/grpc.health.v1.Health/List",
}

// GRPCServer manages gRPC server lifecycle.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	config   *config.ServiceConfig
}

// NewGRPCServer creates a gRPC server with metrics and auth interceptors,
// the visibility service and the standard health service.
// authenticator and metrics may be nil to disable them.
func NewGRPCServer(cfg *config.ServiceConfig, service *api.VisibilityService, authenticator *auth.Authenticator, metrics *api.Metrics) (*GRPCServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	// Metrics wraps auth so rejected calls are counted
	var interceptors []grpc.UnaryServerInterceptor
	if metrics != nil {
		interceptors = append(interceptors, metrics.UnaryInterceptor())
	}
	if authenticator != nil {
		interceptors = append(interceptors, authenticator.UnaryInterceptor(healthCheckMethods...))
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	api.RegisterVisibilityServer(server, service)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(api.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &GRPCServer{
		server: server,
		health: healthServer,
		config: cfg,
	}, nil
}

// Start binds the listener and serves gRPC requests.
// Blocks until Shutdown is called.
func (s *GRPCServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve serves gRPC requests on an already bound listener.
func (s *GRPCServer) Serve(listener net.Listener) error {
	s.listener = listener
	return s.server.Serve(listener)
}

// Shutdown marks the service NOT_SERVING and stops gracefully, forcing a
// stop when ctx ends or the shutdown timeout elapses.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(shutdownTimeout):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}
