// Package grpc runs the gRPC health side port of the service binaries and
// probes it from the command line.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/louisbranch/oilandrope/internal/platform/timeouts"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer serves grpc.health.v1 on its own listener.
type HealthServer struct {
	listener net.Listener
	server   *gogrpc.Server
	health   *health.Server
}

// NewHealthServer listens on addr. An empty service name reports overall
// process health.
func NewHealthServer(addr string) (*HealthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen health on %s: %w", addr, err)
	}
	server := gogrpc.NewServer(gogrpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{listener: listener, server: server, health: healthServer}, nil
}

// Addr returns the bound listener address.
func (s *HealthServer) Addr() string {
	return s.listener.Addr().String()
}

// SetServing flips the status for service.
func (s *HealthServer) SetServing(service string, serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, status)
}

// Serve blocks until ctx ends, then drains in-flight checks.
func (s *HealthServer) Serve(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.server.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		stopped := make(chan struct{})
		go func() {
			s.server.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(timeouts.Shutdown):
			s.server.Stop()
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, gogrpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve health: %w", err)
	}
}

// Probe dials addr and waits until the health check reports SERVING or ctx ends.
func Probe(ctx context.Context, addr string, service string) error {
	conn, err := gogrpc.NewClient(addr,
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return fmt.Errorf("dial health %s: %w", addr, err)
	}
	defer conn.Close()
	return WaitForHealth(ctx, conn, service, log.Printf)
}

// WaitForHealth blocks until the gRPC health check reports SERVING or the context ends.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client := grpc_health_v1.NewHealthClient(conn)
	backoff := 100 * time.Millisecond
	for {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		response, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		if err == nil && response.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING {
			return nil
		}
		if logf != nil {
			if err != nil {
				logf("health: waiting: %v", err)
			} else {
				logf("health: waiting: status %s", response.GetStatus())
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for gRPC health: %w", ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < time.Second {
			backoff = min(backoff*2, time.Second)
		}
	}
}
