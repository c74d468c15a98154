// Package grpcapi exposes grpc.health.v1.Health so load balancers and
// orchestrators can probe the server over gRPC.
package grpcapi

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/gymgate/server/internal/logger"
)

// AccessServiceName is the per-service name reported next to the overall
// ("") status.
const AccessServiceName = "gymgate.v1.Access"

type Config struct {
	// Ping checks storage. Nil means always serving.
	Ping func(ctx context.Context) error

	// Interval between pings. Defaults to 5s.
	Interval time.Duration
}

type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	ping     func(ctx context.Context) error
	interval time.Duration
	log      *logger.Logger
}

func NewServer(cfg Config, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}

	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{grpc: gs, health: hs, ping: cfg.Ping, interval: cfg.Interval, log: log}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Serve blocks until Stop. Call Watch alongside it to keep status current.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Watch pings storage every interval until ctx is done.
func (s *Server) Watch(ctx context.Context) {
	s.Check(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Check runs one ping and publishes the result.
func (s *Server) Check(ctx context.Context) bool {
	if s.ping != nil {
		pctx, cancel := context.WithTimeout(ctx, s.interval)
		defer cancel()
		if err := s.ping(pctx); err != nil {
			s.log.Warn("health ping failed", "error", err)
			s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
			return false
		}
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return true
}

// Stop flips every status to NOT_SERVING and drains in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(AccessServiceName, st)
}
