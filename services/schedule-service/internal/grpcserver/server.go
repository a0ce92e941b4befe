// Package grpcserver serves grpc.health.v1 with a status that follows the readiness checks.
package grpcserver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/workhours/libs/grpcx"
	"github.com/md-rashed-zaman/workhours/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func New(logger *slog.Logger) *grpc.Server {
	return grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcx.UnaryServerRequestIDInterceptor(),
			grpcx.UnaryServerLogInterceptor(logger),
		),
	)
}

type Health struct {
	server   *health.Server
	service  string
	checks   []runtime.ReadyCheck
	logger   *slog.Logger
	interval time.Duration
	last     healthpb.HealthCheckResponse_ServingStatus
}

// RegisterHealth registers the health service for both "" and service.
func RegisterHealth(s *grpc.Server, service string, checks []runtime.ReadyCheck, logger *slog.Logger) *Health {
	h := &Health{
		server:   health.NewServer(),
		service:  service,
		checks:   checks,
		logger:   logger,
		interval: 5 * time.Second,
	}
	healthpb.RegisterHealthServer(s, h.server)
	return h
}

// Refresh runs the checks once and publishes the result.
func (h *Health) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if failures := runtime.RunChecks(ctx, h.checks); len(failures) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		if h.last != status {
			h.logger.Warn("grpc health not serving", "failures", strings.Join(failures, "; "))
		}
	}
	h.last = status
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(h.service, status)
	return status
}

func (h *Health) Run(ctx context.Context) {
	h.Refresh(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}
