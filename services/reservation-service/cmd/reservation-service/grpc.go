package main

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/md-rashed-zaman/apptreserve/libs/grpcx"
	"github.com/md-rashed-zaman/apptreserve/libs/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const healthService = "apptreserve.reservation"

// newGrpcServer exposes the standard gRPC health service; the status follows
// the same dependency checks as /readyz.
func newGrpcServer() (*grpc.Server, *health.Server) {
	srv := grpcx.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

func updateHealth(ctx context.Context, logger *slog.Logger, hs *health.Server, checks ...runtime.ReadyCheck) {
	status := healthpb.HealthCheckResponse_SERVING
	if failures := runtime.RunChecks(ctx, checks...); len(failures) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		logger.Warn("dependency checks failing", "failures", failures)
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(healthService, status)
}

func watchHealth(ctx context.Context, logger *slog.Logger, hs *health.Server, every time.Duration, checks ...runtime.ReadyCheck) {
	updateHealth(ctx, logger, hs, checks...)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			updateHealth(ctx, logger, hs, checks...)
		}
	}
}

func serveGrpc(ctx context.Context, logger *slog.Logger, srv *grpc.Server, port string) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()
	logger.Info("grpc server starting", "addr", lis.Addr().String())
	return srv.Serve(lis)
}
