package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/md-rashed-zaman/apptreserve/libs/config"
	"github.com/md-rashed-zaman/apptreserve/libs/grpcx"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// healthprobe exits 0 when the reservation service reports SERVING, 1 when it
// reports anything else and 2 when the check itself fails.
func main() {
	var (
		addr    = flag.String("addr", config.String("PROBE_ADDR", "localhost:9096"), "grpc address of the service")
		service = flag.String("service", "apptreserve.reservation", "health service name (empty for overall)")
		timeout = flag.Duration("timeout", 3*time.Second, "overall probe timeout")
	)
	flag.Parse()
	os.Exit(probe(*addr, *service, *timeout))
}

func probe(addr, service string, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: timeout})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", addr, err)
		return 2
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(grpcx.WithRequestID(ctx, grpcx.NewRequestID()), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		fmt.Fprintf(os.Stderr, "health check: %v\n", err)
		return 2
	}
	fmt.Println(resp.GetStatus().String())
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return 1
	}
	return 0
}
