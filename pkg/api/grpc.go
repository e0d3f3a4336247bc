package api

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// BrokerServiceName is the gRPC health service name reported for the
// broker event channel
const BrokerServiceName = "burrow.BrokerEvents"

// GRPCHealth serves the standard gRPC health protocol, mirroring the
// component readiness registry
type GRPCHealth struct {
	grpc     *grpc.Server
	health   *health.Server
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewGRPCHealth creates a gRPC health server
func NewGRPCHealth() *GRPCHealth {
	g := &GRPCHealth{
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
		interval: 5 * time.Second,
		stopCh:   make(chan struct{}),
	}
	healthpb.RegisterHealthServer(g.grpc, g.health)
	g.Sync()
	return g
}

// Start listens on addr and serves until Stop is called
func (g *GRPCHealth) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %v", err)
	}
	return g.Serve(lis)
}

// Serve serves on an existing listener until Stop is called
func (g *GRPCHealth) Serve(lis net.Listener) error {
	go g.run()
	return g.grpc.Serve(lis)
}

func (g *GRPCHealth) run() {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.Sync()
		case <-g.stopCh:
			return
		}
	}
}

// Sync copies the current readiness into the gRPC serving status
func (g *GRPCHealth) Sync() {
	status := healthpb.HealthCheckResponse_SERVING
	if !metrics.Readiness().Ready {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(BrokerServiceName, status)
}

// Stop marks every service NOT_SERVING and stops the server
func (g *GRPCHealth) Stop() {
	g.stopOnce.Do(func() {
		close(g.stopCh)
		g.health.Shutdown()
		g.grpc.GracefulStop()
	})
}
