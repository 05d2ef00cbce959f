package control

import (
	"context"
	"time"

	"github.com/proxygrid/proxygrid/internal/models"
)

// Health status values reported by a module's control channel.
const (
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
	HealthUnknown   = "unknown"
)

// HealthSnapshot is the result of a single health probe. Transport
// failures are captured in Status/Error, never raised to the caller.
type HealthSnapshot struct {
	Status            string    `json:"status"`
	UptimeSeconds     int64     `json:"uptimeSeconds"`
	Version           string    `json:"version"`
	ActiveConnections int       `json:"activeConnections"`
	LastCheck         time.Time `json:"lastCheck"`
	Error             string    `json:"error,omitempty"`
}

// Metrics is a numeric snapshot from a module (cpu/memory/rps/latency).
// Empty on failure.
type Metrics map[string]float64

// Channel is the per-module control interface. Every call carries its
// own deadline and reports failure through the return value, not an
// error, so one unreachable module cannot fail an API request that has
// already committed its state.
type Channel interface {
	HealthCheck(ctx context.Context) HealthSnapshot
	GetMetrics(ctx context.Context) Metrics
	UpdateConfig(ctx context.Context, config models.JSON) bool
	ReloadRoutes(ctx context.Context) bool
	Start(ctx context.Context) bool
	Stop(ctx context.Context) bool
	Close() error
}

// Provider hands out control channels by module id. The Manager is the
// production implementation; tests substitute fakes per module id.
type Provider interface {
	GetChannel(moduleID string, host string, port int) Channel
	Drop(moduleID string)
}
