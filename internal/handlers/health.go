package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/covenant/internal/middleware"
)

const (
	// APIVersion is the current version of the API
	APIVersion = "0.1.0"
	// HealthCheckTimeout is the timeout for database health checks
	HealthCheckTimeout = 2 * time.Second
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SweepReporter reports the most recent run of a background job.
type SweepReporter interface {
	LastRun() (time.Time, error)
}

// HealthHandler handles health check and readiness endpoints.
type HealthHandler struct {
	db        Pinger
	sweep     SweepReporter
	startTime time.Time
	env       string
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(db Pinger, env string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		startTime: time.Now(),
		env:       env,
	}
}

// WithSweep makes Info report the overdue sweep's last run.
func (h *HealthHandler) WithSweep(r SweepReporter) *HealthHandler {
	h.sweep = r
	return h
}

// HealthResponse represents the basic health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// SweepStatus is the outcome of the last overdue sweep.
type SweepStatus struct {
	LastRun *time.Time `json:"last_run,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// InfoResponse represents the API information response.
type InfoResponse struct {
	OverdueSweep *SweepStatus `json:"overdue_sweep,omitempty"`
	Version      string       `json:"version"`
	Environment  string       `json:"environment"`
	Uptime       string       `json:"uptime"`
}

// Health handles GET /health. It checks no dependencies and serves as the
// liveness probe.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "healthy",
	})
}

// Ready handles GET /health/ready.
// Returns 200 OK if the database answers a ping, 503 Service Unavailable otherwise.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), HealthCheckTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		if log := middleware.GetLogger(c); log != nil {
			log.Error("Database health check failed", err, map[string]interface{}{
				"timeout": HealthCheckTimeout.String(),
			})
		}

		c.JSON(http.StatusServiceUnavailable, ReadyResponse{
			Status:   "not_ready",
			Database: "disconnected",
		})
		return
	}

	c.JSON(http.StatusOK, ReadyResponse{
		Status:   "ready",
		Database: "connected",
	})
}

// Info handles GET /api/v1/info. Besides version and uptime it reports the
// overdue sweep, which has no endpoint of its own.
func (h *HealthHandler) Info(c *gin.Context) {
	resp := InfoResponse{
		Version:     APIVersion,
		Environment: h.env,
		Uptime:      formatUptime(time.Since(h.startTime)),
	}
	if h.sweep != nil {
		status := &SweepStatus{}
		at, err := h.sweep.LastRun()
		if !at.IsZero() {
			status.LastRun = &at
		}
		if err != nil {
			status.Error = err.Error()
		}
		resp.OverdueSweep = status
	}

	c.JSON(http.StatusOK, resp)
}

// formatUptime formats a duration into a human-readable string.
func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
