package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
)

const healthCheckTimeout = 3 * time.Second

// Pinger is implemented by every dependency the health checks probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	database Pinger
	cache    Pinger
	storage  Pinger
	version  string
	started  time.Time
}

func NewHealthHandlers(database, cache, storage Pinger, version string) *HealthHandlers {
	return &HealthHandlers{
		database: database,
		cache:    cache,
		storage:  storage,
		version:  version,
		started:  time.Now(),
	}
}

// HealthCheck is the liveness probe.
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// ReadinessCheck fails while the database or cache is unreachable.
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	if h.database.Ping(ctx) != nil || h.cache.Ping(ctx) != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "Critical services unavailable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ready",
		"message": "All systems operational",
	})
}

type dependencyCheck struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// DetailedHealthCheck probes every dependency and reports each result.
func (h *HealthHandlers) DetailedHealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	overall := "healthy"
	checks := map[string]dependencyCheck{}
	for name, p := range map[string]Pinger{"database": h.database, "redis": h.cache, "storage": h.storage} {
		check := probe(ctx, p)
		if check.Status != "healthy" {
			overall = "degraded"
		}
		checks[name] = check
	}

	status := http.StatusOK
	if overall != "healthy" {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]any{
		"overall_status": overall,
		"checks":         checks,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime":         time.Since(h.started).Round(time.Second).String(),
		"version":        h.version,
		"goroutines":     runtime.NumGoroutine(),
	})
}

func probe(ctx context.Context, p Pinger) dependencyCheck {
	if p == nil {
		return dependencyCheck{Status: "unhealthy", Message: "not configured"}
	}
	start := time.Now()
	err := p.Ping(ctx)
	check := dependencyCheck{Status: "healthy", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		check.Status = "unhealthy"
		check.Message = err.Error()
	}
	return check
}
