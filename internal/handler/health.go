package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"portal-rest-api/pkg/response"
)

// StartTime tracks when the server started for uptime calculation
var StartTime = time.Now()

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains shared HTTP handlers and their dependencies.
type Handler struct {
	service string
	version string
	backend Pinger
}

// New creates a new handler. backend may be nil.
func New(service, version string, backend Pinger) *Handler {
	return &Handler{service: service, version: version, backend: backend}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Check represents an individual readiness check.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Ready handles GET /api/v1/ready. The backend being down does not stop
// cached reads, so it is reported as degraded rather than failing readiness.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := []Check{{Name: "api", Status: "ok"}}

	if h.backend != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := "ok"
		if err := h.backend.Ping(ctx); err != nil {
			status = "degraded"
		}
		checks = append(checks, Check{Name: "backend", Status: status})
	}

	ready := true
	for _, check := range checks {
		if check.Status == "down" {
			ready = false
			break
		}
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, code, ReadyResponse{
		Ready:     ready,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

// StatusResponse represents the unified status response for uptime monitors.
type StatusResponse struct {
	Service       string  `json:"service"`
	Status        string  `json:"status"`
	Timestamp     string  `json:"timestamp"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	MemoryMB      float64 `json:"memory_mb"`
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, StatusResponse{
		Service:       h.service,
		Status:        "ok",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(StartTime).Seconds()),
		MemoryMB:      float64(int(memoryMB*100)) / 100,
	})
}
