package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"portal-rest-api/internal/cache"
	"portal-rest-api/internal/repository"
	"portal-rest-api/internal/service"
	"portal-rest-api/pkg/apierror"
	"portal-rest-api/pkg/response"

	"github.com/dustin/go-humanize"
)

// StatsSource is the part of the records backend the stats page reads.
type StatsSource interface {
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	caches     *cache.PostCaches
	feedback   *service.FeedbackService
	backend    StatsSource
	uploadLogs repository.UploadLogRepository // nil when the audit log is off
	dbType     string
	startTime  time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(
	caches *cache.PostCaches,
	feedback *service.FeedbackService,
	backend StatsSource,
	uploadLogs repository.UploadLogRepository,
	dbType string,
) *AdminHandler {
	return &AdminHandler{
		caches:     caches,
		feedback:   feedback,
		backend:    backend,
		uploadLogs: uploadLogs,
		dbType:     dbType,
		startTime:  time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	uptime := time.Since(h.startTime)
	stats["uptime_seconds"] = int64(uptime.Seconds())
	stats["uptime_human"] = uptime.Round(time.Second).String()
	stats["started"] = humanize.Time(h.startTime)
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc":       humanize.IBytes(memStats.Alloc),
		"total_alloc": humanize.IBytes(memStats.TotalAlloc),
		"sys":         humanize.IBytes(memStats.Sys),
		"heap_inuse":  humanize.IBytes(memStats.HeapInuse),
		"num_gc":      memStats.NumGC,
		"goroutines":  runtime.NumGoroutine(),
	}

	if h.caches != nil {
		stats["caches"] = h.caches.Sizes()
	}

	if h.feedback != nil {
		pending, err := h.feedback.Pending(ctx)
		switch {
		case err != nil:
			stats["feedback_buffer"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		case pending < 0:
			stats["feedback_buffer"] = map[string]interface{}{"status": "not_configured"}
		default:
			stats["feedback_buffer"] = map[string]interface{}{
				"status":        "connected",
				"pending_items": pending,
			}
		}
	}

	if h.backend != nil {
		backendStats, err := h.backend.GetStats(ctx)
		if err == nil {
			backendStats["status"] = "connected"
			stats["backend"] = backendStats
		} else {
			stats["backend"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	} else {
		stats["backend"] = map[string]interface{}{"status": "not_configured"}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// InvalidateRequest names the posts whose cache entries should be dropped.
// An empty list drops every entry.
type InvalidateRequest struct {
	Slugs []string `json:"slugs"`
}

// InvalidateCache handles POST /api/v1/admin/cache/invalidate
func (h *AdminHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req InvalidateRequest
	if r.ContentLength != 0 {
		if apiErr := decodeJSON(w, r, &req); apiErr != nil {
			response.Error(w, apiErr)
			return
		}
	}

	if len(req.Slugs) == 0 {
		h.caches.InvalidateAll()
	} else {
		h.caches.InvalidatePost(req.Slugs...)
	}

	response.OK(w, map[string]interface{}{
		"invalidated": req.Slugs,
		"sizes":       h.caches.Sizes(),
	})
}

// GetUploadLogs handles GET /api/v1/admin/uploads/logs
func (h *AdminHandler) GetUploadLogs(w http.ResponseWriter, r *http.Request) {
	if h.uploadLogs == nil {
		response.Error(w, apierror.ServiceUnavailable("Upload audit log is not configured"))
		return
	}

	page, limit, offset := pagination(r, 20, 100)
	logs, total, err := h.uploadLogs.GetUploadLogs(r.Context(), limit, offset)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSONWithMeta(w, http.StatusOK, logs, page, limit, total)
}
