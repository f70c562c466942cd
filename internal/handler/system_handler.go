package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// Probe checks one backing service.
type Probe func(ctx context.Context) error

const probeTimeout = 2 * time.Second

// SystemHandler serves the unauthenticated health and metrics endpoints.
type SystemHandler struct {
	metrics http.Handler
	probes  map[string]Probe
	started time.Time
}

// NewSystemHandler takes the Prometheus handler and the dependencies /health
// should check, keyed by the name reported in the response.
func NewSystemHandler(metrics http.Handler, probes map[string]Probe) *SystemHandler {
	return &SystemHandler{metrics: metrics, probes: probes, started: time.Now()}
}

func (h *SystemHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.ServeHTTP(c.Writer, c.Request)
}

// Health godoc
// @Summary Liveness with dependency checks
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "ok", http.StatusOK
	checks := gin.H{}
	for _, name := range names {
		if err := h.probes[name](ctx); err != nil {
			checks[name] = "unreachable"
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	c.JSON(code, gin.H{
		"status":         status,
		"checks":         checks,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}
