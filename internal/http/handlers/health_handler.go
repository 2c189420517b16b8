// Health endpoint: liveness plus a cheap store probe.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vallit/go-site-backend/internal/http/middleware"
	"github.com/vallit/go-site-backend/internal/repo"
)

// healthProbeTimeout bounds the store probe so a wedged database turns into
// a fast 503 instead of a hanging health check.
const healthProbeTimeout = 500 * time.Millisecond

// Health handles GET /health. The store probe is a count over a small table;
// any error or timeout reports degraded with a 503.
func (h *Handlers) Health(c *gin.Context) {
	if h.db == nil {
		ok(c, http.StatusOK, gin.H{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
	defer cancel()

	n, err := repo.CountAppointments(ctx, h.db)
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("health probe failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	ok(c, http.StatusOK, gin.H{
		"status":       "ok",
		"appointments": n,
	})
}
