package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/petpeevephobia/solvia/internal/application/services"
	"github.com/petpeevephobia/solvia/internal/infrastructure/gateway"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/logging"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/performance"
)

// DashboardHandlers contains dashboard load and refresh HTTP handlers
type DashboardHandlers struct {
	dashboardService *services.DashboardService
	logger           *logging.ChanneledLogger
	perfTracker      *performance.Tracker
}

// NewDashboardHandlers creates dashboard handlers with injected dependencies
func NewDashboardHandlers(dashboardService *services.DashboardService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *DashboardHandlers {
	return &DashboardHandlers{
		dashboardService: dashboardService,
		logger:           logger,
		perfTracker:      perfTracker,
	}
}

// GetDashboard handles GET /api/v1/dashboard - returns the last applied
// snapshot and current group progress without triggering a load
func (h *DashboardHandlers) GetDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"snapshot": h.dashboardService.Snapshot(),
		"groups":   h.dashboardService.Groups(),
		"loading":  h.dashboardService.Loading(),
	})
}

// PostLoad handles POST /api/v1/dashboard/load - runs the page-entry load:
// session check, probe, cache-first retrieval, fresh load on a miss
func (h *DashboardHandlers) PostLoad(c *gin.Context) {
	err := h.dashboardService.InitialLoad(c.Request.Context())
	h.respondLoad(c, err)
}

// PostRefresh handles POST /api/v1/dashboard/refresh - re-runs the fresh-load
// sequence on demand, overwriting today's cache
func (h *DashboardHandlers) PostRefresh(c *gin.Context) {
	err := h.dashboardService.RefreshMetrics(c.Request.Context())
	h.respondLoad(c, err)
}

// respondLoad maps orchestrator outcomes onto HTTP. Stage failures inside a
// load are not surfaced here; they arrive at the client as empty-state
// progress events.
func (h *DashboardHandlers) respondLoad(c *gin.Context, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"snapshot": h.dashboardService.Snapshot(),
			"groups":   h.dashboardService.Groups(),
		})
	case errors.Is(err, services.ErrNotAuthenticated), errors.Is(err, gateway.ErrSessionTerminated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated", "redirect": "/login"})
	case errors.Is(err, services.ErrLoadInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "load already in progress"})
	default:
		var statusErr *gateway.StatusError
		if errors.As(err, &statusErr) {
			// Business errors pass through untouched for the client to render.
			c.JSON(statusErr.StatusCode, gin.H{"error": string(statusErr.Body)})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
