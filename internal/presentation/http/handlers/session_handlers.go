// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/petpeevephobia/solvia/internal/application/services"
	"github.com/petpeevephobia/solvia/internal/domain/entities/session"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/logging"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/performance"
)

// SessionHandlers contains all session-related HTTP handlers
type SessionHandlers struct {
	sessionService *services.SessionService
	refreshService *services.RefreshService
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// NewSessionHandlers creates session handlers with injected dependencies
func NewSessionHandlers(sessionService *services.SessionService, refreshService *services.RefreshService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *SessionHandlers {
	return &SessionHandlers{
		sessionService: sessionService,
		refreshService: refreshService,
		logger:         logger,
		perfTracker:    perfTracker,
	}
}

type loginRequest struct {
	Token string `json:"token" binding:"required"`
}

// PostLogin handles POST /api/v1/session/login - stores a backend-issued
// credential and validates it
func (h *SessionHandlers) PostLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	if !h.sessionService.Login(c.Request.Context(), req.Token, time.Now()) {
		c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false, "redirect": "/login"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"identity":      h.sessionService.Identity(),
	})
}

// PostLogout handles POST /api/v1/session/logout
func (h *SessionHandlers) PostLogout(c *gin.Context) {
	h.sessionService.Terminate("logout")
	c.JSON(http.StatusOK, gin.H{"authenticated": false})
}

// GetStatus handles GET /api/v1/session/status - reports session validity,
// identity, and refresh bookkeeping for diagnostics
func (h *SessionHandlers) GetStatus(c *gin.Context) {
	state := h.sessionService.State()
	c.JSON(http.StatusOK, gin.H{
		"state":         state.String(),
		"authenticated": state == session.StateAuthenticated,
		"identity":      h.sessionService.Identity(),
		"refresh":       h.refreshService.Snapshot(),
	})
}

// AuthMiddleware gates application routes on the session validity machine.
// Requests outside StateAuthenticated get a login redirect hint; the
// dashboard client navigates on it.
func (h *SessionHandlers) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.sessionService.State() != session.StateAuthenticated {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated", "redirect": "/login"})
			c.Abort()
			return
		}
		c.Next()
	}
}
