package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/petpeevephobia/solvia/internal/application/services"
	"github.com/petpeevephobia/solvia/internal/domain/entities/session"
)

// PageHandlers serves the dashboard's page surfaces and owns the navigation
// primitive: every terminated session lands on /login via a real redirect.
type PageHandlers struct {
	sessionService *services.SessionService
	webRoot        string
}

// NewPageHandlers creates page handlers serving static assets from webRoot
func NewPageHandlers(sessionService *services.SessionService, webRoot string) *PageHandlers {
	return &PageHandlers{
		sessionService: sessionService,
		webRoot:        webRoot,
	}
}

// Home handles GET / - the dashboard shell. Unauthenticated visitors are
// redirected to the login surface.
func (h *PageHandlers) Home(c *gin.Context) {
	if h.sessionService.State() != session.StateAuthenticated {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	c.File(h.webRoot + "/index.html")
}

// Login handles GET /login. OAuth outcome query parameters may be attached
// by the backend's redirect; they are inert decoration here and are left
// for the page script to strip.
func (h *PageHandlers) Login(c *gin.Context) {
	c.File(h.webRoot + "/login.html")
}
