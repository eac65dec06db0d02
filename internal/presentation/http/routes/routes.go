// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/petpeevephobia/solvia/internal/application/container"
	"github.com/petpeevephobia/solvia/internal/presentation/http/handlers"
	"github.com/petpeevephobia/solvia/internal/presentation/http/middleware"
	"github.com/petpeevephobia/solvia/pkg/config"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	// Serve dashboard static assets (scripts, styles, chart bundles).
	r.Static("/assets", "web/dashboard/assets")
	r.StaticFile("/favicon.ico", "web/dashboard/favicon.ico")

	// Initialize handlers
	sessionHandlers := handlers.NewSessionHandlers(container.SessionService, container.RefreshService, container.Logger, container.PerfTracker)
	dashboardHandlers := handlers.NewDashboardHandlers(container.DashboardService, container.Logger, container.PerfTracker)
	progressHandlers := handlers.NewProgressHandlers(container.ProgressBroadcaster, config.SocketWriteTimeout, container.Logger)
	pageHandlers := handlers.NewPageHandlers(container.SessionService, "web/dashboard")
	sysopHandlers := handlers.NewSysOpHandlers(container)

	// Page surfaces
	r.GET("/", pageHandlers.Home)
	r.GET("/login", pageHandlers.Login)

	// Health probe for the dashboard's connection-status indicator
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		// Session lifecycle
		sessionGroup := api.Group("/session")
		{
			sessionGroup.POST("/login", sessionHandlers.PostLogin)
			sessionGroup.POST("/logout", sessionHandlers.PostLogout)
			sessionGroup.GET("/status", sessionHandlers.GetStatus)
		}

		// Dashboard loads run their own session check from the top; only the
		// passive snapshot read sits behind the auth gate.
		dashboardGroup := api.Group("/dashboard")
		{
			dashboardGroup.GET("", sessionHandlers.AuthMiddleware(), dashboardHandlers.GetDashboard)
			dashboardGroup.POST("/load", dashboardHandlers.PostLoad)
			dashboardGroup.POST("/refresh", dashboardHandlers.PostRefresh)
			dashboardGroup.GET("/progress", progressHandlers.Stream)
		}
	}

	// Operator endpoints
	sysopAPI := r.Group("/api/sysop")
	{
		sysopAPI.GET("/logs/levels", sysopHandlers.GetLogLevels)
		sysopAPI.POST("/logs/levels", sysopHandlers.SetLogLevel)
		sysopAPI.GET("/performance", sysopHandlers.GetPerformanceStats)
		sysopAPI.GET("/performance/alerts", sysopHandlers.GetPerformanceAlerts)
		sysopAPI.POST("/generate-key", sysopHandlers.GenerateKey)
	}

	// Log streaming is a special case and can remain at top level
	r.GET("/sysop-logs/stream", sysopHandlers.StreamLogs)

	return r
}
