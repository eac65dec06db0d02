package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/petpeevephobia/solvia/internal/application/container"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/logging"
	"github.com/petpeevephobia/solvia/internal/infrastructure/security"
)

// SysOpHandlers serves the operator surface: live log streaming, log level
// control, performance stats, and key provisioning.
type SysOpHandlers struct {
	container *container.Container
}

// NewSysOpHandlers creates sysop handlers bound to the DI container
func NewSysOpHandlers(container *container.Container) *SysOpHandlers {
	return &SysOpHandlers{container: container}
}

// StreamLogs handles GET /sysop-logs/stream - server-sent events feed of
// structured log lines, filterable by channel and level
func (h *SysOpHandlers) StreamLogs(c *gin.Context) {
	broadcaster := h.container.LogBroadcaster
	if broadcaster == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Log broadcaster not available"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")

	channelFilter := c.DefaultQuery("channel", "all")
	levelFilter := c.DefaultQuery("level", "INFO")
	var logLevel slog.Level
	switch levelFilter {
	case "DEBUG":
		logLevel = slog.LevelDebug
	case "INFO":
		logLevel = slog.LevelInfo
	case "WARN":
		logLevel = slog.LevelWarn
	case "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	filters := logging.AppliedFilters{
		Channel: logging.Channel(channelFilter),
		Level:   logLevel,
	}

	client := broadcaster.NewClient(filters)
	broadcaster.RegisterClient(client)
	defer broadcaster.UnregisterClient(client)

	fmt.Fprintf(c.Writer, ": connection established\n\n")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-client.Channel:
			if !ok {
				return false
			}
			fmt.Fprintf(w, "data: %s\n\n", message)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// GetLogLevels handles GET /api/sysop/logs/levels - returns current log
// levels for all channels
func (h *SysOpHandlers) GetLogLevels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"levels": h.container.Logger.GetChannelLevels()})
}

// SetLogLevel handles POST /api/sysop/logs/levels
func (h *SysOpHandlers) SetLogLevel(c *gin.Context) {
	var req struct {
		Channel string `json:"channel" binding:"required"`
		Level   string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel and level are required"})
		return
	}

	var level slog.Level
	switch req.Level {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown level"})
		return
	}

	if err := h.container.Logger.SetChannelLevel(logging.Channel(req.Channel), level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": req.Channel, "level": req.Level})
}

// GetPerformanceStats handles GET /api/sysop/performance - overall tracker
// stats plus a categorized point-in-time snapshot
func (h *SysOpHandlers) GetPerformanceStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stats":    h.container.PerfTracker.GetOverallStats(),
		"snapshot": h.container.PerfTracker.TakeSnapshot(),
	})
}

// GetPerformanceAlerts handles GET /api/sysop/performance/alerts
func (h *SysOpHandlers) GetPerformanceAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alerts": h.container.PerfTracker.GetAlerts()})
}

// GenerateKey handles POST /api/sysop/generate-key - produces a hex key
// suitable for encrypting the credential store at rest
func (h *SysOpHandlers) GenerateKey(c *gin.Context) {
	length := 32
	if raw := c.Query("length"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 16 || parsed > 64 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "length must be between 16 and 64"})
			return
		}
		length = parsed
	}

	key, err := security.GenerateSecureKey(length)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "key generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key})
}
