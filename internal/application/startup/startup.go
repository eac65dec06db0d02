// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/petpeevephobia/solvia/internal/application/container"
	"github.com/petpeevephobia/solvia/internal/presentation/http/server"
	"github.com/petpeevephobia/solvia/pkg/config"
)

// Initialize performs the complete startup sequence
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("\033[32m" + `
  ███▀▀▀ ▄███▄ ██    ██  ██ ██ ▄███▄
  ▀▀▀██▄ ██ ██ ██    ██▄██ ██ ██▀██
  ▀███▀  ▀███▀ ██▀▀█  ▀█▀  ██ ██ ██
` + "\033[97m" + `
  SEO dashboard companion
` + "\033[0m")

	// Step 1: Create dependency injection container
	log.Println("Initializing dependency injection container...")
	appContainer, err := container.NewContainer()
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}
	defer appContainer.Close()

	logger := appContainer.Logger
	logger.Startup().Info("Container initialization complete - switching to channeled logging")

	// Step 2: Start the progress broadcaster
	logger.Startup().Info("Starting progress broadcaster...")
	go appContainer.ProgressBroadcaster.Run()

	// Step 3: Probe the backend (informational; the dashboard retries on use)
	probeCtx, cancelProbe := context.WithTimeout(ctx, 5*time.Second)
	if err := appContainer.Transport.Probe(probeCtx); err != nil {
		logger.Startup().Warn("Backend probe failed at startup", "backend", config.BackendBaseURL, "error", err.Error())
	} else {
		logger.Startup().Info("Backend reachable", "backend", config.BackendBaseURL)
	}
	cancelProbe()

	// Step 4: Start periodic performance cleanup
	go func() {
		ticker := time.NewTicker(performanceCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				appContainer.PerfTracker.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()

	// Step 5: Start HTTP server
	logger.Startup().Info("Starting HTTP server...")
	startServerTime := time.Now()

	port := config.Port
	httpServer := server.New(port, appContainer)

	logger.Startup().Info("HTTP server initialized", "port", port, "duration", time.Since(startServerTime))

	// Step 6: Setup graceful shutdown
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	totalStartupTime := time.Since(start)
	logger.Startup().Info("Application startup complete",
		"totalDuration", totalStartupTime,
		"port", port)

	// Wait for shutdown signal
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()

	// Cancel background tasks
	cancelBackgroundTasks()

	// Stop server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	elapsed := time.Since(start)
	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", elapsed,
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

const performanceCleanupInterval = 10 * time.Minute

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
