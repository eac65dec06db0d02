// Package container provides dependency injection for all singleton services
package container

import (
	"fmt"

	"github.com/petpeevephobia/solvia/internal/application/services"
	"github.com/petpeevephobia/solvia/internal/infrastructure/gateway"
	"github.com/petpeevephobia/solvia/internal/infrastructure/messaging"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/logging"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/performance"
	"github.com/petpeevephobia/solvia/internal/infrastructure/persistence/credstore"
	"github.com/petpeevephobia/solvia/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Observability
	Logger         *logging.ChanneledLogger
	LogBroadcaster *logging.LogBroadcaster
	PerfTracker    *performance.Tracker

	// Infrastructure
	CredStore           *credstore.Store
	Transport           *gateway.BackendTransport
	Gateway             *gateway.Gateway
	ProgressBroadcaster *messaging.ProgressBroadcaster

	// Application services
	RefreshService   *services.RefreshService
	SessionService   *services.SessionService
	DashboardService *services.DashboardService
}

// NewContainer creates and wires all singleton services. Construction order
// matters: the refresh coordinator and session guard must exist before the
// gateway, which consumes them through its policy interfaces.
func NewContainer() (*Container, error) {
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create channeled logger: %w", err)
	}

	perfTracker := performance.NewTracker(performance.DefaultTrackerConfig())

	store, err := credstore.NewStore(config.CredentialStorePath, config.CredentialAESKey, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	transport := gateway.NewBackendTransport(config.BackendBaseURL, config.BackendRequestTimeout, logger)

	broadcaster := messaging.NewProgressBroadcaster(
		config.SocketHeartbeatInterval,
		config.SocketSendBuffer,
		config.MaxProgressConnections,
		logger,
	)

	refreshService := services.NewRefreshService(
		store,
		transport,
		config.MaxRefreshAttempts,
		config.RefreshThrottleWindow,
		config.LoopBreakerThreshold,
		logger,
		perfTracker,
	)

	sessionService := services.NewSessionService(store, refreshService, broadcaster, logger, perfTracker)

	gw := gateway.NewGateway(
		transport,
		store,
		refreshService,
		sessionService,
		config.RefreshThrottleWindow,
		logger,
		perfTracker,
	)

	dashboardService := services.NewDashboardService(
		sessionService,
		gw,
		transport,
		broadcaster,
		config.PopupCountdownSeconds,
		config.PopupFallbackHide,
		logger,
		perfTracker,
	)

	return &Container{
		Logger:              logger,
		LogBroadcaster:      logging.GetBroadcaster(),
		PerfTracker:         perfTracker,
		CredStore:           store,
		Transport:           transport,
		Gateway:             gw,
		ProgressBroadcaster: broadcaster,
		RefreshService:      refreshService,
		SessionService:      sessionService,
		DashboardService:    dashboardService,
	}, nil
}

// Close releases container-held resources.
func (c *Container) Close() error {
	c.ProgressBroadcaster.Shutdown()
	if err := c.CredStore.Close(); err != nil {
		return err
	}
	return c.Logger.Close()
}
