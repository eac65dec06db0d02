package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/petpeevephobia/solvia/internal/domain/entities/dashboard"
	"github.com/petpeevephobia/solvia/internal/infrastructure/gateway"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/logging"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/performance"
)

// ErrLoadInProgress is returned when a fresh load is requested while one is
// already running. The in-flight load's progress events cover both callers.
var ErrLoadInProgress = errors.New("dashboard load already in progress")

// ErrNotAuthenticated is returned when a load is requested without a valid
// session.
var ErrNotAuthenticated = errors.New("session not authenticated")

// ProgressEvents is the UI feedback surface for dashboard loads: loading and
// success popups, per-group progress, and payload application.
type ProgressEvents interface {
	ShowLoadingPopup()
	UpdateGroups(groups []dashboard.Group)
	ShowSuccessPopup(countdownSeconds int)
	HidePopups()
	ApplySnapshot(snapshot *dashboard.Snapshot, fromCache bool)
	ApplyEmptyState(reason string)
}

// DashboardService orchestrates dashboard loads: cache-first retrieval,
// the staged fresh-load sequence across metric groups, popup timing, and
// the fire-and-forget cache write-back.
type DashboardService struct {
	mu      sync.Mutex
	loading bool
	groups  *dashboard.GroupSet
	current *dashboard.Snapshot

	guard     *SessionService
	gw        *gateway.Gateway
	transport *gateway.BackendTransport
	events    ProgressEvents

	countdownSeconds int
	fallbackHide     time.Duration

	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewDashboardService creates the load orchestrator.
func NewDashboardService(
	guard *SessionService,
	gw *gateway.Gateway,
	transport *gateway.BackendTransport,
	events ProgressEvents,
	countdownSeconds int,
	fallbackHide time.Duration,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *DashboardService {
	return &DashboardService{
		groups:           dashboard.NewGroupSet(),
		guard:            guard,
		gw:               gw,
		transport:        transport,
		events:           events,
		countdownSeconds: countdownSeconds,
		fallbackHide:     fallbackHide,
		logger:           logger,
		perfTracker:      perfTracker,
	}
}

// InitialLoad runs on dashboard entry: validate the session, probe the
// backend, then serve today's cache when present or fall through to a fresh
// load. A cache hit issues zero fresh-fetch calls.
func (s *DashboardService) InitialLoad(ctx context.Context) error {
	marker := s.perfTracker.StartOperation("dashboard:initial_load")
	defer s.perfTracker.CompleteOperation(marker)

	if !s.guard.CheckAuth(ctx, time.Now()) {
		marker.SetError(ErrNotAuthenticated)
		return ErrNotAuthenticated
	}

	if err := s.transport.Probe(ctx); err != nil {
		// Probe failure is advisory; the load itself decides what is fatal.
		s.logger.Dashboard().Warn("Backend probe failed before load", "error", err.Error())
	}

	cacheMarker := s.perfTracker.StartOperation("dashboard:cache_get")
	snapshot, hit, err := s.gw.FetchDashboardCache(ctx)
	s.perfTracker.CompleteOperation(cacheMarker)

	if err != nil {
		if errors.Is(err, gateway.ErrSessionTerminated) {
			marker.SetError(err)
			return err
		}
		s.logger.Dashboard().Warn("Cache retrieval failed, falling through to fresh load", "error", err.Error())
		marker.AddCacheMiss()
	} else if hit {
		marker.AddCacheHit()
		s.logger.LogCacheOperation("dashboard_snapshot", true, 0)

		s.mu.Lock()
		s.current = snapshot
		s.mu.Unlock()

		s.events.ApplySnapshot(snapshot, true)
		return nil
	} else {
		marker.AddCacheMiss()
		s.logger.LogCacheOperation("dashboard_snapshot", false, 0)
	}

	return s.freshLoad(ctx)
}

// RefreshMetrics re-enters the fresh-load sequence on demand. The write-back
// at the end overwrites today's cache entry whether or not one existed.
func (s *DashboardService) RefreshMetrics(ctx context.Context) error {
	if !s.guard.CheckAuth(ctx, time.Now()) {
		return ErrNotAuthenticated
	}
	return s.freshLoad(ctx)
}

// freshLoad runs the staged metric-group sequence. The group set never ends
// in a partial state: any stage failure marks every remaining group done so
// the progress UI cannot hang.
func (s *DashboardService) freshLoad(ctx context.Context) error {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		s.logger.Dashboard().Debug("Fresh load requested while one is in flight")
		return ErrLoadInProgress
	}
	s.loading = true
	s.groups = dashboard.NewGroupSet()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	marker := s.perfTracker.StartOperation("dashboard:fresh_load")
	defer s.perfTracker.CompleteOperation(marker)

	s.events.ShowLoadingPopup()
	s.publishGroups()

	metrics, err := s.gw.FetchMetrics(ctx)
	if err != nil {
		marker.SetError(err)
		s.failLoad("metrics fetch failed", err)
		return err
	}

	keywords, err := s.gw.FetchKeywords(ctx)
	if err != nil {
		marker.SetError(err)
		s.failLoad("keyword fetch failed", err)
		return err
	}

	s.markGroup(dashboard.GroupVisibility, dashboard.LoadDone)
	s.markGroup(dashboard.GroupOrganicImpressions, dashboard.LoadDone)
	s.markGroup(dashboard.GroupAI, dashboard.LoadLoading)
	s.publishGroups()

	insights, err := s.loadInsights(ctx)
	if err != nil {
		marker.SetError(err)
		s.failLoad("insight fetch failed", err)
		return err
	}

	contentSummary, err := s.gw.FetchContentSummary(ctx)
	if err != nil {
		// Content summary is decoration on the snapshot, not a load stage.
		s.logger.Dashboard().Warn("Content summary fetch failed", "error", err.Error())
		contentSummary = nil
	}

	s.markGroup(dashboard.GroupAI, dashboard.LoadDone)
	s.publishGroups()

	snapshot := &dashboard.Snapshot{
		Metrics:        metrics,
		Keywords:       keywords,
		AIInsights:     insights,
		ContentSummary: contentSummary,
		CapturedAt:     time.Now().UTC(),
	}

	s.mu.Lock()
	s.current = snapshot
	s.mu.Unlock()

	s.events.ApplySnapshot(snapshot, false)
	s.completePopups()

	// Write-back is fire-and-forget: a failed cache store never fails the page.
	go s.persistSnapshot(snapshot)

	return nil
}

// loadInsights reuses cached AI insights when present, otherwise triggers
// explicit generation.
func (s *DashboardService) loadInsights(ctx context.Context) (dashboard.Insights, error) {
	insightMarker := s.perfTracker.StartOperation("dashboard:insights")
	defer s.perfTracker.CompleteOperation(insightMarker)

	insights, cached, err := s.gw.FetchAIInsights(ctx)
	if err != nil {
		return nil, err
	}
	if cached {
		insightMarker.AddCacheHit()
		return insights, nil
	}

	insightMarker.AddCacheMiss()
	return s.gw.GenerateAIInsights(ctx)
}

// failLoad drives the failure arm of the sequence: every group is forced to
// done, the popups are closed out, and the presentation gets an empty state.
func (s *DashboardService) failLoad(reason string, err error) {
	s.logger.LogError(logging.ChannelDashboard, "fresh_load", err, map[string]any{"stage": reason})

	s.mu.Lock()
	s.groups.MarkAllDone()
	s.current = &dashboard.Snapshot{CapturedAt: time.Now().UTC()}
	s.mu.Unlock()

	s.publishGroups()
	s.events.ApplyEmptyState(reason)
	s.completePopups()
}

// completePopups shows the success popup with its visible countdown and arms
// two hide timers of the same duration. The second timer is an intentional
// redundancy: the popups must close even if the countdown path is interrupted.
func (s *DashboardService) completePopups() {
	s.events.ShowSuccessPopup(s.countdownSeconds)

	time.AfterFunc(time.Duration(s.countdownSeconds)*time.Second, s.events.HidePopups)
	time.AfterFunc(s.fallbackHide, s.events.HidePopups)
}

// persistSnapshot writes the aggregated payload back to the server-side
// cache with its own deadline, detached from the request that produced it.
func (s *DashboardService) persistSnapshot(snapshot *dashboard.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	storeMarker := s.perfTracker.StartOperation("dashboard:cache_store")
	defer s.perfTracker.CompleteOperation(storeMarker)

	if err := s.gw.StoreDashboardCache(ctx, snapshot); err != nil {
		s.logger.Dashboard().Warn("Cache write-back failed", "error", err.Error())
		storeMarker.SetError(err)
		return
	}
	s.logger.Dashboard().Debug("Snapshot cached for today")
}

func (s *DashboardService) markGroup(id dashboard.GroupID, state dashboard.LoadState) {
	s.mu.Lock()
	s.groups.Mark(id, state)
	s.mu.Unlock()
}

func (s *DashboardService) publishGroups() {
	s.mu.Lock()
	groups := s.groups.Groups()
	s.mu.Unlock()
	s.events.UpdateGroups(groups)
}

// Snapshot returns the last applied payload, nil before the first load.
func (s *DashboardService) Snapshot() *dashboard.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Groups returns the current metric-group progress.
func (s *DashboardService) Groups() []dashboard.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups.Groups()
}

// Loading reports whether a fresh-load sequence is in flight.
func (s *DashboardService) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}
