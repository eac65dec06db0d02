// Package services provides application-level services that orchestrate
// business logic and coordinate between infrastructure and domain entities.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/petpeevephobia/solvia/internal/domain/entities/session"
	"github.com/petpeevephobia/solvia/internal/infrastructure/gateway"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/logging"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/performance"
	"github.com/petpeevephobia/solvia/internal/infrastructure/security"
)

var errLoopBreakerTripped = errors.New("consecutive failure threshold exceeded")

// CredentialStore is the persistence surface for the single bearer credential.
type CredentialStore interface {
	Get() (string, bool)
	Set(token string) error
	Clear() error
}

// RefreshService owns the process-wide RefreshState and serializes token
// refresh attempts. All throttling and loop-breaking policy lives here;
// the gateway and session guard consult it but never mutate refresh state
// themselves outside the Record* accounting hooks.
type RefreshService struct {
	mu        sync.Mutex
	state     session.RefreshState
	store     CredentialStore
	transport *gateway.BackendTransport

	maxAttempts          int
	throttle             time.Duration
	loopBreakerThreshold int

	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewRefreshService creates the refresh coordinator.
func NewRefreshService(
	store CredentialStore,
	transport *gateway.BackendTransport,
	maxAttempts int,
	throttle time.Duration,
	loopBreakerThreshold int,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *RefreshService {
	return &RefreshService{
		store:                store,
		transport:            transport,
		maxAttempts:          maxAttempts,
		throttle:             throttle,
		loopBreakerThreshold: loopBreakerThreshold,
		logger:               logger,
		perfTracker:          perfTracker,
	}
}

// EnsureFreshToken validates the credential and, when it is expired and
// policy allows, performs exactly one refresh call. On OutcomeRefreshStarted
// the returned string is the newly persisted credential; for every other
// outcome it is empty except OutcomeAlreadyFresh, which echoes the input.
func (s *RefreshService) EnsureFreshToken(ctx context.Context, credential string, now time.Time) (session.RefreshOutcome, string) {
	marker := s.perfTracker.StartOperation("session:refresh")
	defer s.perfTracker.CompleteOperation(marker)

	s.mu.Lock()

	// Loop-breaker trumps everything: no network call, credential dropped.
	if s.state.ConsecutiveFailures > s.loopBreakerThreshold {
		s.mu.Unlock()
		s.logger.Session().Error("Loop breaker exceeded, refusing refresh", "consecutiveFailures", s.state.ConsecutiveFailures)
		if err := s.store.Clear(); err != nil {
			s.logger.Session().Error("Failed to clear credential after loop break", "error", err.Error())
		}
		marker.SetError(errLoopBreakerTripped)
		return session.OutcomeInvalid, ""
	}

	if !security.IsStructurallyValid(credential) {
		s.mu.Unlock()
		s.logger.Session().Warn("Credential failed structural validation")
		marker.SetSuccess(false)
		return session.OutcomeInvalid, ""
	}

	claims, err := security.ReadClaims(credential)
	if err != nil {
		s.mu.Unlock()
		marker.SetError(err)
		return session.OutcomeInvalid, ""
	}

	if !claims.IsExpired(now.Unix()) {
		s.mu.Unlock()
		return session.OutcomeAlreadyFresh, credential
	}

	if s.state.InFlight {
		s.mu.Unlock()
		s.logger.Session().Debug("Refresh already in flight, throttling caller")
		return session.OutcomeThrottled, ""
	}

	if now.Unix()-s.state.LastAttemptEpochSeconds < int64(s.throttle.Seconds()) {
		s.mu.Unlock()
		s.logger.Session().Warn("Refresh attempted within throttle window", "lastAttempt", s.state.LastAttemptEpochSeconds)
		return session.OutcomeThrottled, ""
	}

	if s.state.AttemptCount >= s.maxAttempts {
		s.mu.Unlock()
		s.logger.Session().Error("Refresh attempt budget exhausted", "attempts", s.state.AttemptCount)
		return session.OutcomeExhausted, ""
	}

	s.state.InFlight = true
	s.state.AttemptCount++
	s.state.LastAttemptEpochSeconds = now.Unix()
	s.mu.Unlock()

	// InFlight must clear on every exit path or future refreshes deadlock.
	defer func() {
		s.mu.Lock()
		s.state.InFlight = false
		s.mu.Unlock()
	}()

	newToken, err := s.transport.PostRefresh(ctx, credential)
	if err != nil {
		s.logger.Session().Error("Refresh call failed, dropping credential", "error", err.Error())
		if clearErr := s.store.Clear(); clearErr != nil {
			s.logger.Session().Error("Failed to clear credential after refresh failure", "error", clearErr.Error())
		}
		marker.SetError(err)
		return session.OutcomeInvalid, ""
	}

	if err := s.store.Set(newToken); err != nil {
		s.logger.Session().Error("Failed to persist refreshed credential", "error", err.Error())
		if clearErr := s.store.Clear(); clearErr != nil {
			s.logger.Session().Error("Failed to clear credential after persist failure", "error", clearErr.Error())
		}
		marker.SetError(err)
		return session.OutcomeInvalid, ""
	}

	s.mu.Lock()
	s.state.AttemptCount = 0
	s.state.LastAttemptEpochSeconds = 0
	s.state.ConsecutiveFailures = 0
	s.mu.Unlock()

	s.logger.LogSessionOperation("refresh", claims.Subject, true, nil)
	return session.OutcomeRefreshStarted, newToken
}

// RecordCallFailure increments the consecutive-failure counter. Called by
// the gateway on transport failures and 401 responses.
func (s *RefreshService) RecordCallFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ConsecutiveFailures++
}

// RecordCallSuccess resets the consecutive-failure counter.
func (s *RefreshService) RecordCallSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ConsecutiveFailures = 0
}

// TrippedLoopBreaker reports whether consecutive failures have exceeded the
// termination threshold.
func (s *RefreshService) TrippedLoopBreaker() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ConsecutiveFailures > s.loopBreakerThreshold
}

// RefreshAttemptedWithin reports whether a refresh attempt started inside
// the given window before now.
func (s *RefreshService) RefreshAttemptedWithin(window time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.LastAttemptEpochSeconds == 0 {
		return false
	}
	return now.Unix()-s.state.LastAttemptEpochSeconds < int64(window.Seconds())
}

// Snapshot returns a copy of the current refresh state for status reporting.
func (s *RefreshService) Snapshot() session.RefreshState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
