package services

import (
	"context"
	"sync"
	"time"

	"github.com/petpeevephobia/solvia/internal/domain/entities/session"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/logging"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/performance"
	"github.com/petpeevephobia/solvia/internal/infrastructure/security"
)

// SessionEvents is the identity-display and termination side effect surface.
// The progress broadcaster implements it; the guard never touches transport
// or sockets directly.
type SessionEvents interface {
	BroadcastIdentity(identity session.Identity)
	BroadcastSessionTerminated(reason string)
}

// SessionService is the top-level session policy. It runs on every dashboard
// entry and on every gateway failure path: validate the credential, refresh
// or terminate, and keep the session validity state machine coherent.
type SessionService struct {
	mu          sync.Mutex
	state       session.State
	redirecting bool
	identity    *session.Identity

	store     CredentialStore
	refresher *RefreshService
	events    SessionEvents

	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewSessionService creates the session guard in the unauthenticated state.
func NewSessionService(
	store CredentialStore,
	refresher *RefreshService,
	events SessionEvents,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *SessionService {
	return &SessionService{
		state:       session.StateUnauthenticated,
		store:       store,
		refresher:   refresher,
		events:      events,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// transition moves the state machine, logging and refusing illegal steps.
func (s *SessionService) transition(next session.State) bool {
	if !s.state.CanTransition(next) {
		s.logger.Session().Error("Illegal session state transition refused",
			"from", s.state.String(), "to", next.String())
		return false
	}
	s.state = next
	return true
}

// CheckAuth validates the stored credential and reports whether application
// calls are permitted. A valid but expired credential triggers at most one
// refresh through the coordinator; every failure path terminates the session.
func (s *SessionService) CheckAuth(ctx context.Context, now time.Time) bool {
	marker := s.perfTracker.StartOperation("session:check_auth")
	defer s.perfTracker.CompleteOperation(marker)

	s.mu.Lock()
	if s.state == session.StateAuthenticated || s.state == session.StateRefreshing {
		// Re-entry while already validated; re-run validation from the top.
		s.state = session.StateUnauthenticated
	}
	if !s.transition(session.StateValidating) {
		s.mu.Unlock()
		marker.SetSuccess(false)
		return false
	}
	s.mu.Unlock()

	credential, ok := s.store.Get()
	if !ok || !security.IsStructurallyValid(credential) {
		s.logger.Session().Warn("No usable credential at page entry")
		marker.SetSuccess(false)
		s.failValidation("malformed credential")
		return false
	}

	claims, err := security.ReadClaims(credential)
	if err != nil {
		marker.SetError(err)
		s.failValidation("unreadable credential")
		return false
	}

	if claims.IsExpired(now.Unix()) {
		s.mu.Lock()
		if !s.transition(session.StateRefreshing) {
			s.mu.Unlock()
			marker.SetSuccess(false)
			return false
		}
		s.mu.Unlock()

		outcome, newToken := s.refresher.EnsureFreshToken(ctx, credential, now)
		switch outcome {
		case session.OutcomeAlreadyFresh, session.OutcomeRefreshStarted:
			if outcome == session.OutcomeRefreshStarted {
				if refreshed, readErr := security.ReadClaims(newToken); readErr == nil {
					claims = refreshed
				}
			}
		default:
			s.logger.Session().Warn("Refresh during page entry failed", "outcome", outcome.String())
			marker.SetSuccess(false)
			s.Terminate("refresh " + outcome.String())
			return false
		}
	}

	identity := session.NewIdentity(claims)

	s.mu.Lock()
	if !s.transition(session.StateAuthenticated) {
		s.mu.Unlock()
		marker.SetSuccess(false)
		return false
	}
	s.identity = &identity
	s.mu.Unlock()

	s.events.BroadcastIdentity(identity)
	s.logger.LogSessionOperation("check_auth", claims.Subject, true, nil)
	return true
}

// failValidation clears the credential and terminates from a validation
// failure without double-broadcasting if termination already ran.
func (s *SessionService) failValidation(reason string) {
	s.mu.Lock()
	s.transition(session.StateUnauthenticated)
	s.mu.Unlock()
	s.Terminate(reason)
}

// Terminate tears the session down: clear the credential, reset state, and
// broadcast the termination exactly once. Idempotent; concurrent callers
// (two gateway calls failing at once) produce a single navigation event.
func (s *SessionService) Terminate(reason string) {
	s.mu.Lock()
	if s.redirecting {
		s.mu.Unlock()
		return
	}
	s.redirecting = true
	s.state = session.StateUnauthenticated
	s.identity = nil
	s.mu.Unlock()

	marker := s.perfTracker.StartOperation("session:terminate")
	defer s.perfTracker.CompleteOperation(marker)
	marker.AddMetadata("reason", reason)

	if err := s.store.Clear(); err != nil {
		s.logger.Session().Error("Failed to clear credential during termination", "error", err.Error())
		marker.SetError(err)
	}

	s.logger.Session().Warn("Session terminated", "reason", reason)
	s.events.BroadcastSessionTerminated(reason)
}

// Login stores a freshly issued credential and validates it. Clears the
// redirecting latch so a new session can start after a termination.
func (s *SessionService) Login(ctx context.Context, token string, now time.Time) bool {
	if !security.IsStructurallyValid(token) {
		s.logger.Session().Warn("Login rejected, credential malformed", "token", logging.SanitizeToken(token))
		return false
	}
	if err := s.store.Set(token); err != nil {
		s.logger.Session().Error("Failed to persist login credential", "error", err.Error())
		return false
	}

	s.mu.Lock()
	s.redirecting = false
	s.state = session.StateUnauthenticated
	s.mu.Unlock()

	return s.CheckAuth(ctx, now)
}

// State returns the current session validity state.
func (s *SessionService) State() session.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the current identity projection, nil when unauthenticated.
func (s *SessionService) Identity() *session.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	identity := *s.identity
	return &identity
}

// Redirecting reports whether a termination navigation is pending. HTTP
// handlers use it to answer dashboard requests with a login redirect.
func (s *SessionService) Redirecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redirecting
}
