package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/petpeevephobia/solvia/internal/domain/entities/session"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/logging"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/performance"
	"github.com/petpeevephobia/solvia/internal/infrastructure/security"
)

// ErrSessionTerminated signals that the session was torn down during a call.
// Callers must stop issuing requests and let the termination path run.
var ErrSessionTerminated = errors.New("session terminated")

// CredentialReader provides read access to the stored bearer credential.
type CredentialReader interface {
	Get() (string, bool)
}

// RefreshPolicy is the slice of refresh coordination the gateway depends on.
type RefreshPolicy interface {
	EnsureFreshToken(ctx context.Context, credential string, now time.Time) (session.RefreshOutcome, string)
	RecordCallFailure()
	RecordCallSuccess()
	TrippedLoopBreaker() bool
	RefreshAttemptedWithin(window time.Duration, now time.Time) bool
}

// Terminator tears the session down. Implementations must be idempotent.
type Terminator interface {
	Terminate(reason string)
}

// Gateway injects the bearer credential into backend calls, intercepts 401
// responses with a single refresh-then-retry, and keeps the consecutive
// failure accounting that feeds the loop-breaker.
type Gateway struct {
	transport  *BackendTransport
	creds      CredentialReader
	refresher  RefreshPolicy
	terminator Terminator
	throttle   time.Duration
	logger     *logging.ChanneledLogger
	perf       *performance.Tracker
}

// NewGateway wires an authenticated gateway over the raw transport.
func NewGateway(
	transport *BackendTransport,
	creds CredentialReader,
	refresher RefreshPolicy,
	terminator Terminator,
	throttle time.Duration,
	logger *logging.ChanneledLogger,
	perf *performance.Tracker,
) *Gateway {
	return &Gateway{
		transport:  transport,
		creds:      creds,
		refresher:  refresher,
		terminator: terminator,
		throttle:   throttle,
		logger:     logger,
		perf:       perf,
	}
}

// Do issues an authenticated request. The contract:
//
//   - Missing or malformed credential terminates the session before any
//     network traffic.
//   - A tripped loop-breaker terminates immediately.
//   - Transport failures increment the failure counter and propagate to
//     the caller unless the loop-breaker trips.
//   - A 401 triggers at most one refresh-then-retry; the retried response
//     is returned verbatim, success or not.
//   - Every other HTTP status is returned to the caller unmodified.
func (g *Gateway) Do(ctx context.Context, method, path string, body any, headers map[string]string) (*Result, error) {
	requestID := security.GenerateULID()
	marker := g.perf.StartOperation("gateway:call")
	marker.AddMetadata("method", method)
	marker.AddMetadata("path", path)
	marker.AddMetadata("requestId", requestID)
	defer g.perf.CompleteOperation(marker)

	log := g.logger.WithRequest(logging.ChannelGateway, requestID)

	token, ok := g.creds.Get()
	if !ok || !security.IsStructurallyValid(token) {
		log.Warn("Credential missing or malformed, terminating session", "method", method, "path", path)
		marker.SetError(ErrSessionTerminated)
		g.terminator.Terminate("malformed credential")
		return nil, ErrSessionTerminated
	}

	if g.refresher.TrippedLoopBreaker() {
		log.Error("Loop breaker tripped, terminating session without issuing request", "path", path)
		marker.SetError(ErrSessionTerminated)
		g.terminator.Terminate("loop breaker tripped")
		return nil, ErrSessionTerminated
	}

	result, err := g.transport.Do(ctx, method, path, token, body, headers)
	if err != nil {
		g.refresher.RecordCallFailure()
		if g.refresher.TrippedLoopBreaker() {
			log.Error("Transport failure tripped loop breaker", "path", path, "error", err.Error())
			marker.SetError(ErrSessionTerminated)
			g.terminator.Terminate("loop breaker tripped")
			return nil, ErrSessionTerminated
		}
		log.Warn("Transport failure", "path", path, "error", err.Error())
		marker.SetError(err)
		return nil, err
	}

	if result.StatusCode != http.StatusUnauthorized {
		if result.IsSuccess() {
			g.refresher.RecordCallSuccess()
		}
		marker.AddMetadata("status", result.StatusCode)
		marker.SetSuccess(result.IsSuccess())
		return result, nil
	}

	// 401: the credential is stale or revoked.
	g.refresher.RecordCallFailure()
	if g.refresher.TrippedLoopBreaker() {
		log.Error("Repeated authorization failures tripped loop breaker", "path", path)
		marker.SetError(ErrSessionTerminated)
		g.terminator.Terminate("loop breaker tripped")
		return nil, ErrSessionTerminated
	}

	now := time.Now()
	if g.refresher.RefreshAttemptedWithin(g.throttle, now) {
		log.Warn("401 within refresh throttle window, treating as unrecoverable", "path", path)
		marker.SetError(ErrSessionTerminated)
		g.terminator.Terminate("refresh throttled after 401")
		return nil, ErrSessionTerminated
	}

	outcome, newToken := g.refresher.EnsureFreshToken(ctx, token, now)
	if outcome != session.OutcomeRefreshStarted || newToken == "" {
		log.Warn("Refresh did not yield a new credential", "path", path, "outcome", outcome.String())
		marker.SetError(ErrSessionTerminated)
		g.terminator.Terminate("refresh failed after 401")
		return nil, ErrSessionTerminated
	}

	log.Info("Retrying request with refreshed credential", "method", method, "path", path)
	retryMarker := g.perf.StartOperation("gateway:retry")
	retryMarker.AddMetadata("path", path)
	defer g.perf.CompleteOperation(retryMarker)

	// Exactly one retry; this result is returned verbatim.
	retried, err := g.transport.Do(ctx, method, path, newToken, body, headers)
	if err != nil {
		g.refresher.RecordCallFailure()
		retryMarker.SetError(err)
		if g.refresher.TrippedLoopBreaker() {
			g.terminator.Terminate("loop breaker tripped")
			return nil, ErrSessionTerminated
		}
		return nil, err
	}

	if retried.IsSuccess() {
		g.refresher.RecordCallSuccess()
	}
	retryMarker.AddMetadata("status", retried.StatusCode)
	retryMarker.SetSuccess(retried.IsSuccess())
	return retried, nil
}

// Get issues an authenticated GET request.
func (g *Gateway) Get(ctx context.Context, path string) (*Result, error) {
	return g.Do(ctx, http.MethodGet, path, nil, nil)
}

// Post issues an authenticated POST request with a JSON body.
func (g *Gateway) Post(ctx context.Context, path string, body any) (*Result, error) {
	return g.Do(ctx, http.MethodPost, path, body, nil)
}
