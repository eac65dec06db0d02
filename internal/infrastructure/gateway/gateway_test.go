package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petpeevephobia/solvia/internal/domain/entities/session"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/logging"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/performance"
)

func newTestLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	config := logging.DefaultLoggerConfig()
	config.OutputToFile = false
	config.OutputToConsole = false
	config.DefaultLevel = slog.LevelError
	logger, err := logging.NewChanneledLogger(config)
	require.NoError(t, err)
	return logger
}

func forgeToken(t *testing.T, subject string, expiry int64) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": expiry,
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

type stubCreds struct {
	token string
	ok    bool
}

func (s *stubCreds) Get() (string, bool) { return s.token, s.ok }

type stubRefresher struct {
	tripped        bool
	withinThrottle bool
	outcome        session.RefreshOutcome
	newToken       string

	ensureCalls int32
	failures    int32
	successes   int32
}

func (s *stubRefresher) EnsureFreshToken(ctx context.Context, credential string, now time.Time) (session.RefreshOutcome, string) {
	atomic.AddInt32(&s.ensureCalls, 1)
	return s.outcome, s.newToken
}

func (s *stubRefresher) RecordCallFailure()       { atomic.AddInt32(&s.failures, 1) }
func (s *stubRefresher) RecordCallSuccess()       { atomic.AddInt32(&s.successes, 1) }
func (s *stubRefresher) TrippedLoopBreaker() bool { return s.tripped }
func (s *stubRefresher) RefreshAttemptedWithin(window time.Duration, now time.Time) bool {
	return s.withinThrottle
}

type stubTerminator struct {
	reasons []string
}

func (s *stubTerminator) Terminate(reason string) { s.reasons = append(s.reasons, reason) }

func newTestGateway(t *testing.T, backendURL, token string, refresher *stubRefresher, terminator *stubTerminator) *Gateway {
	t.Helper()
	logger := newTestLogger(t)
	transport := NewBackendTransport(backendURL, 5*time.Second, logger)
	creds := &stubCreds{token: token, ok: token != ""}
	return NewGateway(transport, creds, refresher, terminator, 5*time.Second, logger, performance.NewTracker(nil))
}

func TestGatewayInjectsBearerCredential(t *testing.T) {
	token := forgeToken(t, "user-1", time.Now().Add(time.Hour).Unix())

	var hits int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer backend.Close()

	refresher := &stubRefresher{}
	terminator := &stubTerminator{}
	gw := newTestGateway(t, backend.URL, token, refresher, terminator)

	result, err := gw.Get(context.Background(), "/auth/gsc/metrics")
	require.NoError(t, err)
	assert.True(t, result.IsSuccess())
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&refresher.successes))
	assert.Empty(t, terminator.reasons)
}

func TestGatewayTerminatesWithoutCredential(t *testing.T) {
	var hits int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer backend.Close()

	terminator := &stubTerminator{}
	gw := newTestGateway(t, backend.URL, "", &stubRefresher{}, terminator)

	_, err := gw.Get(context.Background(), "/auth/gsc/metrics")
	assert.ErrorIs(t, err, ErrSessionTerminated)
	assert.Equal(t, []string{"malformed credential"}, terminator.reasons)
	assert.Zero(t, atomic.LoadInt32(&hits), "no request may go out without a credential")
}

func TestGatewayTerminatesOnMalformedCredential(t *testing.T) {
	var hits int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer backend.Close()

	terminator := &stubTerminator{}
	gw := newTestGateway(t, backend.URL, "not.a.credential", &stubRefresher{}, terminator)

	_, err := gw.Get(context.Background(), "/auth/gsc/metrics")
	assert.ErrorIs(t, err, ErrSessionTerminated)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestGatewayTrippedLoopBreakerBlocksBeforeNetwork(t *testing.T) {
	token := forgeToken(t, "user-1", time.Now().Add(time.Hour).Unix())

	var hits int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer backend.Close()

	terminator := &stubTerminator{}
	gw := newTestGateway(t, backend.URL, token, &stubRefresher{tripped: true}, terminator)

	_, err := gw.Get(context.Background(), "/auth/gsc/metrics")
	assert.ErrorIs(t, err, ErrSessionTerminated)
	assert.Equal(t, []string{"loop breaker tripped"}, terminator.reasons)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestGatewayRetriesExactlyOnceAfter401(t *testing.T) {
	oldToken := forgeToken(t, "user-1", time.Now().Add(-time.Hour).Unix())
	newToken := forgeToken(t, "user-1", time.Now().Add(time.Hour).Unix())

	var hits int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1:
			assert.Equal(t, "Bearer "+oldToken, r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusUnauthorized)
		case 2:
			assert.Equal(t, "Bearer "+newToken, r.Header.Get("Authorization"))
			w.Write([]byte(`{"ok":true}`))
		default:
			t.Error("gateway issued more than one retry")
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer backend.Close()

	refresher := &stubRefresher{outcome: session.OutcomeRefreshStarted, newToken: newToken}
	terminator := &stubTerminator{}
	gw := newTestGateway(t, backend.URL, oldToken, refresher, terminator)

	result, err := gw.Get(context.Background(), "/auth/gsc/metrics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&refresher.ensureCalls))
	assert.Empty(t, terminator.reasons)
}

func TestGatewayReturnsRetriedResponseVerbatim(t *testing.T) {
	oldToken := forgeToken(t, "user-1", time.Now().Add(-time.Hour).Unix())
	newToken := forgeToken(t, "user-1", time.Now().Add(time.Hour).Unix())

	var hits int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		// Even a failed retry is handed back to the caller as-is.
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer backend.Close()

	refresher := &stubRefresher{outcome: session.OutcomeRefreshStarted, newToken: newToken}
	gw := newTestGateway(t, backend.URL, oldToken, refresher, &stubTerminator{})

	result, err := gw.Get(context.Background(), "/auth/gsc/metrics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, result.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestGatewayTerminatesWhenRefreshFailsAfter401(t *testing.T) {
	token := forgeToken(t, "user-1", time.Now().Add(-time.Hour).Unix())

	var hits int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer backend.Close()

	refresher := &stubRefresher{outcome: session.OutcomeExhausted}
	terminator := &stubTerminator{}
	gw := newTestGateway(t, backend.URL, token, refresher, terminator)

	_, err := gw.Get(context.Background(), "/auth/gsc/metrics")
	assert.ErrorIs(t, err, ErrSessionTerminated)
	assert.Equal(t, []string{"refresh failed after 401"}, terminator.reasons)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "no retry without a fresh credential")
}

func TestGatewayTerminatesOn401WithinThrottleWindow(t *testing.T) {
	token := forgeToken(t, "user-1", time.Now().Add(time.Hour).Unix())

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer backend.Close()

	refresher := &stubRefresher{withinThrottle: true, outcome: session.OutcomeRefreshStarted, newToken: token}
	terminator := &stubTerminator{}
	gw := newTestGateway(t, backend.URL, token, refresher, terminator)

	_, err := gw.Get(context.Background(), "/auth/gsc/metrics")
	assert.ErrorIs(t, err, ErrSessionTerminated)
	assert.Equal(t, []string{"refresh throttled after 401"}, terminator.reasons)
	assert.Zero(t, atomic.LoadInt32(&refresher.ensureCalls), "throttled 401 must not reach the coordinator")
}

func TestGatewayPassesNon401ErrorsThrough(t *testing.T) {
	token := forgeToken(t, "user-1", time.Now().Add(time.Hour).Unix())

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer backend.Close()

	refresher := &stubRefresher{}
	gw := newTestGateway(t, backend.URL, token, refresher, &stubTerminator{})

	result, err := gw.Get(context.Background(), "/auth/gsc/metrics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, result.StatusCode)
	assert.Zero(t, atomic.LoadInt32(&refresher.successes))
	assert.Zero(t, atomic.LoadInt32(&refresher.ensureCalls))
}
