package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClaimsIsExpired(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC).Unix()

	cases := []struct {
		name   string
		expiry int64
		want   bool
	}{
		{"expiry in the past", now - 1, true},
		{"expiry exactly now", now, false},
		{"expiry in the future", now + 3600, false},
		{"missing expiry", 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claims := Claims{Subject: "user-1", Expiry: tc.expiry}
			assert.Equal(t, tc.want, claims.IsExpired(now))
		})
	}
}

func TestClaimsDisplayName(t *testing.T) {
	assert.Equal(t, "pat@example.com", Claims{Subject: "u1", Email: "pat@example.com"}.DisplayName())
	assert.Equal(t, "u1", Claims{Subject: "u1"}.DisplayName())
	assert.Equal(t, "User", Claims{}.DisplayName())
}

func TestClaimsInitial(t *testing.T) {
	assert.Equal(t, "p", Claims{Email: "pat@example.com"}.Initial())
	assert.Equal(t, "U", Claims{}.Initial())
}

func TestStateTransitions(t *testing.T) {
	cases := []struct {
		from State
		to   State
		want bool
	}{
		{StateUnauthenticated, StateValidating, true},
		{StateUnauthenticated, StateAuthenticated, false},
		{StateUnauthenticated, StateRefreshing, false},
		{StateValidating, StateAuthenticated, true},
		{StateValidating, StateRefreshing, true},
		{StateValidating, StateUnauthenticated, true},
		{StateRefreshing, StateAuthenticated, true},
		{StateRefreshing, StateUnauthenticated, true},
		{StateRefreshing, StateValidating, false},
		{StateAuthenticated, StateValidating, true},
		{StateAuthenticated, StateUnauthenticated, true},
		{StateAuthenticated, StateRefreshing, false},
	}

	for _, tc := range cases {
		t.Run(tc.from.String()+"_to_"+tc.to.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.from.CanTransition(tc.to))
		})
	}
}

func TestRefreshOutcomeString(t *testing.T) {
	assert.Equal(t, "already_fresh", OutcomeAlreadyFresh.String())
	assert.Equal(t, "refresh_started", OutcomeRefreshStarted.String())
	assert.Equal(t, "throttled", OutcomeThrottled.String())
	assert.Equal(t, "exhausted", OutcomeExhausted.String())
	assert.Equal(t, "invalid", OutcomeInvalid.String())
}

func TestNewIdentity(t *testing.T) {
	claims := Claims{Subject: "user-9", Email: "sam@example.com", Expiry: 1893456000}

	identity := NewIdentity(claims)

	assert.Equal(t, "user-9", identity.Subject)
	assert.Equal(t, "sam@example.com", identity.Email)
	assert.Equal(t, "sam@example.com", identity.DisplayName)
	assert.Equal(t, "s", identity.Initial)
	assert.Equal(t, time.Unix(1893456000, 0).UTC(), identity.ExpiresAt)
}
