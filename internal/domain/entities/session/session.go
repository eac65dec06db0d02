// Package session provides domain entities for credential and session state
// management. It defines the claim set read from the bearer credential, the
// refresh bookkeeping record, and the session validity state machine.
package session

import "time"

// Claims represents the payload read from the bearer credential without
// signature verification. Trust decisions belong to the backend; the client
// only needs claim extraction for display and expiry estimation.
type Claims struct {
	Subject string `json:"sub"`
	Email   string `json:"email,omitempty"`
	Expiry  int64  `json:"exp"`
}

// IsExpired reports whether the claims' expiry lies strictly before now.
// An expiry equal to now is not expired. A missing expiry is treated as not
// expired; structural validation requires expiry to be present, so this
// branch is only reachable when the structural gate was skipped.
func (c Claims) IsExpired(nowEpochSeconds int64) bool {
	if c.Expiry == 0 {
		return false
	}
	return c.Expiry < nowEpochSeconds
}

// DisplayName returns the name shown by the identity display. Falls back to
// a placeholder when claims are blank at display time.
func (c Claims) DisplayName() string {
	if c.Email != "" {
		return c.Email
	}
	if c.Subject != "" {
		return c.Subject
	}
	return "User"
}

// Initial returns the single-character initial for the identity badge.
func (c Claims) Initial() string {
	name := c.DisplayName()
	for _, r := range name {
		return string(r)
	}
	return "U"
}

// RefreshOutcome is the result of asking the refresh coordinator for a fresh
// credential.
type RefreshOutcome int

const (
	// OutcomeAlreadyFresh means the current credential is valid and unexpired.
	OutcomeAlreadyFresh RefreshOutcome = iota
	// OutcomeRefreshStarted means exactly one refresh call ran and succeeded.
	OutcomeRefreshStarted
	// OutcomeThrottled means a refresh is in flight or too recent; the caller
	// must not start another.
	OutcomeThrottled
	// OutcomeExhausted means the attempt budget is spent; the session must end.
	OutcomeExhausted
	// OutcomeInvalid means the credential is unusable; the session must end.
	OutcomeInvalid
)

// String returns the outcome name for log lines.
func (o RefreshOutcome) String() string {
	switch o {
	case OutcomeAlreadyFresh:
		return "already_fresh"
	case OutcomeRefreshStarted:
		return "refresh_started"
	case OutcomeThrottled:
		return "throttled"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// RefreshState is the single process-wide refresh bookkeeping record.
// All mutation goes through the refresh coordinator and the gateway's
// failure accounting; nothing else may write these fields.
type RefreshState struct {
	InFlight                bool  `json:"inFlight"`
	AttemptCount            int   `json:"attemptCount"`
	LastAttemptEpochSeconds int64 `json:"lastAttemptEpochSeconds"`
	ConsecutiveFailures     int   `json:"consecutiveFailures"`
}

// State represents session validity. Application calls are only permitted
// from StateAuthenticated.
type State int

const (
	StateUnauthenticated State = iota
	StateValidating
	StateAuthenticated
	StateRefreshing
)

// String returns the state name for log lines.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateValidating:
		return "validating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// CanTransition reports whether moving from s to next is a legal step of the
// session validity machine. Keeping this in one place means illegal moves
// (starting a refresh while already refreshing, authenticating from nowhere)
// are rejected here instead of guarded ad hoc at call sites.
func (s State) CanTransition(next State) bool {
	switch s {
	case StateUnauthenticated:
		return next == StateValidating
	case StateValidating:
		return next == StateAuthenticated || next == StateRefreshing || next == StateUnauthenticated
	case StateRefreshing:
		return next == StateAuthenticated || next == StateUnauthenticated
	case StateAuthenticated:
		return next == StateValidating || next == StateUnauthenticated
	default:
		return false
	}
}

// Identity is the projection of claims handed to the identity display.
type Identity struct {
	Subject     string    `json:"subject"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"displayName"`
	Initial     string    `json:"initial"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// NewIdentity builds the display projection for a set of claims.
func NewIdentity(claims Claims) Identity {
	return Identity{
		Subject:     claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName(),
		Initial:     claims.Initial(),
		ExpiresAt:   time.Unix(claims.Expiry, 0).UTC(),
	}
}
