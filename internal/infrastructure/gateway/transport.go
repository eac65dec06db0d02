// Package gateway wraps all outbound calls to the Solvia backend with
// credential injection, 401 interception, and single-retry semantics.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/logging"
)

// Result carries a backend response back to the caller. Non-401 HTTP errors
// are returned as a Result, not an error; the gateway does not interpret
// business-level failures.
type Result struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// IsSuccess reports whether the response status is in the 2xx range.
func (r *Result) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the response body into v.
func (r *Result) Decode(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// BackendTransport performs raw HTTP calls against the backend origin.
// It carries no session policy; refresh serialization and retry decisions
// live in Gateway and the services that own RefreshState.
type BackendTransport struct {
	baseURL string
	client  *http.Client
	logger  *logging.ChanneledLogger
}

// NewBackendTransport creates a transport for the given backend origin.
// A zero timeout disables the client-side request deadline; callers bound
// requests through context instead.
func NewBackendTransport(baseURL string, timeout time.Duration, logger *logging.ChanneledLogger) *BackendTransport {
	return &BackendTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Do issues a single HTTP request with the given bearer token. Caller-supplied
// headers are applied after the authorization header, but may not override it.
func (t *BackendTransport) Do(ctx context.Context, method, path, token string, body any, headers map[string]string) (*Result, error) {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		if strings.EqualFold(key, "Authorization") {
			continue
		}
		req.Header.Set(key, value)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Body:       responseBody,
		Header:     resp.Header,
	}, nil
}

// refreshResponse mirrors the backend's token issuance payload.
type refreshResponse struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	ExpiresIn   float64 `json:"expires_in"`
}

// PostRefresh exchanges the old credential for a new one. Any non-2xx
// status or unreadable payload is a refresh failure.
func (t *BackendTransport) PostRefresh(ctx context.Context, oldToken string) (string, error) {
	result, err := t.Do(ctx, http.MethodPost, "/auth/refresh-token", oldToken, nil, nil)
	if err != nil {
		return "", err
	}
	if !result.IsSuccess() {
		return "", fmt.Errorf("refresh rejected with status %d", result.StatusCode)
	}

	var payload refreshResponse
	if err := result.Decode(&payload); err != nil {
		return "", fmt.Errorf("unreadable refresh response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("refresh response missing access token")
	}

	return payload.AccessToken, nil
}

// Probe checks backend reachability without a credential.
func (t *BackendTransport) Probe(ctx context.Context) error {
	result, err := t.Do(ctx, http.MethodGet, "/health", "", nil, nil)
	if err != nil {
		return err
	}
	if !result.IsSuccess() {
		return fmt.Errorf("backend unhealthy, status %d", result.StatusCode)
	}
	return nil
}
