package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/petpeevephobia/solvia/internal/domain/entities/dashboard"
)

// Typed wrappers over the backend's dashboard endpoints. Each wrapper goes
// through Gateway.Do, so credential injection and the 401 retry contract
// apply uniformly. Business errors (non-401 failures) surface as
// *StatusError so callers can render their own fallback.

// StatusError is a non-401 HTTP failure passed through to the caller.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// cacheEnvelope mirrors the backend's dashboard cache response.
type cacheEnvelope struct {
	Success  bool                `json:"success"`
	HasCache bool                `json:"has_cache"`
	Data     *dashboard.Snapshot `json:"data"`
	Message  string              `json:"message"`
}

// FetchDashboardCache retrieves today's cached snapshot. The bool reports
// whether a cache entry exists; false with a nil error means a clean miss.
func (g *Gateway) FetchDashboardCache(ctx context.Context) (*dashboard.Snapshot, bool, error) {
	result, err := g.Get(ctx, "/auth/dashboard/cache")
	if err != nil {
		return nil, false, err
	}
	if !result.IsSuccess() {
		return nil, false, &StatusError{StatusCode: result.StatusCode, Body: result.Body}
	}

	var envelope cacheEnvelope
	if err := result.Decode(&envelope); err != nil {
		return nil, false, fmt.Errorf("unreadable cache response: %w", err)
	}
	if !envelope.HasCache || envelope.Data == nil {
		return nil, false, nil
	}
	return envelope.Data, true, nil
}

// StoreDashboardCache persists a snapshot for today. Callers treat failures
// as non-fatal; a missed cache write must never fail the page.
func (g *Gateway) StoreDashboardCache(ctx context.Context, snapshot *dashboard.Snapshot) error {
	body := map[string]any{
		"dashboard_data": map[string]any{
			"metrics":         snapshot.Metrics,
			"content_summary": snapshot.ContentSummary,
			"captured_at":     snapshot.CapturedAt,
		},
	}
	if snapshot.AIInsights != nil {
		body["ai_insights"] = snapshot.AIInsights
	}
	if snapshot.Keywords != nil {
		body["keywords"] = snapshot.Keywords
	}

	result, err := g.Post(ctx, "/auth/dashboard/cache", body)
	if err != nil {
		return err
	}
	if !result.IsSuccess() {
		return &StatusError{StatusCode: result.StatusCode, Body: result.Body}
	}
	return nil
}

// FetchMetrics retrieves summary and time-series metrics for the selected site.
func (g *Gateway) FetchMetrics(ctx context.Context) (*dashboard.MetricsPayload, error) {
	result, err := g.Get(ctx, "/auth/gsc/metrics")
	if err != nil {
		return nil, err
	}
	if !result.IsSuccess() {
		return nil, &StatusError{StatusCode: result.StatusCode, Body: result.Body}
	}

	var payload dashboard.MetricsPayload
	if err := result.Decode(&payload); err != nil {
		return nil, fmt.Errorf("unreadable metrics response: %w", err)
	}
	return &payload, nil
}

// FetchKeywords retrieves the keyword list for the selected site. A site
// with no keyword data yields an empty slice, not an error.
func (g *Gateway) FetchKeywords(ctx context.Context) ([]dashboard.Keyword, error) {
	result, err := g.Get(ctx, "/auth/gsc/keywords")
	if err != nil {
		return nil, err
	}
	if !result.IsSuccess() {
		return nil, &StatusError{StatusCode: result.StatusCode, Body: result.Body}
	}

	var payload struct {
		Keywords []dashboard.Keyword `json:"keywords"`
	}
	if err := result.Decode(&payload); err != nil {
		return nil, fmt.Errorf("unreadable keywords response: %w", err)
	}
	return payload.Keywords, nil
}

// FetchAIInsights retrieves cached AI insights. The backend answers 404 when
// nothing has been generated yet; that surfaces as (nil, false, nil).
func (g *Gateway) FetchAIInsights(ctx context.Context) (dashboard.Insights, bool, error) {
	result, err := g.Get(ctx, "/auth/benchmark/insights")
	if err != nil {
		return nil, false, err
	}
	if result.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if !result.IsSuccess() {
		return nil, false, &StatusError{StatusCode: result.StatusCode, Body: result.Body}
	}

	var insights dashboard.Insights
	if err := result.Decode(&insights); err != nil {
		return nil, false, fmt.Errorf("unreadable insights response: %w", err)
	}
	return insights, true, nil
}

// GenerateAIInsights explicitly asks the backend to produce fresh insights.
func (g *Gateway) GenerateAIInsights(ctx context.Context) (dashboard.Insights, error) {
	headers := map[string]string{"X-Explicit-AI-Request": "true"}
	result, err := g.Do(ctx, http.MethodGet, "/auth/benchmark/insights", nil, headers)
	if err != nil {
		return nil, err
	}
	if !result.IsSuccess() {
		return nil, &StatusError{StatusCode: result.StatusCode, Body: result.Body}
	}

	var insights dashboard.Insights
	if err := result.Decode(&insights); err != nil {
		return nil, fmt.Errorf("unreadable insights response: %w", err)
	}
	return insights, nil
}

// FetchContentSummary retrieves stored site content metadata.
func (g *Gateway) FetchContentSummary(ctx context.Context) (map[string]any, error) {
	result, err := g.Get(ctx, "/auth/website/content")
	if err != nil {
		return nil, err
	}
	if !result.IsSuccess() {
		return nil, &StatusError{StatusCode: result.StatusCode, Body: result.Body}
	}

	var payload struct {
		Success bool           `json:"success"`
		Content map[string]any `json:"content"`
	}
	if err := result.Decode(&payload); err != nil {
		return nil, fmt.Errorf("unreadable content response: %w", err)
	}
	return payload.Content, nil
}
