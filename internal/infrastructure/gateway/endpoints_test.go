package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petpeevephobia/solvia/internal/domain/entities/dashboard"
)

func newEndpointGateway(t *testing.T, backendURL string) *Gateway {
	t.Helper()
	token := forgeToken(t, "user-1", time.Now().Add(time.Hour).Unix())
	return newTestGateway(t, backendURL, token, &stubRefresher{}, &stubTerminator{})
}

func TestFetchDashboardCacheHit(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/dashboard/cache", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"success":   true,
			"has_cache": true,
			"data": map[string]any{
				"metrics": map[string]any{
					"summary": map[string]any{"clicks": 42, "impressions": 1000, "ctr": 0.042, "position": 8.3},
				},
				"captured_at": time.Now().UTC().Format(time.RFC3339),
			},
		})
	}))
	defer backend.Close()

	snapshot, hit, err := newEndpointGateway(t, backend.URL).FetchDashboardCache(context.Background())
	require.NoError(t, err)
	require.True(t, hit)
	require.NotNil(t, snapshot.Metrics)
	assert.Equal(t, 42, snapshot.Metrics.Summary.Clicks)
}

func TestFetchDashboardCacheCleanMiss(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success":   true,
			"has_cache": false,
			"message":   "No cached data for today",
		})
	}))
	defer backend.Close()

	snapshot, hit, err := newEndpointGateway(t, backend.URL).FetchDashboardCache(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, snapshot)
}

func TestStoreDashboardCacheBodyShape(t *testing.T) {
	var received map[string]any
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer backend.Close()

	snapshot := &dashboard.Snapshot{
		Metrics:    &dashboard.MetricsPayload{Summary: dashboard.MetricsSummary{Clicks: 7}},
		Keywords:   []dashboard.Keyword{{Query: "solvia seo", Clicks: 3}},
		AIInsights: dashboard.Insights{"headline": "traffic up"},
		CapturedAt: time.Now().UTC(),
	}

	err := newEndpointGateway(t, backend.URL).StoreDashboardCache(context.Background(), snapshot)
	require.NoError(t, err)

	require.Contains(t, received, "dashboard_data")
	assert.Contains(t, received, "ai_insights")
	assert.Contains(t, received, "keywords")
}

func TestFetchKeywords(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/gsc/keywords", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"keywords": []map[string]any{
				{"query": "seo dashboard", "clicks": 12, "impressions": 300, "ctr": 0.04, "position": 5.1},
			},
		})
	}))
	defer backend.Close()

	keywords, err := newEndpointGateway(t, backend.URL).FetchKeywords(context.Background())
	require.NoError(t, err)
	require.Len(t, keywords, 1)
	assert.Equal(t, "seo dashboard", keywords[0].Query)
}

func TestFetchAIInsightsAbsentIsNotAnError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer backend.Close()

	insights, cached, err := newEndpointGateway(t, backend.URL).FetchAIInsights(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Nil(t, insights)
}

func TestGenerateAIInsightsSendsExplicitHeader(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.Header.Get("X-Explicit-AI-Request"))
		json.NewEncoder(w).Encode(map[string]any{"headline": "generated"})
	}))
	defer backend.Close()

	insights, err := newEndpointGateway(t, backend.URL).GenerateAIInsights(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "generated", insights["headline"])
}

func TestEndpointsSurfaceStatusError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer backend.Close()

	_, err := newEndpointGateway(t, backend.URL).FetchMetrics(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
}

func TestPostRefreshParsesTokenResponse(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/refresh-token", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fresh-token",
			"token_type":   "bearer",
			"expires_in":   1800,
		})
	}))
	defer backend.Close()

	transport := NewBackendTransport(backend.URL, 5*time.Second, newTestLogger(t))
	token, err := transport.PostRefresh(context.Background(), "stale-token")
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
}

func TestPostRefreshRejectsEmptyToken(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "", "token_type": "bearer"})
	}))
	defer backend.Close()

	transport := NewBackendTransport(backend.URL, 5*time.Second, newTestLogger(t))
	_, err := transport.PostRefresh(context.Background(), "stale-token")
	assert.Error(t, err)
}
