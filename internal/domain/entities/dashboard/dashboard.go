// Package dashboard provides domain entities for the staged dashboard load:
// the fixed set of metric groups with their loading states, and the payload
// shapes exchanged with the backend's metrics and cache endpoints.
package dashboard

import (
	"encoding/json"
	"time"
)

// GroupID names one stage of the fresh-data loading sequence.
type GroupID string

const (
	GroupOrganicImpressions GroupID = "organic_impressions"
	GroupVisibility         GroupID = "visibility"
	GroupAI                 GroupID = "ai"
)

// GroupOrder is the fixed display order of metric groups. The first group
// starts loading when a fresh-load cycle begins.
var GroupOrder = []GroupID{GroupOrganicImpressions, GroupVisibility, GroupAI}

// LoadState tracks one metric group through a load cycle.
type LoadState int

const (
	LoadPending LoadState = iota
	LoadLoading
	LoadDone
)

// String returns the load state name used in progress events.
func (s LoadState) String() string {
	switch s {
	case LoadPending:
		return "pending"
	case LoadLoading:
		return "loading"
	case LoadDone:
		return "done"
	default:
		return "unknown"
	}
}

// MarshalJSON emits the state name so progress events carry "pending",
// "loading", "done" rather than ordinals.
func (s LoadState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Group pairs a metric group with its label and current load state.
type Group struct {
	ID    GroupID   `json:"id"`
	Label string    `json:"label"`
	State LoadState `json:"state"`
}

// GroupSet is the per-load-cycle collection of metric groups.
type GroupSet struct {
	groups map[GroupID]*Group
}

// NewGroupSet creates a fresh group set: the first group in GroupOrder starts
// loading, all others pending.
func NewGroupSet() *GroupSet {
	labels := map[GroupID]string{
		GroupOrganicImpressions: "Organic Impressions",
		GroupVisibility:         "Visibility",
		GroupAI:                 "AI Insights",
	}

	set := &GroupSet{groups: make(map[GroupID]*Group, len(GroupOrder))}
	for i, id := range GroupOrder {
		state := LoadPending
		if i == 0 {
			state = LoadLoading
		}
		set.groups[id] = &Group{ID: id, Label: labels[id], State: state}
	}
	return set
}

// Mark sets the load state for a group. Unknown ids are ignored.
func (gs *GroupSet) Mark(id GroupID, state LoadState) {
	if g, ok := gs.groups[id]; ok {
		g.State = state
	}
}

// MarkAllDone forces every group to done so the progress UI can never hang
// on a failed stage.
func (gs *GroupSet) MarkAllDone() {
	for _, g := range gs.groups {
		g.State = LoadDone
	}
}

// Complete reports whether every group has reached done.
func (gs *GroupSet) Complete() bool {
	for _, g := range gs.groups {
		if g.State != LoadDone {
			return false
		}
	}
	return true
}

// State returns the current load state for a group.
func (gs *GroupSet) State(id GroupID) LoadState {
	if g, ok := gs.groups[id]; ok {
		return g.State
	}
	return LoadPending
}

// Groups returns the groups in display order for progress events.
func (gs *GroupSet) Groups() []Group {
	out := make([]Group, 0, len(GroupOrder))
	for _, id := range GroupOrder {
		if g, ok := gs.groups[id]; ok {
			out = append(out, *g)
		}
	}
	return out
}

// MetricsSummary carries the headline numbers from the metrics endpoint.
type MetricsSummary struct {
	Clicks      int     `json:"clicks"`
	Impressions int     `json:"impressions"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

// MetricsPayload is the visibility/impressions stage response.
type MetricsPayload struct {
	Summary     MetricsSummary         `json:"summary"`
	TimeSeries  map[string][]DataPoint `json:"time_series"`
	LastUpdated string                 `json:"last_updated"`
	WebsiteURL  string                 `json:"website_url,omitempty"`
	StartDate   string                 `json:"start_date,omitempty"`
	EndDate     string                 `json:"end_date,omitempty"`
}

// DataPoint is one time-series sample.
type DataPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Keyword is one entry of the keyword list. Sorting and rendering are
// presentation concerns; the orchestrator only carries the list.
type Keyword struct {
	Query       string  `json:"query"`
	Clicks      int     `json:"clicks"`
	Impressions int     `json:"impressions"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

// Insights is the AI-insights stage payload, opaque to the core.
type Insights map[string]any

// Snapshot is the aggregate dashboard payload: what a successful fresh load
// produces and what the backend cache stores per user per day.
type Snapshot struct {
	Metrics        *MetricsPayload `json:"metrics,omitempty"`
	Keywords       []Keyword       `json:"keywords,omitempty"`
	AIInsights     Insights        `json:"ai_insights,omitempty"`
	ContentSummary map[string]any  `json:"content_summary,omitempty"`
	CapturedAt     time.Time       `json:"captured_at"`
}

// Empty reports whether the snapshot carries no data at all.
func (s *Snapshot) Empty() bool {
	return s == nil || (s.Metrics == nil && len(s.Keywords) == 0 && len(s.AIInsights) == 0 && len(s.ContentSummary) == 0)
}
