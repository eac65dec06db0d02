package dashboard

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGroupSetInitialStates(t *testing.T) {
	gs := NewGroupSet()

	assert.Equal(t, LoadLoading, gs.State(GroupOrganicImpressions))
	assert.Equal(t, LoadPending, gs.State(GroupVisibility))
	assert.Equal(t, LoadPending, gs.State(GroupAI))
	assert.False(t, gs.Complete())
}

func TestGroupSetMarkAndComplete(t *testing.T) {
	gs := NewGroupSet()

	gs.Mark(GroupOrganicImpressions, LoadDone)
	gs.Mark(GroupVisibility, LoadDone)
	assert.False(t, gs.Complete())

	gs.Mark(GroupAI, LoadDone)
	assert.True(t, gs.Complete())
}

func TestGroupSetMarkAllDone(t *testing.T) {
	gs := NewGroupSet()

	gs.MarkAllDone()

	assert.True(t, gs.Complete())
	for _, g := range gs.Groups() {
		assert.Equal(t, LoadDone, g.State)
	}
}

func TestGroupSetIgnoresUnknownID(t *testing.T) {
	gs := NewGroupSet()

	gs.Mark(GroupID("bounce_rate"), LoadDone)

	assert.Len(t, gs.Groups(), len(GroupOrder))
}

func TestGroupsDisplayOrder(t *testing.T) {
	groups := NewGroupSet().Groups()

	require.Len(t, groups, 3)
	assert.Equal(t, GroupOrganicImpressions, groups[0].ID)
	assert.Equal(t, GroupVisibility, groups[1].ID)
	assert.Equal(t, GroupAI, groups[2].ID)
}

func TestLoadStateMarshalsAsName(t *testing.T) {
	raw, err := json.Marshal(Group{ID: GroupAI, Label: "AI Insights", State: LoadLoading})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"ai","label":"AI Insights","state":"loading"}`, string(raw))
}

func TestSnapshotEmpty(t *testing.T) {
	assert.True(t, (&Snapshot{CapturedAt: time.Now()}).Empty())

	populated := &Snapshot{
		Metrics:    &MetricsPayload{Summary: MetricsSummary{Clicks: 10}},
		CapturedAt: time.Now(),
	}
	assert.False(t, populated.Empty())
}
