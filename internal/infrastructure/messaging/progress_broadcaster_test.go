package messaging

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petpeevephobia/solvia/internal/domain/entities/dashboard"
	"github.com/petpeevephobia/solvia/internal/domain/entities/session"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/logging"
)

func newTestBroadcaster(t *testing.T, maxClients int) *ProgressBroadcaster {
	t.Helper()
	config := logging.DefaultLoggerConfig()
	config.OutputToFile = false
	config.OutputToConsole = false
	config.DefaultLevel = slog.LevelError
	logger, err := logging.NewChanneledLogger(config)
	require.NoError(t, err)

	b := NewProgressBroadcaster(time.Hour, 16, maxClients, logger)
	go b.Run()
	t.Cleanup(b.Shutdown)
	return b
}

func receiveEvent(t *testing.T, client *ProgressClient) Event {
	t.Helper()
	select {
	case raw, ok := <-client.Send:
		require.True(t, ok, "send channel closed unexpectedly")
		var event Event
		require.NoError(t, json.Unmarshal(raw, &event))
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func awaitClientCount(t *testing.T, b *ProgressBroadcaster, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return b.ClientCount() == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcasterFansOutToAllClients(t *testing.T) {
	b := newTestBroadcaster(t, 8)

	first := b.NewClient(nil)
	second := b.NewClient(nil)
	b.Register(first)
	b.Register(second)
	awaitClientCount(t, b, 2)

	b.ShowLoadingPopup()

	assert.Equal(t, EventLoadingShow, receiveEvent(t, first).Type)
	assert.Equal(t, EventLoadingShow, receiveEvent(t, second).Type)
}

func TestBroadcasterReplaysStateToLateClients(t *testing.T) {
	b := newTestBroadcaster(t, 8)

	b.BroadcastIdentity(session.Identity{Subject: "user-1", DisplayName: "pat@example.com", Initial: "p"})
	b.UpdateGroups(dashboard.NewGroupSet().Groups())

	// A dashboard attaching mid-load catches up immediately.
	late := b.NewClient(nil)
	b.Register(late)

	assert.Equal(t, EventIdentity, receiveEvent(t, late).Type)
	assert.Equal(t, EventMetricGroups, receiveEvent(t, late).Type)
}

func TestBroadcasterTerminationClearsReplayState(t *testing.T) {
	b := newTestBroadcaster(t, 8)

	b.BroadcastIdentity(session.Identity{Subject: "user-1"})
	b.BroadcastSessionTerminated("logout")

	late := b.NewClient(nil)
	b.Register(late)
	awaitClientCount(t, b, 1)

	// Nothing replays after termination. Drain until the live marker event
	// arrives; an identity or group event on the way means stale replay.
	b.HidePopups()
	for {
		event := receiveEvent(t, late)
		if event.Type == EventPopupsHide {
			break
		}
		require.NotEqual(t, EventIdentity, event.Type)
		require.NotEqual(t, EventMetricGroups, event.Type)
	}
}

func TestBroadcasterSessionTerminatedEvent(t *testing.T) {
	b := newTestBroadcaster(t, 8)

	client := b.NewClient(nil)
	b.Register(client)
	awaitClientCount(t, b, 1)

	b.BroadcastSessionTerminated("refresh exhausted")

	event := receiveEvent(t, client)
	require.Equal(t, EventSessionTerminated, event.Type)
	data, ok := event.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "refresh exhausted", data["reason"])
}

func TestBroadcasterEnforcesConnectionLimit(t *testing.T) {
	b := newTestBroadcaster(t, 1)

	first := b.NewClient(nil)
	b.Register(first)
	awaitClientCount(t, b, 1)

	rejected := b.NewClient(nil)
	b.Register(rejected)

	// The rejected client's channel closes without any delivery.
	select {
	case _, ok := <-rejected.Send:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("rejected client was never closed")
	}
	assert.Equal(t, 1, b.ClientCount())
}

func TestBroadcasterUnregisterClosesSend(t *testing.T) {
	b := newTestBroadcaster(t, 8)

	client := b.NewClient(nil)
	b.Register(client)
	awaitClientCount(t, b, 1)

	b.Unregister(client)
	awaitClientCount(t, b, 0)

	select {
	case _, ok := <-client.Send:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("unregistered client was never closed")
	}

	// Broadcasting to an empty set is safe.
	b.ShowLoadingPopup()
}

func TestGroupEventsCarryStateNames(t *testing.T) {
	b := newTestBroadcaster(t, 8)

	client := b.NewClient(nil)
	b.Register(client)
	awaitClientCount(t, b, 1)

	b.UpdateGroups(dashboard.NewGroupSet().Groups())

	event := receiveEvent(t, client)
	require.Equal(t, EventMetricGroups, event.Type)

	groups, ok := event.Data.([]any)
	require.True(t, ok)
	require.Len(t, groups, 3)
	first, ok := groups[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "organic_impressions", first["id"])
	assert.Equal(t, "loading", first["state"])
}
