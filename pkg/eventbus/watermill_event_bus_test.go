package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intelogroup/clixen/pkg/events"
)

func TestGoChannelEventBus_PublishAndSubscribe(t *testing.T) {
	bus := NewGoChannelEventBus()
	defer func() {
		_ = bus.Close()
	}()

	received := make(chan *events.DeploymentCompleted, 1)

	err := bus.Handle(events.DeploymentCompletedEvent, func(_ context.Context, event any) error {
		completed, ok := event.(*events.DeploymentCompleted)
		require.True(t, ok)
		received <- completed

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(t.Context()))

	err = bus.Publish(t.Context(), "wf-1", events.DeploymentCompleted{
		BaseEvent: events.BaseEvent{
			ID:         bus.GenerateID(),
			Type:       events.DeploymentCompletedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: "wf-1",
			UserID:     "user-1",
		},
		DeploymentID:     "dep-1",
		EngineWorkflowID: "engine-1",
	})
	require.NoError(t, err)

	select {
	case completed := <-received:
		assert.Equal(t, "wf-1", completed.WorkflowID)
		assert.Equal(t, "dep-1", completed.DeploymentID)
		assert.Equal(t, "engine-1", completed.EngineWorkflowID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestGoChannelEventBus_UnhandledEventsAreAcked(t *testing.T) {
	bus := NewGoChannelEventBus()
	defer func() {
		_ = bus.Close()
	}()

	require.NoError(t, bus.Subscribe(t.Context()))

	// No handler registered: publishing must not error or wedge the bus.
	err := bus.Publish(t.Context(), "wf-1", events.DeploymentStarted{
		BaseEvent: events.BaseEvent{
			ID:         bus.GenerateID(),
			Type:       events.DeploymentStartedEvent,
			WorkflowID: "wf-1",
		},
		DeploymentID: "dep-1",
	})
	assert.NoError(t, err)
}

func TestEventBus_DuplicateHandlerRejected(t *testing.T) {
	bus := NewGoChannelEventBus()
	defer func() {
		_ = bus.Close()
	}()

	handler := func(_ context.Context, _ any) error { return nil }

	require.NoError(t, bus.Handle(events.DeploymentFailedEvent, handler))
	assert.Error(t, bus.Handle(events.DeploymentFailedEvent, handler))
}
