package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidpress/internal/domain"
)

func TestEventBus_PublishReachesSubscribers(t *testing.T) {
	eb := NewEventBus()

	ch1 := eb.Subscribe(1)
	ch2 := eb.Subscribe(1)
	other := eb.Subscribe(2)

	eb.Publish(Event{JobID: 1, Status: domain.JobStatusProcessing, Progress: 42})

	for _, ch := range []chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			assert.Equal(t, int64(1), e.JobID)
			assert.Equal(t, 42.0, e.Progress)
		default:
			t.Fatal("expected event on subscriber channel")
		}
	}
	assert.Empty(t, other, "events are scoped per job")
}

func TestEventBus_UnsubscribeClosesChannel(t *testing.T) {
	eb := NewEventBus()

	ch := eb.Subscribe(1)
	eb.Unsubscribe(1, ch)

	_, open := <-ch
	require.False(t, open)

	// Publishing to a job with no subscribers is a no-op.
	eb.Publish(Event{JobID: 1, Status: domain.JobStatusCompleted, Progress: 100})
}

func TestEventBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	eb := NewEventBus()

	ch := eb.Subscribe(1)
	for i := range 32 {
		eb.Publish(Event{JobID: 1, Status: domain.JobStatusProcessing, Progress: float64(i)})
	}

	// Channel buffer is 16; the rest were dropped, not blocked on.
	assert.Len(t, ch, 16)
}
