package events

import (
	"context"
	"testing"
	"time"

	"civicsync/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func receive(t *testing.T, ch <-chan models.IssueEvent) models.IssueEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return models.IssueEvent{}
	}
}

func waitClosed(t *testing.T, ch <-chan models.IssueEvent) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription channel not closed")
		}
	}
}

func TestLocalBusFanOut(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())

	a, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	b, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	ev := models.IssueEvent{Type: "issue_claimed", IssueID: primitive.NewObjectID(), Status: models.InProgress}
	require.NoError(t, bus.Publish(ctx, ev))

	assert.Equal(t, ev, receive(t, a))
	assert.Equal(t, ev, receive(t, b))

	cancel()
	waitClosed(t, a)
	waitClosed(t, b)

	// Publishing with no subscribers is a no-op.
	require.NoError(t, bus.Publish(context.Background(), ev))
}

func TestLocalBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	for i := 0; i < 40; i++ {
		require.NoError(t, bus.Publish(ctx, models.IssueEvent{Type: "issue_updated"}))
	}
	assert.Equal(t, cap(ch), len(ch))
}

func TestRedisBus(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	bus := NewRedisBus(rdb, "", zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	ev := models.IssueEvent{
		Type:      "issue_resolved",
		IssueID:   primitive.NewObjectID(),
		Status:    models.Resolved,
		UpdatedAt: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, bus.Publish(ctx, ev))

	got := receive(t, ch)
	assert.Equal(t, ev.Type, got.Type)
	assert.Equal(t, ev.IssueID, got.IssueID)
	assert.Equal(t, ev.Status, got.Status)
	assert.True(t, ev.UpdatedAt.Equal(got.UpdatedAt))

	mr.Publish(DefaultChannel, "{not json")
	require.NoError(t, bus.Publish(ctx, ev))
	assert.Equal(t, ev.IssueID, receive(t, ch).IssueID)

	cancel()
	waitClosed(t, ch)
}
