package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryDurableLateJoinerSeesSnapshotThenUpdates(t *testing.T) {
	tr := NewInMemory()
	defer tr.Close()
	ctx := context.Background()

	require.NoError(t, tr.PublishDurable(ctx, "topic", "a", []byte("1")))

	sub, err := tr.SubscribeDurable(ctx, "topic", nil)
	require.NoError(t, err)
	defer sub.Close()
	require.Equal(t, []byte("1"), sub.Snapshot["a"])

	require.NoError(t, tr.PublishDurable(ctx, "topic", "b", []byte("2")))

	select {
	case update := <-sub.Updates:
		require.Equal(t, "b", update.Key)
		require.Equal(t, []byte("2"), update.Value)
		require.False(t, update.Deleted)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for durable update")
	}
}

func TestInMemoryDurableWithdraw(t *testing.T) {
	tr := NewInMemory()
	defer tr.Close()
	ctx := context.Background()

	require.NoError(t, tr.PublishDurable(ctx, "topic", "a", []byte("1")))
	sub, err := tr.SubscribeDurable(ctx, "topic", nil)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, tr.WithdrawDurable(ctx, "topic", "a"))
	select {
	case update := <-sub.Updates:
		require.True(t, update.Deleted)
		require.Equal(t, "a", update.Key)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for withdrawal")
	}
}

func TestInMemoryDurableFilterExcludesNonMatching(t *testing.T) {
	tr := NewInMemory()
	defer tr.Close()
	ctx := context.Background()

	onlyB := func(v []byte) bool { return string(v) == "b" }
	require.NoError(t, tr.PublishDurable(ctx, "topic", "k1", []byte("a")))
	require.NoError(t, tr.PublishDurable(ctx, "topic", "k2", []byte("b")))

	sub, err := tr.SubscribeDurable(ctx, "topic", onlyB)
	require.NoError(t, err)
	defer sub.Close()

	require.Len(t, sub.Snapshot, 1)
	require.Equal(t, []byte("b"), sub.Snapshot["k2"])
}

func TestInMemoryVolatileFireAndForget(t *testing.T) {
	tr := NewInMemory()
	defer tr.Close()
	ctx := context.Background()

	// Published before subscribing: must NOT be delivered (no history).
	require.NoError(t, tr.PublishVolatile(ctx, "events", []byte("early")))

	sub, err := tr.SubscribeVolatile(ctx, "events", nil)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, tr.PublishVolatile(ctx, "events", []byte("late")))

	select {
	case msg := <-sub.Messages:
		require.Equal(t, []byte("late"), msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for volatile message")
	}

	select {
	case msg := <-sub.Messages:
		t.Fatalf("unexpected extra message: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInMemoryCloseUnblocksSubscribers(t *testing.T) {
	tr := NewInMemory()
	ctx := context.Background()
	sub, err := tr.SubscribeDurable(ctx, "topic", nil)
	require.NoError(t, err)

	require.NoError(t, tr.Close())

	_, ok := <-sub.Updates
	require.False(t, ok)

	require.ErrorIs(t, tr.PublishDurable(ctx, "topic", "a", []byte("1")), ErrClosed)
}
