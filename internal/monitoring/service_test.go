package monitoring

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/genesis-run/genesis/internal/transport"
)

func TestServiceAppliesNodeAndEdgeUpdates(t *testing.T) {
	tr := transport.NewInMemory()
	defer tr.Close()
	ctx := context.Background()

	plane := New(tr)
	svc, err := NewService(ctx, tr)
	require.NoError(t, err)
	defer svc.Close()

	var deltas []Delta
	svc.Subscribe(func(d Delta) { deltas = append(deltas, d) })

	require.NoError(t, plane.PublishNode(ctx, Node{ElementID: "n1", Type: "AGENT", State: "READY"}))
	require.NoError(t, plane.PublishEdge(ctx, Edge{ElementID: "e1", Type: "CALLS", Source: "n1", Target: "n2"}))

	require.Eventually(t, func() bool {
		nodes, edges, _ := svc.Snapshot()
		return len(nodes) == 1 && len(edges) == 1
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool { return len(deltas) >= 2 }, time.Second, 10*time.Millisecond)
}

func TestServiceRetentionSweepsOfflineNodes(t *testing.T) {
	tr := transport.NewInMemory()
	defer tr.Close()
	ctx := context.Background()

	plane := New(tr)
	svc, err := NewService(ctx, tr, WithRetention(50*time.Millisecond))
	require.NoError(t, err)
	defer svc.Close()

	require.NoError(t, plane.PublishNode(ctx, Node{ElementID: "n1", Type: "AGENT", State: "READY"}))
	require.Eventually(t, func() bool {
		nodes, _, _ := svc.Snapshot()
		return len(nodes) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, plane.PublishNode(ctx, Node{ElementID: "n1", Type: "AGENT", State: "OFFLINE"}))

	require.Eventually(t, func() bool {
		nodes, _, _ := svc.Snapshot()
		return len(nodes) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChainTrackerReconstructsHopsInOrder(t *testing.T) {
	tracker := NewChainTracker()
	tracker.Observe(makeChainEvent("c1", "call-1", "a", "b", ChainPhaseStart))
	tracker.Observe(makeChainEvent("c1", "call-1", "a", "b", ChainPhaseComplete))

	chain := tracker.Chain("c1")
	require.NotNil(t, chain)
	require.Len(t, chain.Hops, 2)
	require.Equal(t, ChainPhaseStart, chain.Hops[0].Phase)
	require.Equal(t, ChainPhaseComplete, chain.Hops[1].Phase)

	md := RenderChainMarkdown(chain)
	require.Contains(t, md, "Chain c1")
}

func makeChainEvent(chainID, callID, src, dst string, phase ChainPhase) Event {
	payload, _ := json.Marshal(ChainEventPayload{
		ChainID:           chainID,
		CallID:            callID,
		SourceParticipant: src,
		TargetParticipant: dst,
		Phase:             phase,
	})
	return Event{Kind: EventKindChain, Payload: payload, TimestampNs: time.Now().UnixNano()}
}
