package monitoring

import (
	"encoding/json"
	"sync"
)

// Hop is one step of a Chain (spec.md §3).
type Hop struct {
	CallID            string
	SourceParticipant string
	TargetParticipant string
	Phase             ChainPhase
	Reason            string
	TimestampNs       int64
}

// Chain is the in-memory reconstruction of a multi-hop workflow from CHAIN
// events. Chains are transient, per spec.md §3: they live only in a
// subscriber's cache, never durably.
type Chain struct {
	ChainID  string
	RootCause string
	Hops     []Hop
}

// ChainTracker reconstructs Chains from the volatile Event stream's CHAIN
// events. It is a plain in-memory cache, not a durable projection.
type ChainTracker struct {
	mu     sync.Mutex
	chains map[string]*Chain
}

// NewChainTracker constructs an empty tracker.
func NewChainTracker() *ChainTracker {
	return &ChainTracker{chains: make(map[string]*Chain)}
}

// Observe folds one CHAIN Event into the tracker. Non-CHAIN events are
// ignored. Malformed payloads are dropped silently; the tracker is
// best-effort only.
func (t *ChainTracker) Observe(ev Event) {
	if ev.Kind != EventKindChain {
		return
	}
	var payload ChainEventPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.chains[payload.ChainID]
	if !ok {
		c = &Chain{ChainID: payload.ChainID}
		t.chains[payload.ChainID] = c
	}
	c.Hops = append(c.Hops, Hop{
		CallID:            payload.CallID,
		SourceParticipant: payload.SourceParticipant,
		TargetParticipant: payload.TargetParticipant,
		Phase:             payload.Phase,
		Reason:            payload.Reason,
		TimestampNs:       ev.TimestampNs,
	})
}

// Chain returns a copy of the current hop list for chainID, or nil if
// unknown.
func (t *ChainTracker) Chain(chainID string) *Chain {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.chains[chainID]
	if !ok {
		return nil
	}
	cp := &Chain{ChainID: c.ChainID, RootCause: c.RootCause, Hops: append([]Hop{}, c.Hops...)}
	return cp
}

// Forget discards a chain's hop list, e.g. once COMPLETE/ERROR has been
// observed and the caller has rendered its report.
func (t *ChainTracker) Forget(chainID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.chains, chainID)
}
