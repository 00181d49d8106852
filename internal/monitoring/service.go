package monitoring

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/genesis-run/genesis/internal/generrors"
	"github.com/genesis-run/genesis/internal/ids"
	"github.com/genesis-run/genesis/internal/telemetry"
	"github.com/genesis-run/genesis/internal/transport"
)

// DefaultRetention is the OFFLINE node grace period applied when no
// retention duration is configured.
const DefaultRetention = 10 * time.Minute

// DeltaKind identifies the shape of a Delta emitted by the graph service.
type DeltaKind string

const (
	DeltaNodeUpdate DeltaKind = "node_update"
	DeltaEdgeUpdate DeltaKind = "edge_update"
	DeltaNodeRemove DeltaKind = "node_remove"
	DeltaEdgeRemove DeltaKind = "edge_remove"
	DeltaActivity   DeltaKind = "activity"
)

// Delta is one unit of change the graph service hands to downstream
// consumers (e.g. wsbridge). It is strictly a projection: the graph service
// never publishes a Delta back onto GraphTopology or Event.
type Delta struct {
	Kind DeltaKind       `json:"kind"`
	Node *Node           `json:"node,omitempty"`
	Edge *Edge           `json:"edge,omitempty"`
	Event *Event         `json:"event,omitempty"`
}

// Service is the in-process graph service of spec.md §4.6: it maintains the
// {nodes, edges} projection from the durable GraphTopology topic, relays
// Event activity, and runs the OFFLINE-node retention sweep (spec.md §9's
// resolved grace-period decision).
type Service struct {
	store     GraphStore
	transport transport.Transport
	logger    telemetry.Logger
	retention time.Duration

	mu        sync.Mutex
	listeners []func(Delta)
	// offlineSince tracks when a NODE entered state OFFLINE, so the sweep
	// can garbage-collect it (and the edges that start or end at it) after
	// retention.
	offlineSince map[string]time.Time

	graphSub *transport.DurableSubscription
	eventSub *transport.VolatileSubscription
}

// Option configures a Service.
type Option func(*Service)

// WithStore overrides the default in-memory GraphStore.
func WithStore(store GraphStore) Option {
	return func(s *Service) { s.store = store }
}

// WithLogger attaches a Logger.
func WithLogger(l telemetry.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRetention overrides DefaultRetention.
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// NewService subscribes to GraphTopology and Event and starts the
// background consumers. Callers observe deltas via Subscribe.
func NewService(ctx context.Context, t transport.Transport, opts ...Option) (*Service, error) {
	s := &Service{
		store:        NewMemStore(),
		transport:    t,
		logger:       telemetry.NewNoopLogger(),
		retention:    DefaultRetention,
		offlineSince: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}

	graphSub, err := t.SubscribeDurable(ctx, transport.GraphTopologyTopic, nil)
	if err != nil {
		return nil, generrors.Wrap(generrors.KindTransportUnavailable, "subscribe graph topology", err)
	}
	s.graphSub = graphSub
	for _, raw := range graphSub.Snapshot {
		s.applyGraphUpdate(raw, false)
	}

	eventSub, err := t.SubscribeVolatile(ctx, transport.EventTopic, nil)
	if err != nil {
		graphSub.Close()
		return nil, generrors.Wrap(generrors.KindTransportUnavailable, "subscribe event topic", err)
	}
	s.eventSub = eventSub

	go s.consumeGraph()
	go s.consumeEvents()
	go s.sweepLoop(ctx)

	return s, nil
}

// Subscribe registers fn to receive every Delta computed by the service.
// fn must not block for long; it is invoked synchronously on the service's
// consumer goroutine.
func (s *Service) Subscribe(fn func(Delta)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Service) emit(d Delta) {
	s.mu.Lock()
	listeners := append([]func(Delta){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(d)
	}
}

func (s *Service) consumeGraph() {
	for update := range s.graphSub.Updates {
		if update.Deleted {
			s.applyGraphRemoval(update.Key)
			continue
		}
		s.applyGraphUpdate(update.Value, true)
	}
}

func (s *Service) applyGraphUpdate(raw []byte, emitDelta bool) {
	var peek struct {
		Kind RecordKind `json:"kind"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		s.logger.Warn(context.Background(), "discarding malformed graph topology record", "error", err)
		return
	}
	switch peek.Kind {
	case RecordKindNode:
		var n Node
		if err := json.Unmarshal(raw, &n); err != nil {
			return
		}
		_ = s.store.UpsertNode(n)
		s.trackOffline(n)
		if emitDelta {
			s.emit(Delta{Kind: DeltaNodeUpdate, Node: &n})
		}
	case RecordKindEdge:
		var e Edge
		if err := json.Unmarshal(raw, &e); err != nil {
			return
		}
		_ = s.store.UpsertEdge(e)
		if emitDelta {
			s.emit(Delta{Kind: DeltaEdgeUpdate, Edge: &e})
		}
	}
}

func (s *Service) trackOffline(n Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.State == "OFFLINE" {
		if _, tracked := s.offlineSince[n.ElementID]; !tracked {
			s.offlineSince[n.ElementID] = time.Now()
		}
	} else {
		delete(s.offlineSince, n.ElementID)
	}
}

func (s *Service) applyGraphRemoval(elementID string) {
	nodes, _ := s.store.Nodes()
	for _, n := range nodes {
		if n.ElementID == elementID {
			_ = s.store.DeleteNode(elementID)
			s.mu.Lock()
			delete(s.offlineSince, elementID)
			s.mu.Unlock()
			s.emit(Delta{Kind: DeltaNodeRemove, Node: &n})
			return
		}
	}
	edges, _ := s.store.Edges()
	for _, e := range edges {
		if e.ElementID == elementID {
			_ = s.store.DeleteEdge(elementID)
			s.emit(Delta{Kind: DeltaEdgeRemove, Edge: &e})
			return
		}
	}
}

func (s *Service) consumeEvents() {
	for raw := range s.eventSub.Messages {
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			s.logger.Warn(context.Background(), "discarding malformed event", "error", err)
			continue
		}
		s.emit(Delta{Kind: DeltaActivity, Event: &ev})
	}
}

// sweepLoop periodically garbage-collects nodes that have been OFFLINE for
// longer than retention, along with the edges that start or end at them, per spec.md §9's
// grace-period retention decision.
func (s *Service) sweepLoop(ctx context.Context) {
	interval := s.retention / 10
	if interval > time.Second {
		interval = time.Second
	}
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Service) sweepOnce() {
	now := time.Now()
	s.mu.Lock()
	var expired []string
	for elementID, since := range s.offlineSince {
		if now.Sub(since) >= s.retention {
			expired = append(expired, elementID)
		}
	}
	for _, id := range expired {
		delete(s.offlineSince, id)
	}
	s.mu.Unlock()

	for _, nodeID := range expired {
		s.gcNode(nodeID)
	}
}

func (s *Service) gcNode(nodeID string) {
	_ = s.store.DeleteNode(nodeID)
	s.emit(Delta{Kind: DeltaNodeRemove, Node: &Node{ElementID: nodeID, Kind: RecordKindNode}})

	edges, _ := s.store.Edges()
	for _, e := range edges {
		// Edge endpoints may name a participant_id, whose NODE record is
		// keyed by ids.NodeElementID(participant_id).
		if e.Source == nodeID || e.Target == nodeID || ids.NodeElementID(e.Source) == nodeID || ids.NodeElementID(e.Target) == nodeID {
			_ = s.store.DeleteEdge(e.ElementID)
			edge := e
			s.emit(Delta{Kind: DeltaEdgeRemove, Edge: &edge})
		}
	}
}

// Snapshot returns the current projection.
func (s *Service) Snapshot() (nodes []Node, edges []Edge, err error) {
	nodes, err = s.store.Nodes()
	if err != nil {
		return nil, nil, err
	}
	edges, err = s.store.Edges()
	return nodes, edges, err
}

// Close releases the underlying subscriptions.
func (s *Service) Close() {
	if s.graphSub != nil {
		s.graphSub.Close()
	}
	if s.eventSub != nil {
		s.eventSub.Close()
	}
}
