// Package monitoring implements the Monitoring Plane of spec.md §4.6: a
// durable GraphTopology projection plus a volatile Event stream, with an
// in-process graph service that is strictly a read projection — it never
// publishes back onto either topic.
package monitoring

import "encoding/json"

// RecordKind distinguishes GraphTopology records.
type RecordKind string

const (
	RecordKindNode RecordKind = "NODE"
	RecordKindEdge RecordKind = "EDGE"
)

// Node is a GraphTopology NODE record (spec.md §3).
type Node struct {
	ElementID string          `json:"element_id"`
	Kind      RecordKind      `json:"kind"`
	Type      string          `json:"type"`
	State     string          `json:"state"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// Edge is a GraphTopology EDGE record (spec.md §3). ElementID is a
// composite of (source, target, edge_type), minted by ids.EdgeElementID.
type Edge struct {
	ElementID string          `json:"element_id"`
	Kind      RecordKind      `json:"kind"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Target    string          `json:"target"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// EventKind distinguishes Event records.
type EventKind string

const (
	EventKindLifecycle EventKind = "LIFECYCLE"
	EventKindChain      EventKind = "CHAIN"
	EventKindGeneral    EventKind = "GENERAL"
)

// ChainPhase is the phase of a CHAIN event.
type ChainPhase string

const (
	ChainPhaseStart    ChainPhase = "START"
	ChainPhaseComplete ChainPhase = "COMPLETE"
	ChainPhaseError    ChainPhase = "ERROR"
)

// Event is a volatile Event record (spec.md §3).
type Event struct {
	EventID     string          `json:"event_id"`
	Kind        EventKind       `json:"kind"`
	ComponentID string          `json:"component_id"`
	EventType   string          `json:"event_type"`
	Severity    string          `json:"severity"`
	Message     string          `json:"message"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	TimestampNs int64           `json:"timestamp_unix_ns"`
}

// ChainEventPayload is the recognized Payload shape for Kind=CHAIN events.
type ChainEventPayload struct {
	ChainID           string `json:"chain_id"`
	CallID            string `json:"call_id"`
	SourceParticipant string `json:"source_participant"`
	TargetParticipant string `json:"target_participant"`
	Phase             ChainPhase `json:"phase"`
	Reason            string `json:"reason,omitempty"`
}
