// Package ids centralizes identifier generation for Genesis records
// (participant_id, advertisement_id, correlation_id, chain_id, call_id,
// event_id, element_id). Fresh identifiers are backed by google/uuid the way
// the teacher generates run and tool-call identifiers; advertisement_id and
// element_id values are derived from their inputs by string concatenation.
package ids

import "github.com/google/uuid"

// New returns a fresh random (v4) identifier string.
func New() string { return uuid.NewString() }

// NewParticipantID returns a fresh participant_id.
func NewParticipantID() string { return "participant-" + uuid.NewString() }

// NewAdvertisementID derives a stable advertisement_id for the
// (providerID, kind, name) triple, so re-publishing the same advertisement
// (last-value-wins) keys to the same record instead of minting a new one.
func NewAdvertisementID(providerID, kind, name string) string {
	return kind + ":" + providerID + ":" + name
}

// NewCorrelationID returns a fresh correlation_id for an RPC call.
func NewCorrelationID() string { return uuid.NewString() }

// NewChainID returns a fresh chain_id for a top-level request.
func NewChainID() string { return uuid.NewString() }

// NewCallID returns a fresh call_id for one hop within a chain.
func NewCallID() string { return uuid.NewString() }

// NewEventID returns a fresh event_id.
func NewEventID() string { return uuid.NewString() }

// NodeElementID derives the element_id for a NODE topology record.
func NodeElementID(participantID string) string { return "node:" + participantID }

// EdgeElementID derives the element_id for an EDGE topology record, composed
// of its endpoints and edge type per spec.md §3 ("composite of endpoints +
// edge_type").
func EdgeElementID(source, target, edgeType string) string {
	return "edge:" + source + ":" + target + ":" + edgeType
}
