// Package rpcplane implements the RPC Plane of spec.md §4.3: per
// service_class Request/Reply topics, correlation, deadlines, and
// cancellation.
package rpcplane

import (
	"context"
	"encoding/json"
)

// Request is the wire envelope of spec.md §3/§6.
type Request struct {
	CorrelationID   string          `json:"correlation_id"`
	From            string          `json:"from"`
	ToParticipant   string          `json:"to_participant,omitempty"`
	ToServiceClass  string          `json:"to_service_class"`
	Operation       string          `json:"operation"`
	Arguments       json.RawMessage `json:"arguments"`
	DeadlineUnixNs  int64           `json:"deadline_unix_ns"`
	ConversationID  string          `json:"conversation_id,omitempty"`
}

// Status mirrors the Reply envelope's int32 status field (spec.md §6):
// 0 means OK, any non-zero value indicates failure.
type Status int32

const (
	StatusOK    Status = 0
	StatusError Status = 1
)

// Reply is the wire envelope of spec.md §3/§6, mirroring Request and adding
// status plus exactly one of Result or Error.
type Reply struct {
	CorrelationID  string          `json:"correlation_id"`
	From           string          `json:"from"`
	Status         Status          `json:"status"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
}

// Handler processes one Request and returns the Reply to publish. Handlers
// should treat ctx's deadline as advisory cancellation: the caller may have
// already given up and discarded any reply that arrives late.
type Handler func(ctx context.Context, req Request) Reply
