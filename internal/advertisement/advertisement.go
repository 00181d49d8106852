// Package advertisement implements the Advertisement Plane (spec.md §4.2):
// the single durable topic carrying Advertisement records for agents,
// services, and functions, with last-value-wins publishing, durability for
// late joiners, and content filtering by kind.
package advertisement

import (
	"encoding/json"
	"time"
)

// Kind enumerates the three advertisement kinds of spec.md §3. Note the
// wire enum in spec.md §6 names the third value REGISTRATION where §3's
// data model calls it SERVICE; Genesis's wire encoding uses SERVICE
// throughout since that is the name every other section of spec.md uses,
// treating §6's REGISTRATION as a synonym rather than a fourth kind (see
// DESIGN.md Open Question resolution).
type Kind string

const (
	KindFunction Kind = "FUNCTION"
	KindAgent    Kind = "AGENT"
	KindService  Kind = "SERVICE"
)

// Advertisement is the durable record described in spec.md §3/§6.
type Advertisement struct {
	AdvertisementID string          `json:"advertisement_id"`
	Kind            Kind            `json:"kind"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	ProviderID      string          `json:"provider_id"`
	ServiceClass    string          `json:"service_name"`
	LastSeen        int64           `json:"last_seen"`
	Payload         json.RawMessage `json:"payload"`
}

// FunctionPayload is the recognized payload shape for KindFunction
// advertisements (spec.md §3).
type FunctionPayload struct {
	ParameterSchema    json.RawMessage `json:"parameter_schema"`
	Capabilities       []string        `json:"capabilities"`
	ClassificationTags []string        `json:"classification_tags"`
	ServiceName        string          `json:"service_name"`
}

// AgentPayload is the recognized payload shape for KindAgent advertisements
// (spec.md §3).
type AgentPayload struct {
	Specializations    []string `json:"specializations"`
	Capabilities       []string `json:"capabilities"`
	ClassificationTags []string `json:"classification_tags"`
	ModelInfo          string   `json:"model_info"`
	DefaultCapable     bool     `json:"default_capable"`
}

// ServicePayload is the recognized payload shape for KindService
// advertisements (spec.md §3).
type ServicePayload struct {
	Functions    []string `json:"functions"`
	Capabilities []string `json:"capabilities"`
}

// HasCapability reports whether tag is present in capabilities. Used by the
// Orchestrator's idempotent-retry decision (spec.md §7).
func HasCapability(capabilities []string, tag string) bool {
	for _, c := range capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// Staleness returns how long ago LastSeen was, given now (monotonic unix
// nanos). Used for the Orchestrator's tie-break rule (spec.md §4.4: "lowest
// last_seen staleness, then deterministic hash of provider_id").
func (a Advertisement) Staleness(nowUnixNano int64) time.Duration {
	return time.Duration(nowUnixNano - a.LastSeen)
}
