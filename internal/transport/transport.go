// Package transport provides the pub/sub and request/reply primitives that
// back every other plane in Genesis (spec.md §2, Transport Abstraction).
// It distinguishes durable topics (last-value-wins per key, with late
// subscribers receiving the full current set before any update) from
// volatile topics (fire-and-forget, no history for late joiners), matching
// the QoS split of the wire topic namespace in spec.md §6.
//
// The design mirrors the layering the teacher uses for goa.design/pulse:
// a durable keyed map (rmap.Map) for last-value-wins state and a stream for
// fire-and-forget events, both built on top of a Redis client. Genesis does
// not vendor goa.design/pulse itself (an internal dependency of the
// teacher's organization); instead this package reimplements the same two
// shapes directly over github.com/redis/go-redis/v9, which is the library
// pulse itself wraps (see DESIGN.md).
package transport

import (
	"context"
)

// DurableUpdate is one delta delivered to a durable topic subscriber: either
// the current value for Key (Deleted == false) or a withdrawal
// (Deleted == true).
type DurableUpdate struct {
	Key     string
	Value   []byte
	Deleted bool
}

// DurableSubscription delivers the current full key set followed by
// subsequent updates, satisfying the "late-joining readers MUST receive the
// current set before any subsequent updates" contract of spec.md §4.2.
type DurableSubscription struct {
	// Snapshot is the current value for every live key at subscribe time.
	Snapshot map[string][]byte
	// Updates streams deltas observed after the snapshot was taken. The
	// channel is closed when Close is called or the transport shuts down.
	Updates <-chan DurableUpdate
	// Close releases the subscription. Safe to call more than once.
	Close func()
}

// VolatileSubscription delivers volatile topic messages from the moment of
// subscription onward; no history is replayed to late joiners.
type VolatileSubscription struct {
	Messages <-chan []byte
	Close    func()
}

// Filter decides whether a raw message should be delivered to a subscriber
// without requiring the transport to deserialize the message itself. This
// realizes the "filter-at-source" / content-filtered subscription
// requirement of spec.md §4.2 and §4.6 (e.g., subscribe to kind=FUNCTION
// only). Filters receive the raw bytes; callers typically peek a single
// field via a cheap partial decode.
type Filter func(value []byte) bool

// Transport is the pub/sub and request/reply substrate every plane builds
// on. Implementations must be safe for concurrent use.
type Transport interface {
	// PublishDurable publishes or replaces the value for key on topic. This
	// is how the Advertisement Plane and GraphTopology implement
	// last-value-wins semantics (spec.md §4.2, §4.6).
	PublishDurable(ctx context.Context, topic, key string, value []byte) error

	// WithdrawDurable removes key from topic, notifying subscribers with a
	// DurableUpdate{Deleted: true}.
	WithdrawDurable(ctx context.Context, topic, key string) error

	// SubscribeDurable subscribes to topic, optionally filtering delivered
	// keys/values with filter (nil means "all").
	SubscribeDurable(ctx context.Context, topic string, filter Filter) (*DurableSubscription, error)

	// PublishVolatile fire-and-forgets value onto topic (the Event and RPC
	// planes use this).
	PublishVolatile(ctx context.Context, topic string, value []byte) error

	// SubscribeVolatile subscribes to topic from this point forward,
	// optionally filtering delivered messages.
	SubscribeVolatile(ctx context.Context, topic string, filter Filter) (*VolatileSubscription, error)

	// Close releases all resources held by the transport.
	Close() error
}

// Topic name builders. The literal strings follow the bit-exact namespace
// required by spec.md §6 for discovery compatibility.
const (
	// AdvertisementTopic is the durable topic carrying Advertisement records.
	AdvertisementTopic = "rti/connext/genesis/Advertisement"
	// GraphTopologyTopic is the durable topic carrying GraphTopology records.
	GraphTopologyTopic = "rti/connext/genesis/monitoring/GraphTopology"
	// EventTopic is the volatile topic carrying Event records.
	EventTopic = "rti/connext/genesis/monitoring/Event"
)

// RPCRequestTopic returns the Request topic name for a service class.
func RPCRequestTopic(serviceClass string) string {
	return "rti/connext/genesis/rpc/" + serviceClass + "Request"
}

// RPCReplyTopic returns the Reply topic name for a service class.
func RPCReplyTopic(serviceClass string) string {
	return "rti/connext/genesis/rpc/" + serviceClass + "Reply"
}
