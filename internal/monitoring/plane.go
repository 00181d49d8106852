package monitoring

import (
	"context"
	"encoding/json"
	"time"

	"github.com/genesis-run/genesis/internal/generrors"
	"github.com/genesis-run/genesis/internal/transport"
)

// Plane is the publishing side of the Monitoring Plane: every participant
// publishes its own node/edge updates and events through one Plane handle.
type Plane struct {
	transport transport.Transport
}

// New constructs a Plane over t.
func New(t transport.Transport) *Plane {
	return &Plane{transport: t}
}

// PublishNode upserts a Node record onto the durable GraphTopology topic.
func (p *Plane) PublishNode(ctx context.Context, n Node) error {
	n.Kind = RecordKindNode
	raw, err := json.Marshal(n)
	if err != nil {
		return generrors.Wrap(generrors.KindSchemaViolation, "marshal node", err)
	}
	if err := p.transport.PublishDurable(ctx, transport.GraphTopologyTopic, n.ElementID, raw); err != nil {
		return generrors.Wrap(generrors.KindTransportUnavailable, "publish node", err)
	}
	return nil
}

// RemoveNode withdraws a Node record from the durable GraphTopology topic.
func (p *Plane) RemoveNode(ctx context.Context, elementID string) error {
	if err := p.transport.WithdrawDurable(ctx, transport.GraphTopologyTopic, elementID); err != nil {
		return generrors.Wrap(generrors.KindTransportUnavailable, "withdraw node", err)
	}
	return nil
}

// PublishEdge upserts an Edge record onto the durable GraphTopology topic.
func (p *Plane) PublishEdge(ctx context.Context, e Edge) error {
	e.Kind = RecordKindEdge
	raw, err := json.Marshal(e)
	if err != nil {
		return generrors.Wrap(generrors.KindSchemaViolation, "marshal edge", err)
	}
	if err := p.transport.PublishDurable(ctx, transport.GraphTopologyTopic, e.ElementID, raw); err != nil {
		return generrors.Wrap(generrors.KindTransportUnavailable, "publish edge", err)
	}
	return nil
}

// RemoveEdge withdraws an Edge record.
func (p *Plane) RemoveEdge(ctx context.Context, elementID string) error {
	if err := p.transport.WithdrawDurable(ctx, transport.GraphTopologyTopic, elementID); err != nil {
		return generrors.Wrap(generrors.KindTransportUnavailable, "withdraw edge", err)
	}
	return nil
}

// PublishEvent fires a volatile Event. TimestampNs is set to now if zero.
func (p *Plane) PublishEvent(ctx context.Context, ev Event) error {
	if ev.TimestampNs == 0 {
		ev.TimestampNs = time.Now().UnixNano()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return generrors.Wrap(generrors.KindSchemaViolation, "marshal event", err)
	}
	if err := p.transport.PublishVolatile(ctx, transport.EventTopic, raw); err != nil {
		return generrors.Wrap(generrors.KindTransportUnavailable, "publish event", err)
	}
	return nil
}
