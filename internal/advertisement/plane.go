package advertisement

import (
	"context"
	"encoding/json"
	"time"

	"github.com/genesis-run/genesis/internal/generrors"
	"github.com/genesis-run/genesis/internal/ids"
	"github.com/genesis-run/genesis/internal/schema"
	"github.com/genesis-run/genesis/internal/transport"
)

// Plane is the write-side handle every provider uses to publish, update,
// and withdraw its own advertisements on the durable Advertisement topic
// (spec.md §4.2). Ownership is per-provider: a Plane never mutates another
// provider's advertisement.
type Plane struct {
	transport transport.Transport
}

// New constructs a Plane bound to the given transport.
func New(t transport.Transport) *Plane {
	return &Plane{transport: t}
}

// Publish publishes or replaces ad atomically, keyed by
// (provider_id, kind, name) so re-publishing the same triple is
// last-value-wins rather than creating a duplicate (spec.md §3 invariant).
// Publish enforces the wire size limit and, when schemaJSON is non-empty,
// validates ad.Payload against it, returning a SchemaViolation on failure
// (spec.md §8 boundary behavior).
func (p *Plane) Publish(ctx context.Context, ad Advertisement, schemaJSON json.RawMessage) (Advertisement, error) {
	if ad.ProviderID == "" || ad.Name == "" {
		return Advertisement{}, generrors.New(generrors.KindSchemaViolation, "advertisement requires provider_id and name")
	}
	if err := schema.ValidateSize(ad.Payload, schema.MaxAdvertisementPayloadBytes); err != nil {
		return Advertisement{}, err
	}
	if len(schemaJSON) > 0 {
		if err := schema.ValidateAgainstSchema(ad.Payload, schemaJSON); err != nil {
			return Advertisement{}, err
		}
	}

	ad.AdvertisementID = ids.NewAdvertisementID(ad.ProviderID, string(ad.Kind), ad.Name)
	ad.LastSeen = time.Now().UnixNano()

	raw, err := json.Marshal(ad)
	if err != nil {
		return Advertisement{}, generrors.Wrap(generrors.KindSchemaViolation, "marshal advertisement", err)
	}
	if err := p.transport.PublishDurable(ctx, transport.AdvertisementTopic, ad.AdvertisementID, raw); err != nil {
		return Advertisement{}, generrors.Wrap(generrors.KindTransportUnavailable, "publish advertisement", err)
	}
	return ad, nil
}

// Withdraw removes the advertisement identified by (providerID, kind, name).
// Deletion is implicit on provider OFFLINE (spec.md §3); Withdraw is the
// mechanism the Participant Runtime uses to implement that.
func (p *Plane) Withdraw(ctx context.Context, providerID string, kind Kind, name string) error {
	id := ids.NewAdvertisementID(providerID, string(kind), name)
	if err := p.transport.WithdrawDurable(ctx, transport.AdvertisementTopic, id); err != nil {
		return generrors.Wrap(generrors.KindTransportUnavailable, "withdraw advertisement", err)
	}
	return nil
}

// WithdrawAllForProvider removes every advertisement owned by providerID by
// scanning a caller-supplied snapshot of current advertisements (typically
// obtained from a Cache). This bounds the number of WithdrawDurable calls to
// the provider's own live advertisement set rather than requiring a
// provider-keyed index in the transport.
func (p *Plane) WithdrawAllForProvider(ctx context.Context, providerID string, current []Advertisement) error {
	for _, ad := range current {
		if ad.ProviderID != providerID {
			continue
		}
		if err := p.Withdraw(ctx, providerID, ad.Kind, ad.Name); err != nil {
			return err
		}
	}
	return nil
}
