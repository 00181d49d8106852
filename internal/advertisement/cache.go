package advertisement

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/genesis-run/genesis/internal/generrors"
	"github.com/genesis-run/genesis/internal/telemetry"
	"github.com/genesis-run/genesis/internal/transport"
)

// Cache is a participant's local projection of the current Advertisement
// set (spec.md glossary: "capability cache"). It has many readers
// (Orchestrator, Classifier, Monitoring) and a single writer goroutine
// consuming the durable subscription. The advertisement map is guarded by a
// sync.RWMutex, and readers receive copied slices rather than references
// into the map.
type Cache struct {
	logger telemetry.Logger

	mu       sync.RWMutex
	byID     map[string]Advertisement
	sub      *transport.DurableSubscription
	onUpdate func(Advertisement, bool)
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLogger attaches a Logger used to report malformed advertisements
// observed on the wire.
func WithLogger(l telemetry.Logger) CacheOption {
	return func(c *Cache) { c.logger = l }
}

// WithUpdateHook registers a callback invoked for every observed update
// (ad, deleted). Used by the Monitoring Plane to mirror advertisement
// churn into graph/Event updates without a second subscription.
func WithUpdateHook(fn func(Advertisement, bool)) CacheOption {
	return func(c *Cache) { c.onUpdate = fn }
}

// NewCache subscribes to the Advertisement topic, optionally filtered to a
// single Kind, and starts the background goroutine that keeps the local
// projection current. Per spec.md §4.2, the snapshot is available
// synchronously before NewCache returns: a caller proceeding past NewCache
// has already observed the durable set as of subscribe time.
func NewCache(ctx context.Context, t transport.Transport, kindFilter *Kind, opts ...CacheOption) (*Cache, error) {
	c := &Cache{byID: make(map[string]Advertisement), logger: telemetry.NewNoopLogger()}
	for _, opt := range opts {
		opt(c)
	}

	var filter transport.Filter
	if kindFilter != nil {
		want := *kindFilter
		filter = func(raw []byte) bool {
			var peek struct {
				Kind Kind `json:"kind"`
			}
			if err := json.Unmarshal(raw, &peek); err != nil {
				return false
			}
			return peek.Kind == want
		}
	}

	sub, err := t.SubscribeDurable(ctx, transport.AdvertisementTopic, filter)
	if err != nil {
		return nil, generrors.Wrap(generrors.KindTransportUnavailable, "subscribe advertisement plane", err)
	}
	c.sub = sub

	for _, raw := range sub.Snapshot {
		var ad Advertisement
		if err := json.Unmarshal(raw, &ad); err != nil {
			c.logger.Warn(ctx, "discarding malformed advertisement", "error", err)
			continue
		}
		c.byID[ad.AdvertisementID] = ad
	}

	go c.consume(ctx)
	return c, nil
}

func (c *Cache) consume(ctx context.Context) {
	for update := range c.sub.Updates {
		if update.Deleted {
			c.mu.Lock()
			ad, ok := c.byID[update.Key]
			delete(c.byID, update.Key)
			c.mu.Unlock()
			if ok && c.onUpdate != nil {
				c.onUpdate(ad, true)
			}
			continue
		}
		var ad Advertisement
		if err := json.Unmarshal(update.Value, &ad); err != nil {
			c.logger.Warn(ctx, "discarding malformed advertisement update", "error", err)
			continue
		}
		c.mu.Lock()
		c.byID[ad.AdvertisementID] = ad
		c.mu.Unlock()
		if c.onUpdate != nil {
			c.onUpdate(ad, false)
		}
	}
}

// Close releases the underlying subscription.
func (c *Cache) Close() {
	if c.sub != nil {
		c.sub.Close()
	}
}

// Snapshot returns a copied slice of every advertisement currently
// known, regardless of provider.
func (c *Cache) Snapshot() []Advertisement {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Advertisement, 0, len(c.byID))
	for _, ad := range c.byID {
		out = append(out, ad)
	}
	return out
}

// ByKind returns every advertisement of the given kind.
func (c *Cache) ByKind(kind Kind) []Advertisement {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Advertisement
	for _, ad := range c.byID {
		if ad.Kind == kind {
			out = append(out, ad)
		}
	}
	return out
}

// ByName returns every advertisement of the given kind and name, across all
// providers — used to resolve the "two services advertising the same
// FUNCTION name" tie-break scenario of spec.md §8.
func (c *Cache) ByName(kind Kind, name string) []Advertisement {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Advertisement
	for _, ad := range c.byID {
		if ad.Kind == kind && ad.Name == name {
			out = append(out, ad)
		}
	}
	return out
}

// ForProvider returns every advertisement owned by providerID.
func (c *Cache) ForProvider(providerID string) []Advertisement {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Advertisement
	for _, ad := range c.byID {
		if ad.ProviderID == providerID {
			out = append(out, ad)
		}
	}
	return out
}
