package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a multi-process Transport backed by github.com/redis/go-redis/v9.
// Durable topics are modeled as a Redis hash (HSET per key, last-value-wins)
// plus a companion pub/sub channel that announces updates so subscribers
// don't have to poll. Volatile topics are modeled as Redis Streams (XADD),
// read with blocking XREAD calls, matching the append-only fire-and-forget
// semantics spec.md §4.2/§4.6 require. This reimplements the shape of the
// teacher's goa.design/pulse client (rmap.Map for durable state, streams for
// events) directly over go-redis, since pulse itself is an internal
// dependency of the teacher's organization (see DESIGN.md).
type Redis struct {
	client *redis.Client

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
}

// NewRedis constructs a Redis transport using client.
func NewRedis(client *redis.Client) *Redis {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Redis{client: client, cancel: cancel}
	_ = ctx
	return r
}

func durableHashKey(topic string) string   { return "genesis:durable:" + topic }
func durableNotifyKey(topic string) string { return "genesis:durable:notify:" + topic }

type durableNotification struct {
	Key     string `json:"key"`
	Value   string `json:"value"` // base64
	Deleted bool   `json:"deleted"`
}

// PublishDurable implements Transport.
func (r *Redis) PublishDurable(ctx context.Context, topic, key string, value []byte) error {
	if err := r.client.HSet(ctx, durableHashKey(topic), key, value).Err(); err != nil {
		return fmt.Errorf("hset durable %s/%s: %w", topic, key, err)
	}
	note := durableNotification{Key: key, Value: base64.StdEncoding.EncodeToString(value)}
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := r.client.Publish(ctx, durableNotifyKey(topic), payload).Err(); err != nil {
		return fmt.Errorf("publish durable notification %s: %w", topic, err)
	}
	return nil
}

// WithdrawDurable implements Transport.
func (r *Redis) WithdrawDurable(ctx context.Context, topic, key string) error {
	if err := r.client.HDel(ctx, durableHashKey(topic), key).Err(); err != nil {
		return fmt.Errorf("hdel durable %s/%s: %w", topic, key, err)
	}
	note := durableNotification{Key: key, Deleted: true}
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return r.client.Publish(ctx, durableNotifyKey(topic), payload).Err()
}

// SubscribeDurable implements Transport. It subscribes to the notification
// channel first, then takes an HGETALL snapshot, so late joiners always
// observe the full current set before any subsequent delta (spec.md §4.2).
func (r *Redis) SubscribeDurable(ctx context.Context, topic string, filter Filter) (*DurableSubscription, error) {
	pubsub := r.client.Subscribe(ctx, durableNotifyKey(topic))
	// Subscribe before snapshotting so no update landing between the two
	// calls is lost: redis pub/sub has no replay, so the race would
	// otherwise be unrecoverable.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe durable %s: %w", topic, err)
	}

	raw, err := r.client.HGetAll(ctx, durableHashKey(topic)).Result()
	if err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("hgetall durable %s: %w", topic, err)
	}
	snapshot := make(map[string][]byte, len(raw))
	for k, v := range raw {
		val := []byte(v)
		if filter != nil && !filter(val) {
			continue
		}
		snapshot[k] = val
	}

	out := make(chan DurableUpdate, 256)
	done := make(chan struct{})
	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var note durableNotification
				if err := json.Unmarshal([]byte(msg.Payload), &note); err != nil {
					continue
				}
				var value []byte
				if !note.Deleted {
					value, err = base64.StdEncoding.DecodeString(note.Value)
					if err != nil {
						continue
					}
					if filter != nil && !filter(value) {
						continue
					}
				}
				select {
				case out <- DurableUpdate{Key: note.Key, Value: value, Deleted: note.Deleted}:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()

	closeOnce := sync.Once{}
	closeFn := func() {
		closeOnce.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}
	return &DurableSubscription{Snapshot: snapshot, Updates: out, Close: closeFn}, nil
}

// PublishVolatile implements Transport, appending to a Redis Stream.
func (r *Redis) PublishVolatile(ctx context.Context, topic string, value []byte) error {
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]any{"v": value},
	}).Err()
}

// SubscribeVolatile implements Transport by polling XREAD from "$" (only
// entries appended after subscription), matching the fire-and-forget
// semantics of a volatile topic: no history for late joiners.
func (r *Redis) SubscribeVolatile(ctx context.Context, topic string, filter Filter) (*VolatileSubscription, error) {
	out := make(chan []byte, 256)
	done := make(chan struct{})
	go func() {
		defer close(out)
		lastID := "$"
		for {
			select {
			case <-done:
				return
			default:
			}
			res, err := r.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{topic, lastID},
				Block:   2 * time.Second,
				Count:   64,
			}).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				select {
				case <-done:
					return
				case <-ctx.Done():
					return
				default:
					time.Sleep(100 * time.Millisecond)
					continue
				}
			}
			for _, stream := range res {
				for _, entry := range stream.Messages {
					lastID = entry.ID
					raw, ok := entry.Values["v"]
					if !ok {
						continue
					}
					value := []byte(fmt.Sprintf("%v", raw))
					if filter != nil && !filter(value) {
						continue
					}
					select {
					case out <- value:
					case <-done:
						return
					}
				}
			}
		}
	}()

	closeOnce := sync.Once{}
	closeFn := func() { closeOnce.Do(func() { close(done) }) }
	return &VolatileSubscription{Messages: out, Close: closeFn}, nil
}

// Close implements Transport.
func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.cancel()
	return r.client.Close()
}
