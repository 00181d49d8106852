package transport

import (
	"context"
	"sync"
)

// InMemory is a dependency-free Transport implementation, grounded on the
// teacher's engine/inmem substrate: tests and single-process demos get the
// exact same interface as the Redis-backed production transport, without
// requiring a live broker. It is NOT suitable for multi-process deployments
// since state lives only in process memory.
type InMemory struct {
	mu sync.Mutex

	durable map[string]map[string][]byte // topic -> key -> value
	dsubs   map[string][]*durableSub

	vsubs map[string][]*volatileSub

	closed bool
}

type durableSub struct {
	filter Filter
	ch     chan DurableUpdate
}

type volatileSub struct {
	filter Filter
	ch     chan []byte
}

// NewInMemory constructs an empty in-memory Transport.
func NewInMemory() *InMemory {
	return &InMemory{
		durable: make(map[string]map[string][]byte),
		dsubs:   make(map[string][]*durableSub),
		vsubs:   make(map[string][]*volatileSub),
	}
}

// PublishDurable implements Transport.
func (t *InMemory) PublishDurable(_ context.Context, topic, key string, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	keys, ok := t.durable[topic]
	if !ok {
		keys = make(map[string][]byte)
		t.durable[topic] = keys
	}
	cp := append([]byte(nil), value...)
	keys[key] = cp
	update := DurableUpdate{Key: key, Value: cp}
	for _, sub := range t.dsubs[topic] {
		if sub.filter != nil && !sub.filter(cp) {
			continue
		}
		select {
		case sub.ch <- update:
		default:
		}
	}
	return nil
}

// WithdrawDurable implements Transport.
func (t *InMemory) WithdrawDurable(_ context.Context, topic, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	var last []byte
	if keys, ok := t.durable[topic]; ok {
		last = keys[key]
		delete(keys, key)
	}
	update := DurableUpdate{Key: key, Deleted: true}
	for _, sub := range t.dsubs[topic] {
		if sub.filter != nil && last != nil && !sub.filter(last) {
			continue
		}
		select {
		case sub.ch <- update:
		default:
		}
	}
	return nil
}

// SubscribeDurable implements Transport.
func (t *InMemory) SubscribeDurable(_ context.Context, topic string, filter Filter) (*DurableSubscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	snapshot := make(map[string][]byte)
	for k, v := range t.durable[topic] {
		if filter != nil && !filter(v) {
			continue
		}
		snapshot[k] = append([]byte(nil), v...)
	}
	sub := &durableSub{filter: filter, ch: make(chan DurableUpdate, 256)}
	t.dsubs[topic] = append(t.dsubs[topic], sub)

	closeOnce := sync.Once{}
	closeFn := func() {
		closeOnce.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			subs := t.dsubs[topic]
			for i, s := range subs {
				if s == sub {
					t.dsubs[topic] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			close(sub.ch)
		})
	}
	return &DurableSubscription{Snapshot: snapshot, Updates: sub.ch, Close: closeFn}, nil
}

// PublishVolatile implements Transport.
func (t *InMemory) PublishVolatile(_ context.Context, topic string, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	cp := append([]byte(nil), value...)
	for _, sub := range t.vsubs[topic] {
		if sub.filter != nil && !sub.filter(cp) {
			continue
		}
		select {
		case sub.ch <- cp:
		default:
		}
	}
	return nil
}

// SubscribeVolatile implements Transport.
func (t *InMemory) SubscribeVolatile(_ context.Context, topic string, filter Filter) (*VolatileSubscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	sub := &volatileSub{filter: filter, ch: make(chan []byte, 256)}
	t.vsubs[topic] = append(t.vsubs[topic], sub)

	closeOnce := sync.Once{}
	closeFn := func() {
		closeOnce.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			subs := t.vsubs[topic]
			for i, s := range subs {
				if s == sub {
					t.vsubs[topic] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			close(sub.ch)
		})
	}
	return &VolatileSubscription{Messages: sub.ch, Close: closeFn}, nil
}

// Close implements Transport.
func (t *InMemory) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	for _, subs := range t.dsubs {
		for _, s := range subs {
			close(s.ch)
		}
	}
	for _, subs := range t.vsubs {
		for _, s := range subs {
			close(s.ch)
		}
	}
	t.dsubs = nil
	t.vsubs = nil
	return nil
}
