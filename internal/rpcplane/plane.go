package rpcplane

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/genesis-run/genesis/internal/generrors"
	"github.com/genesis-run/genesis/internal/ids"
	"github.com/genesis-run/genesis/internal/schema"
	"github.com/genesis-run/genesis/internal/telemetry"
	"github.com/genesis-run/genesis/internal/transport"
)

// Plane is one participant's handle onto the RPC Plane: it issues calls on
// behalf of ParticipantID and/or serves one or more service classes.
//
// The connection-pool resource model of spec.md §5 ("one correlation slot
// map per target... mutation must be serialized; slot allocation must be
// O(1) amortized") is realized as a single mutex-guarded map keyed by
// correlation_id; allocation/release are both O(1) map operations.
type Plane struct {
	ParticipantID string

	transport transport.Transport
	logger    telemetry.Logger

	mu      sync.Mutex
	pending map[string]chan Reply
	// replySubs tracks one Reply-topic subscription per service_class this
	// participant has ever called into, so repeated calls reuse the
	// subscription instead of resubscribing per call.
	replySubs map[string]func()
}

// New constructs a Plane for participantID.
func New(t transport.Transport, participantID string, logger telemetry.Logger) *Plane {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Plane{
		ParticipantID: participantID,
		transport:     t,
		logger:        logger,
		pending:       make(map[string]chan Reply),
		replySubs:     make(map[string]func()),
	}
}

// ensureReplySubscription lazily subscribes to the Reply topic for
// serviceClass and starts the demultiplexing goroutine that routes replies
// to their pending correlation slot, discarding anything unrecognized
// (already-timed-out correlations, replies for other participants).
func (p *Plane) ensureReplySubscription(ctx context.Context, serviceClass string) error {
	p.mu.Lock()
	if _, ok := p.replySubs[serviceClass]; ok {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	sub, err := p.transport.SubscribeVolatile(ctx, transport.RPCReplyTopic(serviceClass), nil)
	if err != nil {
		return generrors.Wrap(generrors.KindTransportUnavailable, "subscribe rpc reply topic", err)
	}

	p.mu.Lock()
	if _, ok := p.replySubs[serviceClass]; ok {
		// Lost the race; drop the duplicate subscription.
		p.mu.Unlock()
		sub.Close()
		return nil
	}
	p.replySubs[serviceClass] = sub.Close
	p.mu.Unlock()

	go func() {
		for raw := range sub.Messages {
			var reply Reply
			if err := json.Unmarshal(raw, &reply); err != nil {
				continue
			}
			p.mu.Lock()
			ch, ok := p.pending[reply.CorrelationID]
			if ok {
				delete(p.pending, reply.CorrelationID)
			}
			p.mu.Unlock()
			if !ok {
				// Late reply for an already-released (timed out, or never
				// ours) correlation slot: discard per spec.md §4.3.
				continue
			}
			ch <- reply
		}
	}()
	return nil
}

// Call issues a Request to toParticipant on serviceClass and blocks until a
// Reply arrives or deadline elapses, whichever is first. A zero deadline
// returns Timeout immediately without emitting any RPC (spec.md §8
// boundary behavior). Retries, per spec.md §4.3, must mint a fresh
// correlation_id — callers that want a retry should call Call again rather
// than expecting this method to retry internally.
func (p *Plane) Call(ctx context.Context, serviceClass, toParticipant, operation string, arguments json.RawMessage, deadline time.Time, conversationID string) (Reply, error) {
	if deadline.IsZero() || !deadline.After(time.Now()) {
		return Reply{}, generrors.New(generrors.KindTimeout, "deadline already elapsed; no request emitted")
	}
	if err := schema.ValidateSize(arguments, schema.MaxRPCArgumentsBytes); err != nil {
		return Reply{}, err
	}

	if err := p.ensureReplySubscription(ctx, serviceClass); err != nil {
		return Reply{}, err
	}

	correlationID := ids.NewCorrelationID()
	slot := make(chan Reply, 1)
	p.mu.Lock()
	p.pending[correlationID] = slot
	p.mu.Unlock()

	release := func() {
		p.mu.Lock()
		delete(p.pending, correlationID)
		p.mu.Unlock()
	}

	req := Request{
		CorrelationID:  correlationID,
		From:           p.ParticipantID,
		ToParticipant:  toParticipant,
		ToServiceClass: serviceClass,
		Operation:      operation,
		Arguments:      arguments,
		DeadlineUnixNs: deadline.UnixNano(),
		ConversationID: conversationID,
	}
	raw, err := json.Marshal(req)
	if err != nil {
		release()
		return Reply{}, generrors.Wrap(generrors.KindSchemaViolation, "marshal request", err)
	}
	if err := p.transport.PublishVolatile(ctx, transport.RPCRequestTopic(serviceClass), raw); err != nil {
		release()
		return Reply{}, generrors.Wrap(generrors.KindTransportUnavailable, "publish request", err)
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case reply := <-slot:
		return reply, nil
	case <-timer.C:
		release()
		return Reply{}, generrors.Errorf(generrors.KindTimeout, "rpc %s/%s to %s timed out", serviceClass, operation, toParticipant)
	case <-ctx.Done():
		release()
		return Reply{}, generrors.Wrap(generrors.KindTimeout, "rpc call cancelled", ctx.Err())
	}
}

// Serve registers handler for every Request on serviceClass addressed to
// this participant (ToParticipant == p.ParticipantID) or to no participant
// in particular (empty ToParticipant). It returns a stop
// function that cancels the subscription. Serve is multi-producer,
// multi-consumer at the transport level: several participants may Serve the
// same service_class for load balancing, each seeing every request and
// discarding the ones not addressed to it.
func (p *Plane) Serve(ctx context.Context, serviceClass string, handler Handler) (stop func(), err error) {
	sub, err := p.transport.SubscribeVolatile(ctx, transport.RPCRequestTopic(serviceClass), nil)
	if err != nil {
		return nil, generrors.Wrap(generrors.KindTransportUnavailable, "subscribe rpc request topic", err)
	}

	go func() {
		for raw := range sub.Messages {
			var req Request
			if err := json.Unmarshal(raw, &req); err != nil {
				p.logger.Warn(ctx, "discarding malformed rpc request", "error", err)
				continue
			}
			if req.ToParticipant != "" && req.ToParticipant != p.ParticipantID {
				continue
			}
			deadline := time.Unix(0, req.DeadlineUnixNs)
			if !deadline.After(time.Now()) {
				// Deadline already elapsed by the time we dequeued the
				// request: best-effort advisory skip, no reply needed
				// since the caller has already given up.
				continue
			}
			go p.handleOne(ctx, serviceClass, deadline, req, handler)
		}
	}()

	return sub.Close, nil
}

func (p *Plane) handleOne(ctx context.Context, serviceClass string, deadline time.Time, req Request, handler Handler) {
	hctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	reply := handler(hctx, req)
	reply.CorrelationID = req.CorrelationID
	if reply.From == "" {
		reply.From = p.ParticipantID
	}
	if reply.ConversationID == "" {
		reply.ConversationID = req.ConversationID
	}

	raw, err := json.Marshal(reply)
	if err != nil {
		p.logger.Error(ctx, "marshal reply failed", "error", err, "correlation_id", req.CorrelationID)
		return
	}
	if err := p.transport.PublishVolatile(ctx, transport.RPCReplyTopic(serviceClass), raw); err != nil {
		p.logger.Error(ctx, "publish reply failed", "error", err, "correlation_id", req.CorrelationID)
	}
}

// Close releases every reply subscription held by this Plane.
func (p *Plane) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, closeFn := range p.replySubs {
		closeFn()
	}
	p.replySubs = make(map[string]func())
}
