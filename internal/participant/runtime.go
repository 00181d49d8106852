// Package participant implements the Participant Runtime of spec.md §4.1:
// the single state machine every Genesis process (interface, agent, or
// service) drives through JOINING, DISCOVERING, READY/BUSY, DEGRADED, and
// terminal OFFLINE.
package participant

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/genesis-run/genesis/internal/advertisement"
	"github.com/genesis-run/genesis/internal/generrors"
	"github.com/genesis-run/genesis/internal/ids"
	"github.com/genesis-run/genesis/internal/monitoring"
	"github.com/genesis-run/genesis/internal/telemetry"
	"github.com/genesis-run/genesis/internal/transport"
)

// Runtime is one participant's handle on its own lifecycle. All public
// methods are thread-safe, mirroring the teacher Runtime's
// single-mutex-guarded-struct pattern.
type Runtime struct {
	ParticipantID string
	Kind          Kind
	DisplayName   string

	transport transport.Transport
	ads       *advertisement.Plane
	graph     *monitoring.Plane
	logger    telemetry.Logger
	metrics   telemetry.Metrics

	mu          sync.Mutex
	state       State
	myAds       map[string]advertisement.Advertisement
	consecutiveTransportFailures int
}

// Options configures a Runtime. Noop telemetry is substituted for a nil
// Logger/Metrics, mirroring the teacher's Options pattern.
type Options struct {
	Transport   transport.Transport
	Kind        Kind
	DisplayName string
	Logger      telemetry.Logger
	Metrics     telemetry.Metrics
}

// New constructs a Runtime in state JOINING. It does not publish anything
// until Start is called.
func New(opts Options) *Runtime {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Runtime{
		ParticipantID: ids.NewParticipantID(),
		Kind:          opts.Kind,
		DisplayName:   opts.DisplayName,
		transport:     opts.Transport,
		ads:           advertisement.New(opts.Transport),
		graph:         monitoring.New(opts.Transport),
		logger:        logger,
		metrics:       metrics,
		state:         StateJoining,
		myAds:         make(map[string]advertisement.Advertisement),
	}
}

// State returns the current state.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start publishes the participant's identity as a NODE and moves
// JOINING -> DISCOVERING, then immediately READY for INTERFACE participants
// (who have nothing to advertise and so never await an advertisement ack).
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.transitionTo(ctx, StateDiscovering, "transport ready, subscribed to advertisement plane"); err != nil {
		return err
	}
	if r.Kind == KindInterface {
		return r.transitionTo(ctx, StateReady, "interface participant requires no advertisement ack")
	}
	return nil
}

// Advertise publishes an advertisement on behalf of this participant. The
// first successful Advertise for a SERVICE/AGENT participant moves
// DISCOVERING -> READY (spec.md §4.1: "after at least one advertisement has
// been acknowledged by the durable store").
func (r *Runtime) Advertise(ctx context.Context, kind advertisement.Kind, name, serviceClass string, payload any, schemaJSON []byte) (advertisement.Advertisement, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return advertisement.Advertisement{}, generrors.Wrap(generrors.KindSchemaViolation, "marshal advertisement payload", err)
	}
	ad, err := r.ads.Publish(ctx, advertisement.Advertisement{
		Kind:         kind,
		Name:         name,
		ProviderID:   r.ParticipantID,
		ServiceClass: serviceClass,
		Payload:      payloadJSON,
	}, schemaJSON)
	if err != nil {
		return advertisement.Advertisement{}, err
	}

	r.mu.Lock()
	r.myAds[ad.AdvertisementID] = ad
	needsReadyTransition := r.state == StateDiscovering
	r.mu.Unlock()

	if needsReadyTransition {
		if err := r.transitionTo(ctx, StateReady, "first advertisement acknowledged"); err != nil {
			return ad, err
		}
	}
	return ad, nil
}

// Withdraw removes one of this participant's own advertisements.
func (r *Runtime) Withdraw(ctx context.Context, advertisementID string) error {
	r.mu.Lock()
	ad, ok := r.myAds[advertisementID]
	if ok {
		delete(r.myAds, advertisementID)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return r.ads.Withdraw(ctx, ad.ProviderID, ad.Kind, ad.Name)
}

// EnterBusy transitions READY -> BUSY on entry to request handling.
func (r *Runtime) EnterBusy(ctx context.Context) error {
	return r.transitionTo(ctx, StateBusy, "request handling started")
}

// ExitBusy transitions BUSY -> READY on exit from request handling.
func (r *Runtime) ExitBusy(ctx context.Context) error {
	return r.transitionTo(ctx, StateReady, "request handling finished")
}

// ReportTransportFailure records a transport failure; after three
// consecutive failures the runtime degrades per spec.md §4.1/§7. A
// subsequent successful call resets the counter.
func (r *Runtime) ReportTransportFailure(ctx context.Context) {
	r.mu.Lock()
	r.consecutiveTransportFailures++
	shouldDegrade := r.consecutiveTransportFailures >= 3 && r.state != StateDegraded && r.state != StateOffline
	r.mu.Unlock()
	if shouldDegrade {
		_ = r.transitionTo(ctx, StateDegraded, "repeated transport failures")
	}
}

// ReportTransportSuccess resets the consecutive-failure counter.
func (r *Runtime) ReportTransportSuccess() {
	r.mu.Lock()
	r.consecutiveTransportFailures = 0
	r.mu.Unlock()
}

// Degrade forces a transition to DEGRADED, e.g. on declared upstream
// unavailability (a circuit breaker tripping).
func (r *Runtime) Degrade(ctx context.Context, reason string) error {
	return r.transitionTo(ctx, StateDegraded, reason)
}

// Close transitions to terminal OFFLINE, publishes the final LIFECYCLE
// event and NODE update, and withdraws every advertisement this
// participant owns. Once Close returns, this Runtime may not be reused.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateOffline {
		r.mu.Unlock()
		return nil
	}
	ads := make([]advertisement.Advertisement, 0, len(r.myAds))
	for _, ad := range r.myAds {
		ads = append(ads, ad)
	}
	r.mu.Unlock()

	if err := r.transitionTo(ctx, StateOffline, "clean shutdown"); err != nil {
		return err
	}
	return r.ads.WithdrawAllForProvider(ctx, r.ParticipantID, ads)
}

// transitionTo is the single funnel for state changes: it checks and updates
// state while holding the mutex that guards it, then, after releasing the
// mutex, publishes one LIFECYCLE event and one NODE topology update.
func (r *Runtime) transitionTo(ctx context.Context, to State, reason string) error {
	r.mu.Lock()
	from := r.state
	if err := checkTransition(from, to); err != nil {
		r.mu.Unlock()
		return err
	}
	r.state = to
	r.mu.Unlock()

	r.logger.Info(ctx, "participant state transition", "participant_id", r.ParticipantID, "from", from, "to", to, "reason", reason)
	r.metrics.IncCounter("genesis.participant.transition", 1, "from", string(from), "to", string(to))

	payload, _ := json.Marshal(map[string]string{"reason": reason, "from": string(from)})
	if err := r.graph.PublishEvent(ctx, monitoring.Event{
		EventID:     ids.NewEventID(),
		Kind:        monitoring.EventKindLifecycle,
		ComponentID: r.ParticipantID,
		EventType:   "state_transition",
		Severity:    severityFor(to),
		Message:     reason,
		Payload:     payload,
		TimestampNs: time.Now().UnixNano(),
	}); err != nil {
		r.logger.Warn(ctx, "failed to publish lifecycle event", "error", err)
	}

	metaPayload, _ := json.Marshal(map[string]string{"display_name": r.DisplayName})
	if err := r.graph.PublishNode(ctx, monitoring.Node{
		ElementID: ids.NodeElementID(r.ParticipantID),
		Type:      string(r.Kind),
		State:     string(to),
		Metadata:  metaPayload,
	}); err != nil {
		r.logger.Warn(ctx, "failed to publish node update", "error", err)
	}
	return nil
}

func severityFor(s State) string {
	switch s {
	case StateDegraded:
		return "WARN"
	case StateOffline:
		return "INFO"
	default:
		return "INFO"
	}
}
