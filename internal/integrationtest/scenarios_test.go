// Package integrationtest exercises the end-to-end scenarios of spec.md §8
// (S1-S6) against the in-memory transport, grounded on the teacher's
// engine/inmem + integration_tests/ convention of a dependency-free
// substrate for deterministic tests.
package integrationtest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/genesis-run/genesis/internal/advertisement"
	"github.com/genesis-run/genesis/internal/classifier"
	"github.com/genesis-run/genesis/internal/generrors"
	"github.com/genesis-run/genesis/internal/llmadapter"
	"github.com/genesis-run/genesis/internal/monitoring"
	"github.com/genesis-run/genesis/internal/orchestrator"
	"github.com/genesis-run/genesis/internal/participant"
	"github.com/genesis-run/genesis/internal/rpcplane"
	"github.com/genesis-run/genesis/internal/transport"
)

// startCalculatorService brings up a KindService participant that
// advertises "add" as a FUNCTION with capabilities ["math", "idempotent"]
// and serves it over serviceClass "calc". handle computes the sum and lets
// scenarios inject a delay (S3); every reply has status OK.
func startCalculatorService(t *testing.T, ctx context.Context, tr transport.Transport, serviceClass string, handle func(a, b float64) (float64, time.Duration)) (*participant.Runtime, func()) {
	t.Helper()

	rt := participant.New(participant.Options{Transport: tr, Kind: participant.KindService, DisplayName: "calculator"})
	require.NoError(t, rt.Start(ctx))

	_, err := rt.Advertise(ctx, advertisement.KindFunction, "add", serviceClass, advertisement.FunctionPayload{
		ServiceName:  serviceClass,
		Capabilities: []string{"math", "idempotent"},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, participant.StateReady, rt.State())

	plane := rpcplane.New(tr, rt.ParticipantID, nil)
	stop, err := plane.Serve(ctx, serviceClass, func(ctx context.Context, req rpcplane.Request) rpcplane.Reply {
		var args struct{ A, B float64 }
		_ = json.Unmarshal(req.Arguments, &args)
		sum, delay := handle(args.A, args.B)
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
		}
		result, _ := json.Marshal(map[string]float64{"sum": sum})
		return rpcplane.Reply{CorrelationID: req.CorrelationID, From: rt.ParticipantID, Status: rpcplane.StatusOK, Result: result}
	})
	require.NoError(t, err)

	return rt, stop
}

func newInterfaceOrchestrator(t *testing.T, ctx context.Context, tr transport.Transport, llm llmadapter.Adapter, monitor *monitoring.Plane) (*participant.Runtime, *advertisement.Cache, *orchestrator.Orchestrator) {
	t.Helper()

	rt := participant.New(participant.Options{Transport: tr, Kind: participant.KindInterface, DisplayName: "interface"})
	require.NoError(t, rt.Start(ctx))

	ads, err := advertisement.NewCache(ctx, tr, nil)
	require.NoError(t, err)

	orc := orchestrator.New(orchestrator.Options{
		ParticipantID: rt.ParticipantID,
		LLM:           llm,
		Classifier:    classifier.New(llm, nil, false),
		RPC:           rpcplane.New(tr, rt.ParticipantID, nil),
		Ads:           ads,
		Monitor:       monitor,
	})
	return rt, ads, orc
}

// S1: Function call — interface asks "2+3", routed through an agent-less
// direct FUNCTION call, and the stub LLM's tool call resolves to 5.
func TestS1FunctionCall(t *testing.T) {
	ctx := context.Background()
	tr := transport.NewInMemory()

	_, stopService := startCalculatorService(t, ctx, tr, "calc", func(a, b float64) (float64, time.Duration) { return a + b, 0 })
	defer stopService()

	args, _ := json.Marshal(map[string]float64{"A": 2, "B": 3})
	stub := llmadapter.NewStub(
		llmadapter.Response{ToolCalls: []llmadapter.ToolCall{{ID: "1", Name: "add", Arguments: args}}},
		llmadapter.Response{Text: `the answer is {"sum":5}`},
	)

	_, ads, orc := newInterfaceOrchestrator(t, ctx, tr, stub, nil)
	defer ads.Close()

	out, err := orc.Handle(ctx, "conv-s1", "2+3")
	require.NoError(t, err)
	require.Contains(t, out, "5")
}

// S3: Timeout — the service replies slower than the caller's deadline, so
// the caller must see a Timeout and the late reply must be discarded
// rather than corrupting a later call.
func TestS3Timeout(t *testing.T) {
	ctx := context.Background()
	tr := transport.NewInMemory()

	_, stopService := startCalculatorService(t, ctx, tr, "calc", func(a, b float64) (float64, time.Duration) {
		return a + b, 150 * time.Millisecond
	})
	defer stopService()

	rt := participant.New(participant.Options{Transport: tr, Kind: participant.KindInterface})
	require.NoError(t, rt.Start(ctx))

	ads, err := advertisement.NewCache(ctx, tr, nil)
	require.NoError(t, err)
	defer ads.Close()

	target := ads.ByName(advertisement.KindFunction, "add")
	require.Len(t, target, 1)

	plane := rpcplane.New(tr, rt.ParticipantID, nil)
	args, _ := json.Marshal(map[string]float64{"A": 2, "B": 3})
	_, err = plane.Call(ctx, "calc", target[0].ProviderID, "add", args, time.Now().Add(20*time.Millisecond), "")
	require.Error(t, err)

	var gerr *generrors.Error
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, generrors.KindTimeout, gerr.Kind)
}

// S4: Discovery of a new provider — an agent's capability cache observes a
// FUNCTION advertised after the cache was already subscribed, without a
// restart.
func TestS4DiscoveryOfNewProvider(t *testing.T) {
	ctx := context.Background()
	tr := transport.NewInMemory()

	ads, err := advertisement.NewCache(ctx, tr, nil)
	require.NoError(t, err)
	defer ads.Close()

	require.Empty(t, ads.ByName(advertisement.KindFunction, "summarize"))

	rt := participant.New(participant.Options{Transport: tr, Kind: participant.KindService, DisplayName: "text-processor"})
	require.NoError(t, rt.Start(ctx))
	_, err = rt.Advertise(ctx, advertisement.KindFunction, "summarize", "textproc", advertisement.FunctionPayload{ServiceName: "textproc"}, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(ads.ByName(advertisement.KindFunction, "summarize")) == 1
	}, time.Second, time.Millisecond)
}

// startAgentParticipant brings up a KindAgent participant that advertises
// itself as AGENT under serviceClass, and serves RPC calls by decoding the
// {"query": ...} envelope (cmd/genesis/agent.go's convention) into its own
// Orchestrator — letting an agent itself delegate to further agents-as-tools.
func startAgentParticipant(t *testing.T, ctx context.Context, tr transport.Transport, name, serviceClass string, monitor *monitoring.Plane, llm llmadapter.Adapter, specializations []string) (*participant.Runtime, *advertisement.Cache, func()) {
	t.Helper()

	rt := participant.New(participant.Options{Transport: tr, Kind: participant.KindAgent, DisplayName: name})
	require.NoError(t, rt.Start(ctx))

	ads, err := advertisement.NewCache(ctx, tr, nil)
	require.NoError(t, err)

	orc := orchestrator.New(orchestrator.Options{
		ParticipantID: rt.ParticipantID,
		LLM:           llm,
		Classifier:    classifier.New(llm, nil, false),
		RPC:           rpcplane.New(tr, rt.ParticipantID, nil),
		Ads:           ads,
		Monitor:       monitor,
	})

	_, err = rt.Advertise(ctx, advertisement.KindAgent, name, serviceClass, advertisement.AgentPayload{
		Specializations: specializations,
	}, nil)
	require.NoError(t, err)

	plane := rpcplane.New(tr, rt.ParticipantID, nil)
	stop, err := plane.Serve(ctx, serviceClass, func(ctx context.Context, req rpcplane.Request) rpcplane.Reply {
		var args struct {
			Query string `json:"query"`
		}
		_ = json.Unmarshal(req.Arguments, &args)
		text, err := orc.Handle(ctx, req.ConversationID, args.Query)
		if err != nil {
			return rpcplane.Reply{CorrelationID: req.CorrelationID, From: rt.ParticipantID, Status: rpcplane.StatusError, Error: err.Error()}
		}
		result, _ := json.Marshal(map[string]string{"text": text})
		return rpcplane.Reply{CorrelationID: req.CorrelationID, From: rt.ParticipantID, Status: rpcplane.StatusOK, Result: result, ConversationID: req.ConversationID}
	})
	require.NoError(t, err)

	return rt, ads, func() { stop(); ads.Close() }
}

// delegationChain wires an Interface -> "Primary" agent -> "WeatherAgent"
// agent-as-tool chain over one transport, for S2 and S5.
type delegationChain struct {
	tr      transport.Transport
	monitor *monitoring.Plane
	svc     *monitoring.Service
	ifaceRT *participant.Runtime
	orc     *orchestrator.Orchestrator
	stop    func()
}

func setupDelegationChain(t *testing.T, ctx context.Context) *delegationChain {
	t.Helper()
	tr := transport.NewInMemory()

	monitor := monitoring.New(tr)
	svc, err := monitoring.NewService(ctx, tr)
	require.NoError(t, err)

	weatherLLM := llmadapter.NewStub(llmadapter.Response{Text: `sunny and 72F`})
	_, weatherAds, stopWeather := startAgentParticipant(t, ctx, tr, "WeatherAgent", "weather", monitor, weatherLLM, nil)

	primaryArgs, _ := json.Marshal(map[string]string{"message": "what's the weather in sf?", "location": "sf"})
	primaryLLM := llmadapter.NewStub(
		llmadapter.Response{ToolCalls: []llmadapter.ToolCall{{ID: "1", Name: "WeatherAgent", Arguments: primaryArgs}}},
		llmadapter.Response{Text: "Primary relays: sunny and 72F"},
	)
	_, primaryAds, stopPrimary := startAgentParticipant(t, ctx, tr, "Primary", "primary", monitor, primaryLLM, []string{"location"})

	interfaceArgs, _ := json.Marshal(map[string]string{"message": "what's the weather in sf?"})
	ifaceLLM := llmadapter.NewStub(
		llmadapter.Response{ToolCalls: []llmadapter.ToolCall{{ID: "1", Name: "Primary", Arguments: interfaceArgs}}},
		llmadapter.Response{Text: "final: sunny and 72F"},
	)
	ifaceRT, ifaceAds, orc := newInterfaceOrchestrator(t, ctx, tr, ifaceLLM, monitor)

	return &delegationChain{
		tr: tr, monitor: monitor, svc: svc, ifaceRT: ifaceRT, orc: orc,
		stop: func() {
			ifaceAds.Close()
			stopPrimary()
			stopWeather()
			weatherAds.Close()
			primaryAds.Close()
			svc.Close()
		},
	}
}

// S2: Agent-as-tool delegation — an Interface dispatches to the "Primary"
// agent as a tool; Primary itself delegates to "WeatherAgent" as a tool.
// Exercises the {"message": ...} -> {"query": ...} RPC envelope translation
// across two hops.
func TestS2AgentAsToolDelegation(t *testing.T) {
	ctx := context.Background()
	chain := setupDelegationChain(t, ctx)
	defer chain.stop()

	out, err := chain.orc.Handle(ctx, "conv-s2", "what's the weather in sf?")
	require.NoError(t, err)
	require.Contains(t, out, "sunny")
}

// S5: Chain visibility — built on S2's delegation chain, the durable
// GraphTopology must show a DELEGATES_TO edge Interface->Primary and
// Primary->WeatherAgent once the chain has run.
func TestS5ChainVisibility(t *testing.T) {
	ctx := context.Background()
	chain := setupDelegationChain(t, ctx)
	defer chain.stop()

	_, err := chain.orc.Handle(ctx, "conv-s5", "what's the weather in sf?")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, edges, err := chain.svc.Snapshot()
		require.NoError(t, err)

		var sawInterfaceToPrimary, sawPrimaryToWeather bool
		for _, e := range edges {
			if e.Type != "DELEGATES_TO" {
				continue
			}
			if e.Source == chain.ifaceRT.ParticipantID {
				sawInterfaceToPrimary = true
			} else {
				sawPrimaryToWeather = true
			}
		}
		return sawInterfaceToPrimary && sawPrimaryToWeather
	}, time.Second, time.Millisecond)
}

// S6: Provider goes OFFLINE — after a clean shutdown, the NODE topology
// reflects OFFLINE and a subsequent call finds no capable provider.
func TestS6ProviderGoesOffline(t *testing.T) {
	ctx := context.Background()
	tr := transport.NewInMemory()

	monitor := monitoring.New(tr)
	svc, err := monitoring.NewService(ctx, tr)
	require.NoError(t, err)
	defer svc.Close()

	calcRuntime := participant.New(participant.Options{Transport: tr, Kind: participant.KindService, DisplayName: "calculator", Logger: nil})
	require.NoError(t, calcRuntime.Start(ctx))
	_ = monitor

	_, err = calcRuntime.Advertise(ctx, advertisement.KindFunction, "add", "calc", advertisement.FunctionPayload{ServiceName: "calc"}, nil)
	require.NoError(t, err)

	require.NoError(t, calcRuntime.Close(ctx))

	require.Eventually(t, func() bool {
		nodes, _, err := svc.Snapshot()
		require.NoError(t, err)
		for _, n := range nodes {
			if n.ElementID == "node:"+calcRuntime.ParticipantID {
				return n.State == "OFFLINE"
			}
		}
		return false
	}, time.Second, time.Millisecond)

	ads, err := advertisement.NewCache(ctx, tr, nil)
	require.NoError(t, err)
	defer ads.Close()

	stub := llmadapter.NewStub(llmadapter.Response{Text: "no function available"})
	_, _, orc := newInterfaceOrchestrator(t, ctx, tr, stub, nil)
	_, err = orc.Handle(ctx, "conv-s6", "2+3")
	require.Error(t, err)
	var gerr *generrors.Error
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, generrors.KindNoCapableProvider, gerr.Kind)
}
