package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/genesis-run/genesis/internal/advertisement"
	"github.com/genesis-run/genesis/internal/classifier"
	"github.com/genesis-run/genesis/internal/llmadapter"
	"github.com/genesis-run/genesis/internal/monitoring"
	"github.com/genesis-run/genesis/internal/rpcplane"
	"github.com/genesis-run/genesis/internal/transport"
)

func TestHandleTerminatesWithoutAnyToolCall(t *testing.T) {
	ctx := context.Background()
	tr := transport.NewInMemory()
	ads, err := advertisement.NewCache(ctx, tr, nil)
	require.NoError(t, err)
	defer ads.Close()

	stub := llmadapter.NewStub(llmadapter.Response{Text: "hello there"})
	o := New(Options{
		ParticipantID: "participant-orc",
		LLM:           stub,
		Classifier:    classifier.New(stub, nil, false),
		Ads:           ads,
		RPC:           rpcplane.New(tr, "participant-orc", nil),
	})

	out, err := o.Handle(ctx, "conv-1", "hi")
	require.NoError(t, err)
	require.Equal(t, "hello there", out)
}

func TestHandleDispatchesInternalTool(t *testing.T) {
	ctx := context.Background()
	tr := transport.NewInMemory()
	ads, err := advertisement.NewCache(ctx, tr, nil)
	require.NoError(t, err)
	defer ads.Close()

	args, _ := json.Marshal(map[string]int{"a": 2, "b": 3})
	stub := llmadapter.NewStub(
		llmadapter.Response{ToolCalls: []llmadapter.ToolCall{{ID: "1", Name: "add", Arguments: args}}},
		llmadapter.Response{Text: "the sum is 5"},
	)

	added := false
	tool := InternalTool{
		Spec: llmadapter.ToolSpec{Name: "add", Description: "adds two numbers"},
		Handler: func(ctx context.Context, arguments json.RawMessage) (json.RawMessage, error) {
			added = true
			return json.Marshal(map[string]int{"sum": 5})
		},
	}

	o := New(Options{
		ParticipantID: "participant-orc",
		LLM:           stub,
		Classifier:    classifier.New(stub, nil, false),
		Ads:           ads,
		RPC:           rpcplane.New(tr, "participant-orc", nil),
		InternalTools: []InternalTool{tool},
	})

	out, err := o.Handle(ctx, "conv-1", "add 2 and 3")
	require.NoError(t, err)
	require.Equal(t, "the sum is 5", out)
	require.True(t, added)
}

func TestHandleDispatchesRPCToAdvertisedFunction(t *testing.T) {
	ctx := context.Background()
	tr := transport.NewInMemory()

	serverPlane := rpcplane.New(tr, "participant-server", nil)
	stop, err := serverPlane.Serve(ctx, "calc", func(ctx context.Context, req rpcplane.Request) rpcplane.Reply {
		result, _ := json.Marshal(map[string]int{"sum": 7})
		return rpcplane.Reply{CorrelationID: req.CorrelationID, From: "participant-server", Status: rpcplane.StatusOK, Result: result}
	})
	require.NoError(t, err)
	defer stop()

	adPlane := advertisement.New(tr)
	payload, _ := json.Marshal(advertisement.FunctionPayload{ServiceName: "calc"})
	_, err = adPlane.Publish(ctx, advertisement.Advertisement{
		Kind: advertisement.KindFunction, Name: "add", ProviderID: "participant-server",
		ServiceClass: "calc", Payload: payload,
	}, nil)
	require.NoError(t, err)

	ads, err := advertisement.NewCache(ctx, tr, nil)
	require.NoError(t, err)
	defer ads.Close()

	args, _ := json.Marshal(map[string]int{"a": 3, "b": 4})
	stub := llmadapter.NewStub(
		llmadapter.Response{ToolCalls: []llmadapter.ToolCall{{ID: "1", Name: "add", Arguments: args}}},
		llmadapter.Response{Text: "the sum is 7"},
	)

	monitor := monitoring.New(tr)
	o := New(Options{
		ParticipantID: "participant-orc",
		LLM:           stub,
		Classifier:    classifier.New(stub, nil, false),
		Ads:           ads,
		RPC:           rpcplane.New(tr, "participant-orc", nil),
		Monitor:       monitor,
	})

	out, err := o.Handle(ctx, "conv-1", "add 3 and 4")
	require.NoError(t, err)
	require.Equal(t, "the sum is 7", out)
}

func TestHandleFailsToolLoopExceeded(t *testing.T) {
	ctx := context.Background()
	tr := transport.NewInMemory()
	ads, err := advertisement.NewCache(ctx, tr, nil)
	require.NoError(t, err)
	defer ads.Close()

	args, _ := json.Marshal(map[string]int{})
	loop := llmadapter.NewStub()
	loop.ScriptFunc = func(messages []llmadapter.Message, tools []llmadapter.ToolSpec, choice llmadapter.ToolChoice) (llmadapter.Response, error) {
		return llmadapter.Response{ToolCalls: []llmadapter.ToolCall{{ID: "1", Name: "noop", Arguments: args}}}, nil
	}

	tool := InternalTool{
		Spec: llmadapter.ToolSpec{Name: "noop"},
		Handler: func(ctx context.Context, arguments json.RawMessage) (json.RawMessage, error) {
			return json.Marshal(map[string]bool{"ok": true})
		},
	}

	o := New(Options{
		ParticipantID: "participant-orc",
		LLM:           loop,
		Classifier:    classifier.New(loop, nil, false),
		Ads:           ads,
		RPC:           rpcplane.New(tr, "participant-orc", nil),
		InternalTools: []InternalTool{tool},
		MaxToolHops:   2,
	})

	_, err = o.Handle(ctx, "conv-1", "loop forever")
	require.Error(t, err)
}

func TestHandleReturnsNoCapableProviderWhenUniverseEmpty(t *testing.T) {
	ctx := context.Background()
	tr := transport.NewInMemory()
	ads, err := advertisement.NewCache(ctx, tr, nil)
	require.NoError(t, err)
	defer ads.Close()

	stub := llmadapter.NewStub()
	o := New(Options{
		ParticipantID: "participant-orc",
		LLM:           stub,
		Classifier:    classifier.New(stub, nil, false),
		Ads:           ads,
		RPC:           rpcplane.New(tr, "participant-orc", nil),
	})

	_, err = o.Handle(ctx, "conv-1", "anything")
	require.Error(t, err)
}

func TestSelectProviderPrefersLowestStaleness(t *testing.T) {
	now := time.Now().UnixNano()
	stale := advertisement.Advertisement{ProviderID: "stale", LastSeen: now - int64(time.Minute)}
	fresh := advertisement.Advertisement{ProviderID: "fresh", LastSeen: now}

	best := selectProvider([]advertisement.Advertisement{stale, fresh}, now)
	require.Equal(t, "fresh", best.ProviderID)
}
