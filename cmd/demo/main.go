// Command demo wires a Genesis service and an interface participant
// together in a single process over the in-memory transport, and runs one
// query through the full Orchestrator tool-calling loop end to end.
package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/genesis-run/genesis/internal/advertisement"
	"github.com/genesis-run/genesis/internal/classifier"
	"github.com/genesis-run/genesis/internal/llmadapter"
	"github.com/genesis-run/genesis/internal/orchestrator"
	"github.com/genesis-run/genesis/internal/participant"
	"github.com/genesis-run/genesis/internal/rpcplane"
	"github.com/genesis-run/genesis/internal/tools"
	"github.com/genesis-run/genesis/internal/transport"
)

func main() {
	ctx := context.Background()
	t := transport.NewInMemory()

	// 1) A service participant advertising a "calculator" FUNCTION and
	// serving it over the RPC Plane.
	calcRuntime := participant.New(participant.Options{Transport: t, Kind: participant.KindService, DisplayName: "calculator-service"})
	must(calcRuntime.Start(ctx))
	calc := tools.Calculator()
	serveCalculator(ctx, t, calcRuntime.ParticipantID, calc)
	advertiseCalculator(ctx, calcRuntime, calc)

	// 2) An interface participant driving the Orchestrator with a stub LLM
	// scripted to call the remote "calculator" function then answer.
	callArgs, _ := json.Marshal(map[string]any{"operation": "add", "a": 21, "b": 21})
	stub := llmadapter.NewStub(
		llmadapter.Response{ToolCalls: []llmadapter.ToolCall{{ID: "1", Name: "calculator", Arguments: callArgs}}},
		llmadapter.Response{Text: "21 plus 21 is 42."},
	)

	ifaceRuntime := participant.New(participant.Options{Transport: t, Kind: participant.KindInterface, DisplayName: "demo-interface"})
	must(ifaceRuntime.Start(ctx))

	ads, err := advertisement.NewCache(ctx, t, nil)
	must(err)
	defer ads.Close()

	orc := orchestrator.New(orchestrator.Options{
		ParticipantID: ifaceRuntime.ParticipantID,
		LLM:           stub,
		Classifier:    classifier.New(stub, nil, false),
		RPC:           rpcplane.New(t, ifaceRuntime.ParticipantID, nil),
		Ads:           ads,
		SystemPrompt:  "You are a helpful Genesis demo agent.",
	})

	out, err := orc.Handle(ctx, "demo-conversation", "what is 21 plus 21?")
	must(err)
	fmt.Println("Assistant:", out)
}

func serveCalculator(ctx context.Context, t transport.Transport, providerID string, calc orchestrator.InternalTool) {
	plane := rpcplane.New(t, providerID, nil)
	_, err := plane.Serve(ctx, "calculator", func(ctx context.Context, req rpcplane.Request) rpcplane.Reply {
		out, err := calc.Handler(ctx, req.Arguments)
		if err != nil {
			return rpcplane.Reply{CorrelationID: req.CorrelationID, From: providerID, Status: rpcplane.StatusError, Error: err.Error()}
		}
		return rpcplane.Reply{CorrelationID: req.CorrelationID, From: providerID, Status: rpcplane.StatusOK, Result: out}
	})
	must(err)
}

func advertiseCalculator(ctx context.Context, rt *participant.Runtime, calc orchestrator.InternalTool) {
	_, err := rt.Advertise(ctx, advertisement.KindFunction, calc.Spec.Name, "calculator", advertisement.FunctionPayload{
		ParameterSchema: calc.Spec.ParameterSchema,
		ServiceName:     "calculator",
	}, nil)
	must(err)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
