// Package tools provides demo internal tools (spec.md §4.4 item 4.c: "if it
// names an internal tool, invoke locally"). cmd/genesis's interface/agent
// launchers register Calculator; GitHubIssueLookup is not registered by any
// launcher.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/genesis-run/genesis/internal/llmadapter"
	"github.com/genesis-run/genesis/internal/orchestrator"
)

type calculatorArgs struct {
	Operation string  `json:"operation"`
	A         float64 `json:"a"`
	B         float64 `json:"b"`
}

// Calculator is a pure-function internal tool (add/sub/mul/div) used as a
// demo counterpart to the FUNCTION-kind advertisements a real Calculator
// service would expose over the RPC Plane.
func Calculator() orchestrator.InternalTool {
	return orchestrator.InternalTool{
		Spec: llmadapter.ToolSpec{
			Name:        "calculator",
			Description: "Performs add, sub, mul, or div on two numbers a and b.",
			ParameterSchema: json.RawMessage(`{
				"type":"object",
				"properties":{
					"operation":{"type":"string","enum":["add","sub","mul","div"]},
					"a":{"type":"number"},
					"b":{"type":"number"}
				},
				"required":["operation","a","b"]
			}`),
		},
		Handler: func(ctx context.Context, arguments json.RawMessage) (json.RawMessage, error) {
			var args calculatorArgs
			if err := json.Unmarshal(arguments, &args); err != nil {
				return nil, fmt.Errorf("calculator: decode arguments: %w", err)
			}
			var result float64
			switch args.Operation {
			case "add":
				result = args.A + args.B
			case "sub":
				result = args.A - args.B
			case "mul":
				result = args.A * args.B
			case "div":
				if args.B == 0 {
					return nil, fmt.Errorf("calculator: division by zero")
				}
				result = args.A / args.B
			default:
				return nil, fmt.Errorf("calculator: unknown operation %q", args.Operation)
			}
			return json.Marshal(map[string]float64{"result": result})
		},
	}
}
