package classifier

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genesis-run/genesis/internal/llmadapter"
)

func candidate(name string, defaultCapable bool) Candidate {
	return Candidate{
		ToolSpec:       llmadapter.ToolSpec{Name: name, Description: "does " + name},
		DefaultCapable: defaultCapable,
	}
}

func TestFallbackUsedWhenDisabled(t *testing.T) {
	universe := []Candidate{candidate("zeta", false), candidate("alpha", false)}
	c := New(nil, nil, false)

	out, err := c.Classify(context.Background(), "anything", universe, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "alpha", out[0].ToolSpec.Name)
}

func TestFallbackTruncatesToWindow(t *testing.T) {
	universe := []Candidate{candidate("a", false), candidate("b", false), candidate("c", false)}
	out := allToolsFallback(universe, 2)
	require.Len(t, out, 2)
}

func TestLLMClassifierUsesSelectedOrder(t *testing.T) {
	universe := []Candidate{candidate("weather", false), candidate("calculator", false)}

	args, _ := json.Marshal(map[string][]string{"names": {"calculator"}})
	stub := llmadapter.NewStub(llmadapter.Response{
		ToolCalls: []llmadapter.ToolCall{{ID: "1", Name: "select_tools", Arguments: args}},
	})

	c := New(stub, nil, true)
	out, err := c.Classify(context.Background(), "what is 2+2", universe, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "calculator", out[0].ToolSpec.Name)
}

func TestDefaultCapableAlwaysIncluded(t *testing.T) {
	universe := []Candidate{candidate("weather", false), candidate("generalist", true)}

	args, _ := json.Marshal(map[string][]string{"names": {"weather"}})
	stub := llmadapter.NewStub(llmadapter.Response{
		ToolCalls: []llmadapter.ToolCall{{ID: "1", Name: "select_tools", Arguments: args}},
	})

	c := New(stub, nil, true)
	out, err := c.Classify(context.Background(), "tell me about the weather", universe, 10)
	require.NoError(t, err)

	var sawDefault bool
	for _, cand := range out {
		if cand.DefaultCapable {
			sawDefault = true
		}
	}
	require.True(t, sawDefault)
}

func TestLLMFailureFallsBackToAllTools(t *testing.T) {
	universe := []Candidate{candidate("b", false), candidate("a", false)}
	stub := llmadapter.NewStub()
	stub.ScriptFunc = func(messages []llmadapter.Message, tools []llmadapter.ToolSpec, choice llmadapter.ToolChoice) (llmadapter.Response, error) {
		return llmadapter.Response{}, errNoSelection
	}

	c := New(stub, nil, true)
	out, err := c.Classify(context.Background(), "query", universe, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "a", out[0].ToolSpec.Name)
}
