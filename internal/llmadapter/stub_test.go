package llmadapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStubAdapterReplaysScriptInOrder(t *testing.T) {
	stub := NewStub(
		Response{ToolCalls: []ToolCall{{ID: "1", Name: "add"}}},
		Response{Text: "the sum is 5"},
	)

	ctx := context.Background()
	first, err := stub.Call(ctx, []Message{{Role: RoleUser, Text: "add 2 and 3"}}, nil, ToolChoiceAuto)
	require.NoError(t, err)
	require.Len(t, first.ToolCalls, 1)

	second, err := stub.Call(ctx, []Message{{Role: RoleTool, Text: "5", ToolCallID: "1"}}, nil, ToolChoiceAuto)
	require.NoError(t, err)
	require.Equal(t, "the sum is 5", second.Text)
	require.Equal(t, 2, stub.CallCount())
}

func TestBaseFormatMessagesOrdersSystemMemoryUser(t *testing.T) {
	var b base
	msgs := b.FormatMessages("what is the weather", "you are a helpful agent", []Message{
		{Role: RoleAssistant, Text: "earlier turn"},
	})
	require.Len(t, msgs, 3)
	require.Equal(t, RoleSystem, msgs[0].Role)
	require.Equal(t, RoleAssistant, msgs[1].Role)
	require.Equal(t, RoleUser, msgs[2].Role)
}

func TestBaseGetToolChoiceDefaultsToAuto(t *testing.T) {
	var b base
	require.Equal(t, ToolChoiceAuto, b.GetToolChoice())
}
