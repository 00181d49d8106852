package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculatorAdds(t *testing.T) {
	tool := Calculator()
	args, _ := json.Marshal(map[string]any{"operation": "add", "a": 2, "b": 3})

	out, err := tool.Handler(context.Background(), args)
	require.NoError(t, err)

	var result map[string]float64
	require.NoError(t, json.Unmarshal(out, &result))
	require.Equal(t, 5.0, result["result"])
}

func TestCalculatorRejectsDivisionByZero(t *testing.T) {
	tool := Calculator()
	args, _ := json.Marshal(map[string]any{"operation": "div", "a": 1, "b": 0})

	_, err := tool.Handler(context.Background(), args)
	require.Error(t, err)
}

func TestCalculatorRejectsUnknownOperation(t *testing.T) {
	tool := Calculator()
	args, _ := json.Marshal(map[string]any{"operation": "pow", "a": 1, "b": 2})

	_, err := tool.Handler(context.Background(), args)
	require.Error(t, err)
}
