package arithmetic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/tool"
)

func TestApply(t *testing.T) {
	tests := []struct {
		op   string
		a, b float64
		want float64
	}{
		{"+", 10, 5, 15},
		{"-", 10, 5, 5},
		{"*", 10, 5, 50},
		{"/", 10, 5, 2},
	}
	for _, tt := range tests {
		got, err := Apply(tt.op, tt.a, tt.b)
		require.NoError(t, err, tt.op)
		assert.InDelta(t, tt.want, got, 1e-9, tt.op)
	}

	_, err := Apply("/", 1, 0)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = Apply("%", 1, 2)
	assert.ErrorIs(t, err, ErrUnknownOperation)
}

func TestTools(t *testing.T) {
	tc := core.NewToolContext(context.Background(), core.NewState(), "math", "c1", nil)
	byName := tool.Index(Tools())
	require.Len(t, byName, 4)

	out, err := byName["multiply"].Call(tc, map[string]any{"a": 3.0, "b": 4.0})
	require.NoError(t, err)
	assert.Equal(t, 12.0, out)

	_, err = byName["divide"].Call(tc, map[string]any{"a": 3.0, "b": 0.0})
	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeExecution, toolErr.Code)
	assert.Contains(t, toolErr.Message, "division by zero")

	_, err = byName["add"].Call(tc, map[string]any{"a": "three", "b": 1.0})
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeValidation, toolErr.Code)

	assert.Equal(t, []string{"a", "b"}, byName["subtract"].Parameters()["required"])
}
