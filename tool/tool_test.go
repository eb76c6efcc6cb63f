package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/logging"
)

func newToolContext(fcID string) *core.ToolContext {
	return core.NewToolContext(context.Background(), core.NewState(), "agent", fcID, logging.NoOpLogger{})
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		a := args["a"].(float64)
		b := args["b"].(float64)
		return a + b, nil
	})

	result, err := sumTool.Call(newToolContext("fc1"), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		"required": []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})

	_, err := tTool.Call(newToolContext("fc2"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := execTool.Call(newToolContext("fc3"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "boom", toolErr.Message)
}

func TestFunctionTool_CustomToolErrorPassesThrough(t *testing.T) {
	custom := NewToolError("div", "division by zero", "E_DIV")
	execTool := NewFunctionTool("div", "Divide", map[string]any{"type": "object"}, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, custom
	})

	_, err := execTool.Call(newToolContext("fc4"), map[string]any{})
	assert.Same(t, custom, err)
}

type greetArgs struct {
	Name string `json:"name" description:"Who to greet"`
	Loud bool   `json:"loud,omitempty"`
}

func TestNewTypedTool(t *testing.T) {
	greet := NewTypedTool("greet", "Greets someone", func(_ *core.ToolContext, args greetArgs) (any, error) {
		if args.Loud {
			return "HELLO " + args.Name, nil
		}
		return "hello " + args.Name, nil
	})

	assert.Equal(t, []string{"name"}, greet.Parameters()["required"])

	out, err := greet.Call(newToolContext("fc5"), map[string]any{"name": "bob", "loud": true})
	require.NoError(t, err)
	assert.Equal(t, "HELLO bob", out)

	_, err = greet.Call(newToolContext("fc6"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestResultUnwrap(t *testing.T) {
	content, completed := Unwrap(Done("saved"))
	assert.Equal(t, "saved", content)
	assert.True(t, completed)

	content, completed = Unwrap(&Result{Content: 1})
	assert.Equal(t, 1, content)
	assert.False(t, completed)

	content, completed = Unwrap("plain")
	assert.Equal(t, "plain", content)
	assert.False(t, completed)
}

func TestDefinitions(t *testing.T) {
	a := NewTypedTool("a", "first", func(_ *core.ToolContext, _ greetArgs) (any, error) { return nil, nil })
	b := NewTypedTool("b", "second", func(_ *core.ToolContext, _ greetArgs) (any, error) { return nil, nil })

	defs := Definitions([]Tool{a, b})
	require.Len(t, defs, 2)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "a", defs[0].Function.Name)
	assert.Equal(t, "second", defs[1].Function.Description)

	assert.Nil(t, Definitions(nil))
	assert.Len(t, Index([]Tool{a, b}), 2)
}

// -------------------- ToolError Formatting --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}
