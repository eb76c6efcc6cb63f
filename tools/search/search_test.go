package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/tool"
)

func TestSearchTools(t *testing.T) {
	tc := core.NewToolContext(context.Background(), core.NewState(), "search", "c1", nil)
	byName := tool.Index(Tools())

	out, err := byName["google_search"].Call(tc, map[string]any{"query": " go generics "})
	require.NoError(t, err)
	assert.Equal(t, "https://www.google.com/search?q=go+generics", out)

	out, err = byName["stock_price"].Call(tc, map[string]any{"symbol": "GOOG"})
	require.NoError(t, err)
	assert.Equal(t, 100.0, out)

	_, err = byName["stock_price"].Call(tc, map[string]any{})
	assert.Error(t, err)
}
