package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Providers(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		opts     Options
		provider string
		model    string
	}{
		{"gemini default", Options{APIKey: "k"}, "gemini", "gemini-2.5-flash"},
		{"gemini named", Options{Provider: "Gemini", Name: "gemini-2.0-flash", APIKey: "k"}, "gemini", "gemini-2.0-flash"},
		{"openai", Options{Provider: "openai", Name: "gpt-4o", APIKey: "k"}, "openai", "gpt-4o"},
		{"anthropic", Options{Provider: "anthropic", Name: "claude-haiku-4-5", APIKey: "k"}, "anthropic", "claude-haiku-4-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(ctx, tt.opts)
			require.NoError(t, err)
			info := m.Info()
			assert.Equal(t, tt.provider, info.Provider)
			assert.Equal(t, tt.model, info.Name)
		})
	}
}

func TestNew_Unknown(t *testing.T) {
	_, err := New(context.Background(), Options{Provider: "llama"})
	assert.ErrorContains(t, err, "unknown model provider")
}
