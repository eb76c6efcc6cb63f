// Package resolve builds a provider backed model.Model from a provider name.
package resolve

import (
	"context"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/model/anthropic"
	"github.com/hupe1980/agentgraph/model/gemini"
	"github.com/hupe1980/agentgraph/model/openai"
)

// Supported provider names.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Options select and configure a provider. Zero values keep the provider
// defaults.
type Options struct {
	Provider    string
	Name        string
	Temperature float64
	APIKey      string
}

// New constructs the model for opts.Provider.
func New(ctx context.Context, opts Options) (model.Model, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", ProviderGemini:
		return gemini.NewModel(ctx, func(o *gemini.Options) {
			if opts.Name != "" {
				o.Model = opts.Name
			}
			if opts.Temperature > 0 {
				o.Temperature = float32(opts.Temperature)
			}
			o.APIKey = opts.APIKey
		})
	case ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if opts.Name != "" {
				o.Model = opts.Name
			}
			if opts.Temperature > 0 {
				o.Temperature = opts.Temperature
			}
			o.APIKey = opts.APIKey
		}), nil
	case ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if opts.Name != "" {
				o.Model = anthropicsdk.Model(opts.Name)
			}
			if opts.Temperature > 0 {
				o.Temperature = opts.Temperature
			}
			o.APIKey = opts.APIKey
		}), nil
	default:
		return nil, fmt.Errorf("resolve: unknown model provider %q", opts.Provider)
	}
}
