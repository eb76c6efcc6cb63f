package model

import (
	"context"
	"errors"

	"github.com/hupe1980/agentgraph/core"
)

// ErrNoResponse is returned by Collect when a generation ends without a
// final response.
var ErrNoResponse = errors.New("model returned no final response")

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by the model step.
type Request struct {
	Instructions string           `json:"instructions"` // System instruction for the model
	Messages     []core.Message   `json:"messages"`     // Conversation window converted to provider messages
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model. The Message of a
// final response carries the complete assistant turn.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "gemini", "openai", "anthropic", "scripted"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the model step to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains a generation and returns its final response. onPartial,
// when non-nil, receives every partial chunk in order.
func Collect(ctx context.Context, m Model, req Request, onPartial func(Response)) (Response, error) {
	out, errCh := m.Generate(ctx, req)

	var (
		final Response
		found bool
	)
	for resp := range out {
		if resp.Partial {
			if onPartial != nil {
				onPartial(resp)
			}
			continue
		}
		final, found = resp, true
	}
	if err := <-errCh; err != nil {
		return Response{}, err
	}
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	if !found {
		return Response{}, ErrNoResponse
	}
	return final, nil
}

// AssistantMessage builds the assistant turn a provider returns.
func AssistantMessage(parts ...core.Part) core.Message {
	return core.NewMessage(core.RoleAssistant, parts...)
}
