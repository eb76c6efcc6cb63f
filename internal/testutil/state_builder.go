package testutil

import (
	"github.com/hupe1980/agentgraph/core"
)

// StateBuilder helps construct states with fluent chaining for tests.
// Example:
//
//	s := NewStateBuilder().Value("document", "draft").Messages(User("hi")).ModelCalls(2).Build()
type StateBuilder struct {
	values     map[string]any
	messages   []core.Message
	modelCalls int
	toolCalls  int
	completed  bool
}

// NewStateBuilder creates an empty builder.
func NewStateBuilder() *StateBuilder {
	return &StateBuilder{values: map[string]any{}}
}

// Value sets or overwrites a state value (chainable).
func (b *StateBuilder) Value(key string, val any) *StateBuilder {
	b.values[key] = val
	return b
}

// Messages appends messages to the log (chainable).
func (b *StateBuilder) Messages(msgs ...core.Message) *StateBuilder {
	b.messages = append(b.messages, msgs...)
	return b
}

// ModelCalls sets the model call counter (chainable).
func (b *StateBuilder) ModelCalls(n int) *StateBuilder { b.modelCalls = n; return b }

// ToolCalls sets the tool call counter (chainable).
func (b *StateBuilder) ToolCalls(n int) *StateBuilder { b.toolCalls = n; return b }

// Completed marks the state as completed (chainable).
func (b *StateBuilder) Completed() *StateBuilder { b.completed = true; return b }

// Build returns the core.State.
func (b *StateBuilder) Build() core.State {
	s := core.NewState(b.messages...).WithValues(b.values)
	s.ModelCalls = b.modelCalls
	s.ToolCalls = b.toolCalls
	s.Completed = b.completed
	return s
}
