package core

import (
	"context"
	"maps"
	"sync"

	"github.com/hupe1980/agentgraph/logging"
)

// ToolContext provides a constrained, auditable surface for tool
// implementations. Reads see the state snapshot the tool step started
// from; writes are staged as a delta that the dispatcher applies after the
// call returns, so concurrent calls never observe each other's writes.
type ToolContext struct {
	ctx            context.Context
	functionCallID string
	agentName      string
	snapshot       State

	mu        sync.Mutex
	delta     map[string]any
	completed bool

	*loggerAdapter
}

// NewToolContext constructs a tool context for a single call against a
// state snapshot.
func NewToolContext(ctx context.Context, snapshot State, agentName, functionCallID string, logger logging.Logger) *ToolContext {
	return &ToolContext{
		ctx:            ctx,
		functionCallID: functionCallID,
		agentName:      agentName,
		snapshot:       snapshot,
		loggerAdapter:  newLoggerAdapter(logger),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the name of the agent that issued the call.
func (tc *ToolContext) AgentName() string { return tc.agentName }

// Messages returns the conversation log as of the start of the tool step.
func (tc *ToolContext) Messages() []Message { return tc.snapshot.Messages }

// GetState retrieves the value stored under k. Values staged by this call
// win over the snapshot.
func (tc *ToolContext) GetState(k string) (any, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if v, ok := tc.delta[k]; ok {
		return v, true
	}
	return tc.snapshot.Value(k)
}

// SetState stages a state mutation.
func (tc *ToolContext) SetState(k string, v any) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.delta == nil {
		tc.delta = map[string]any{}
	}
	tc.delta[k] = v
}

// MarkCompleted signals that the overall task is done after this call.
func (tc *ToolContext) MarkCompleted() {
	tc.mu.Lock()
	tc.completed = true
	tc.mu.Unlock()
}

// Delta returns a copy of the staged state mutations.
func (tc *ToolContext) Delta() map[string]any {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	return maps.Clone(tc.delta)
}

// Completed reports whether MarkCompleted was called.
func (tc *ToolContext) Completed() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	return tc.completed
}
