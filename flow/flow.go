// Package flow provides the three steps of the agent control loop.
//
// A ModelStep sends the conversation to a model and records its reply, a
// ToolStep executes the tool calls that reply requested, and a Policy decides
// from the resulting state whether to call the model again, hand the turn to a
// human or stop. A HumanStep reads the next user turn for conversational
// agents. Every step is a plain func(ctx, core.State) (core.State, error) and
// plugs into a graph.StateGraph[core.State] as a node.
package flow

import (
	"context"
	"errors"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/internal/util"
)

// ErrModelCallLimit is returned when a model step runs after the model call
// ceiling has been reached.
var ErrModelCallLimit = errors.New("model call limit reached")

// InstructionFunc resolves the instruction sent with a model request.
type InstructionFunc func(ctx context.Context, s core.State) (string, error)

// StaticInstruction returns an InstructionFunc rendering text as a template
// over the state values.
func StaticInstruction(text string) InstructionFunc {
	return func(_ context.Context, s core.State) (string, error) {
		return RenderInstruction(text, s)
	}
}

// RenderInstruction renders text as a text/template over the state values,
// e.g. "The current document is: {{.document}}".
func RenderInstruction(text string, s core.State) (string, error) {
	return util.RenderTemplate(text, s.Values)
}
