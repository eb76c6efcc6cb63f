package agent

import (
	"context"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/flow"
)

// Provider supplies dynamic instruction text at runtime.
// Implementations can derive instructions from state, environment, etc.
type Provider interface {
	Instruction(ctx context.Context, s core.State) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(ctx context.Context, s core.State) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ctx context.Context, s core.State) (string, error) { return f(ctx, s) }

// Instruction represents either a static instruction string or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(ctx context.Context, s core.State) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// IsZero reports whether the instruction is empty.
func (i Instruction) IsZero() bool { return i.provider == nil && i.text == "" }

// Resolve returns the instruction text, invoking the provider if needed, and
// renders it as a template over the state values.
func (i Instruction) Resolve(ctx context.Context, s core.State) (string, error) {
	text := i.text
	if i.provider != nil {
		var err error
		if text, err = i.provider.Instruction(ctx, s); err != nil {
			return "", err
		}
	}
	return flow.RenderInstruction(text, s)
}
