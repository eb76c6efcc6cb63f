package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/flow"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/internal/util"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
)

// Node names of a StructuredAgent graph.
const (
	NodeGenerate = "generate"
	NodeParse    = "parse"
)

// StructuredAgentOptions configures a StructuredAgent.
type StructuredAgentOptions struct {
	Instruction Instruction
	// OutputKey is the state key the parsed value is stored under.
	OutputKey string
	// SchemaHint appends the JSON schema of the output type to the instruction.
	SchemaHint    bool
	HistoryWindow int
	Logger        logging.Logger
}

// StructuredAgent makes a single model call and strictly parses the reply
// into a T. A reply that is not exactly one JSON value of that shape fails
// with *model.MalformedOutputError; there is no silent fallback.
type StructuredAgent[T any] struct {
	name      string
	outputKey string
	graph     *graph.Graph[core.State]
}

// NewStructuredAgent creates a structured output agent for T.
func NewStructuredAgent[T any](name string, m model.Model, optFns ...func(o *StructuredAgentOptions)) (*StructuredAgent[T], error) {
	opts := StructuredAgentOptions{
		Instruction: NewInstructionFromText("Respond only with JSON."),
		OutputKey:   "output",
		SchemaHint:  true,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	instruction := opts.Instruction.Resolve
	if opts.SchemaHint {
		var zero T
		schema, err := json.Marshal(util.CreateSchema(zero))
		if err != nil {
			return nil, fmt.Errorf("encode output schema: %w", err)
		}
		instruction = func(ctx context.Context, s core.State) (string, error) {
			text, err := opts.Instruction.Resolve(ctx, s)
			if err != nil {
				return "", err
			}
			return text + "\n\nRespond with a single JSON object matching this JSON schema and nothing else:\n" + string(schema), nil
		}
	}

	generate := flow.NewModelStep(m, func(o *flow.ModelStepOptions) {
		o.Name = name
		o.Instruction = instruction
		o.HistoryWindow = opts.HistoryWindow
		o.Logger = opts.Logger
	})

	a := &StructuredAgent[T]{name: name, outputKey: opts.OutputKey}

	g, err := graph.New[core.State]().
		AddNode(NodeGenerate, generate.Run).
		AddNode(NodeParse, a.parse).
		AddEdge(graph.Start, NodeGenerate).
		AddEdge(NodeGenerate, NodeParse).
		SetFinishPoint(NodeParse).
		Compile(graph.WithName(name), graph.WithLogger(opts.Logger))
	if err != nil {
		return nil, fmt.Errorf("compile agent %s: %w", name, err)
	}
	a.graph = g

	return a, nil
}

func (a *StructuredAgent[T]) parse(_ context.Context, s core.State) (core.State, error) {
	var out T
	if err := model.ParseJSON(s.FinalText(), &out); err != nil {
		return s, err
	}
	return s.With(a.outputKey, out), nil
}

// Graph returns the compiled graph.
func (a *StructuredAgent[T]) Graph() *graph.Graph[core.State] { return a.graph }

// Run executes the agent on s and returns the parsed value alongside the
// final state.
func (a *StructuredAgent[T]) Run(ctx context.Context, s core.State) (T, core.State, error) {
	var zero T
	out, err := a.graph.Invoke(ctx, s)
	if err != nil {
		var malformed *model.MalformedOutputError
		if errors.As(err, &malformed) {
			return zero, out, malformed
		}
		return zero, out, err
	}
	v, ok := out.Values[a.outputKey].(T)
	if !ok {
		return zero, out, fmt.Errorf("agent %s: no output under %q", a.name, a.outputKey)
	}
	return v, out, nil
}

// Invoke runs the agent on a single user input.
func (a *StructuredAgent[T]) Invoke(ctx context.Context, input string, values map[string]any) (T, error) {
	s := core.NewState().WithValues(values)
	if input != "" {
		s = s.Append(core.NewUserMessage(input))
	}
	v, _, err := a.Run(ctx, s)
	return v, err
}
