package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentgraph/checkpoint"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/flow"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/tool"
)

// Node names of a ToolAgent graph.
const (
	NodeModel = "model"
	NodeTools = "tools"
	NodeHuman = "human"
)

// ToolAgentOptions configures a ToolAgent.
//
// Use functional options with NewToolAgent to override defaults.
type ToolAgentOptions struct {
	Instruction Instruction
	Tools       []tool.Tool
	// MaxModelCalls bounds model rounds per run (0 = unlimited).
	MaxModelCalls int
	// MaxToolCalls bounds tool executions per run (0 = unlimited).
	MaxToolCalls int
	// HistoryWindow bounds the messages sent per model call (0 = all).
	HistoryWindow int
	// MaxParallelTools bounds concurrent tool calls of one reply.
	MaxParallelTools int
	ToolTimeout      time.Duration
	// StopOnCompleted ends the run once a tool returns a completed Result.
	StopOnCompleted bool
	// Input turns the agent conversational: replies without tool calls are
	// followed by the next user turn instead of ending the run.
	Input     flow.InputSource
	Stream    bool
	OnPartial func(model.Response)
	// RecursionLimit bounds node executions; derived from MaxModelCalls when 0.
	RecursionLimit int
	Checkpointer   checkpoint.Saver
	Logger         logging.Logger
}

// ToolAgent is a ReAct style agent: the model is called in a loop and every
// tool call it requests is executed until the policy ends the run.
type ToolAgent struct {
	name   string
	policy flow.Policy
	graph  *graph.Graph[core.State]
}

// NewToolAgent creates a tool calling agent with sensible defaults:
//   - ten model calls per run
//   - a twenty message history window
//   - sequential tool execution
//   - stop once a tool reports completion
func NewToolAgent(name string, m model.Model, optFns ...func(o *ToolAgentOptions)) (*ToolAgent, error) {
	opts := ToolAgentOptions{
		Instruction:     NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		MaxModelCalls:   10,
		HistoryWindow:   20,
		StopOnCompleted: true,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if gl, ok := opts.Logger.(*logging.GraphLogger); ok {
		opts.Logger = gl.WithContext("agent", name)
	}

	policy := flow.Policy{
		MaxModelCalls:   opts.MaxModelCalls,
		StopOnCompleted: opts.StopOnCompleted,
		Human:           opts.Input != nil,
	}

	modelStep := flow.NewModelStep(m, func(o *flow.ModelStepOptions) {
		o.Name = name
		o.Instruction = opts.Instruction.Resolve
		o.Tools = opts.Tools
		o.HistoryWindow = opts.HistoryWindow
		o.Stream = opts.Stream
		o.OnPartial = opts.OnPartial
		o.Logger = opts.Logger
	})
	toolStep := flow.NewToolStep(opts.Tools, func(o *flow.ToolStepOptions) {
		o.Name = name
		o.MaxParallel = opts.MaxParallelTools
		o.Timeout = opts.ToolTimeout
		o.Limits = core.Limits{MaxToolCalls: opts.MaxToolCalls}
		o.Logger = opts.Logger
	})

	modelRoutes := map[string]string{
		string(flow.DecisionTools): NodeTools,
		string(flow.DecisionEnd):   graph.End,
	}
	if opts.Input != nil {
		modelRoutes[string(flow.DecisionHuman)] = NodeHuman
	}

	b := graph.New[core.State]().
		AddNode(NodeModel, modelStep.Run).
		AddNode(NodeTools, toolStep.Run).
		AddConditionalEdges(NodeModel, route(policy.Next), modelRoutes).
		AddConditionalEdges(NodeTools, route(policy.AfterTools), map[string]string{
			string(flow.DecisionModel): NodeModel,
			string(flow.DecisionEnd):   graph.End,
		})

	if opts.Input != nil {
		humanStep := flow.NewHumanStep(opts.Input)
		b.AddNode(NodeHuman, humanStep.Run).
			AddConditionalEdges(NodeHuman, func(s core.State) string {
				if s.Completed {
					return graph.End
				}
				return NodeModel
			}, nil).
			SetEntryPoint(NodeHuman)
	} else {
		b.SetEntryPoint(NodeModel)
	}

	g, err := b.Compile(
		graph.WithName(name),
		graph.WithRecursionLimit(recursionLimit(opts)),
		graph.WithLogger(opts.Logger),
		graph.WithCheckpointer(opts.Checkpointer),
	)
	if err != nil {
		return nil, fmt.Errorf("compile agent %s: %w", name, err)
	}

	return &ToolAgent{name: name, policy: policy, graph: g}, nil
}

func route(decide func(core.State) flow.Decision) graph.RouterFunc[core.State] {
	return func(s core.State) string { return string(decide(s)) }
}

// recursionLimit leaves room for a model and a tool node per model call.
func recursionLimit(opts ToolAgentOptions) int {
	switch {
	case opts.RecursionLimit > 0:
		return opts.RecursionLimit
	case opts.Input != nil:
		return 1000
	case opts.MaxModelCalls > 0:
		return max(2*opts.MaxModelCalls+1, graph.DefaultRecursionLimit)
	default:
		return graph.DefaultRecursionLimit
	}
}

// Name returns the agent name.
func (a *ToolAgent) Name() string { return a.name }

// Graph returns the compiled graph, e.g. to render it with Mermaid.
func (a *ToolAgent) Graph() *graph.Graph[core.State] { return a.graph }

// Policy returns the continuation policy the graph routes with.
func (a *ToolAgent) Policy() flow.Policy { return a.policy }

// Invoke starts a fresh run from a user input and initial state values.
func (a *ToolAgent) Invoke(ctx context.Context, input string, values map[string]any, optFns ...func(o *graph.RunOptions)) (core.State, error) {
	s := core.NewState().WithValues(values)
	if input != "" {
		s = s.Append(core.NewUserMessage(input))
	}
	return a.Run(ctx, s, optFns...)
}

// Run executes the agent graph on s.
func (a *ToolAgent) Run(ctx context.Context, s core.State, optFns ...func(o *graph.RunOptions)) (core.State, error) {
	return a.graph.Invoke(ctx, s, optFns...)
}

// Stream executes the agent graph on s and emits every node step.
func (a *ToolAgent) Stream(ctx context.Context, s core.State, optFns ...func(o *graph.RunOptions)) (<-chan graph.Step[core.State], <-chan error) {
	return a.graph.Stream(ctx, s, optFns...)
}

// Thread returns the latest checkpointed state of threadID prepared for a
// new turn: call counters and the completion flag are reset so every turn
// gets its own budget. An unknown thread yields an empty state.
func (a *ToolAgent) Thread(ctx context.Context, threadID string) (core.State, error) {
	s, err := a.graph.LatestState(ctx, threadID)
	switch {
	case err == nil:
	case errors.Is(err, checkpoint.ErrNotFound):
		return core.NewState(), nil
	default:
		return core.State{}, err
	}

	s = s.Clone()
	s.ModelCalls, s.ToolCalls, s.Completed = 0, 0, false
	return s, nil
}

// Continue appends input to the latest checkpointed state of threadID and
// runs the agent on it. See Thread for how the state is prepared.
func (a *ToolAgent) Continue(ctx context.Context, threadID, input string) (core.State, error) {
	s, err := a.Thread(ctx, threadID)
	if err != nil {
		return s, err
	}
	if input != "" {
		s = s.Append(core.NewUserMessage(input))
	}
	return a.Run(ctx, s, graph.WithThreadID(threadID))
}
