package flow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/tool"
)

// DuplicateCallNotice is appended instead of a reply whose tool calls were
// all issued before.
const DuplicateCallNotice = "Tool already executed. No further action needed."

// ModelStepOptions configures a ModelStep.
type ModelStepOptions struct {
	// Name is recorded as the author of every assistant message.
	Name string
	// Instruction resolves the system instruction per call.
	Instruction InstructionFunc
	// Tools are advertised to the model.
	Tools []tool.Tool
	// HistoryWindow bounds the number of messages sent (0 = all).
	HistoryWindow int
	// Stream requests incremental output; OnPartial receives every chunk.
	Stream    bool
	OnPartial func(model.Response)
	// Limits guards against running past the model call ceiling.
	Limits core.Limits
	Logger logging.Logger
}

// ModelStep sends the windowed conversation to a model and appends its reply.
type ModelStep struct {
	model model.Model
	opts  ModelStepOptions
	defs  []model.ToolDefinition
}

// NewModelStep creates a model step for m.
func NewModelStep(m model.Model, optFns ...func(o *ModelStepOptions)) *ModelStep {
	opts := ModelStepOptions{
		Name:   "agent",
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &ModelStep{
		model: m,
		opts:  opts,
		defs:  tool.Definitions(opts.Tools),
	}
}

// Run performs one model round. The returned state has ModelCalls
// incremented and exactly one new assistant message appended.
func (ms *ModelStep) Run(ctx context.Context, s core.State) (core.State, error) {
	logger := ms.opts.Logger

	if err := ms.opts.Limits.CheckModel(s); err != nil {
		return s, fmt.Errorf("%w: %w", ErrModelCallLimit, err)
	}

	instructions := ""
	if ms.opts.Instruction != nil {
		var err error
		if instructions, err = ms.opts.Instruction(ctx, s); err != nil {
			return s, fmt.Errorf("resolve instruction: %w", err)
		}
	}

	req := model.Request{
		Instructions: instructions,
		Messages:     Window(s.Messages, ms.opts.HistoryWindow),
		Tools:        ms.defs,
		Stream:       ms.opts.Stream,
	}

	logger.Debug("model.request", "agent", ms.opts.Name, "messages", len(req.Messages), "tools", len(req.Tools))

	start := time.Now()
	resp, err := model.Collect(ctx, ms.model, req, ms.opts.OnPartial)
	ms.logCall(resp, time.Since(start), err)
	if err != nil {
		return s, fmt.Errorf("model %s: %w", ms.model.Info().Name, err)
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("model.name", ms.model.Info().Name),
		attribute.String("model.finish_reason", resp.FinishReason),
	)

	ns := s.Clone()
	ns.ModelCalls++

	msg, dropped := ms.prepare(resp.Message, s.IssuedCallIDs())
	if dropped > 0 {
		logger.Warn("model.duplicate_calls.dropped", "agent", ms.opts.Name, "count", dropped)
	}

	return ns.Append(msg), nil
}

// prepare stamps the reply as an assistant message, assigns ids to calls
// lacking one and drops calls whose id was already issued.
func (ms *ModelStep) prepare(msg core.Message, issued map[string]struct{}) (core.Message, int) {
	out := msg
	out.Role = core.RoleAssistant
	out.Author = ms.opts.Name
	if out.ID == "" {
		out.ID = core.NewID()
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now().UTC()
	}

	parts := make([]core.Part, 0, len(msg.Parts))
	seen := make(map[string]struct{})
	calls, dropped := 0, 0
	for _, p := range msg.Parts {
		fcp, ok := p.(core.FunctionCallPart)
		if !ok {
			parts = append(parts, p)
			continue
		}
		if fcp.FunctionCall.ID == "" {
			fcp.FunctionCall.ID = core.NewID()
		}
		id := fcp.FunctionCall.ID
		if _, dup := issued[id]; dup {
			dropped++
			continue
		}
		if _, dup := seen[id]; dup {
			dropped++
			continue
		}
		seen[id] = struct{}{}
		calls++
		parts = append(parts, fcp)
	}
	out.Parts = parts

	if dropped > 0 && calls == 0 && out.Text() == "" {
		out.Parts = []core.Part{core.TextPart{Text: DuplicateCallNotice}}
	}

	return out, dropped
}

func (ms *ModelStep) logCall(resp model.Response, dur time.Duration, err error) {
	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	if gl, ok := ms.opts.Logger.(*logging.GraphLogger); ok {
		gl.LogLLMCall(ms.model.Info().Name, tokens, dur, err == nil, err)
		return
	}
	if err != nil {
		ms.opts.Logger.Error("model.call.error", "agent", ms.opts.Name, "error", err.Error())
		return
	}
	ms.opts.Logger.Debug("model.call.success", "agent", ms.opts.Name, "tokens", tokens, "duration_ms", dur.Milliseconds())
}

// Window returns the last n messages (n <= 0 keeps all), widened back to the
// nearest user turn. Without a user turn at or before the cut only leading
// tool results are dropped; a non-empty log never yields an empty window.
func Window(msgs []core.Message, n int) []core.Message {
	if len(msgs) == 0 {
		return msgs
	}
	start := 0
	if n > 0 && len(msgs) > n {
		start = len(msgs) - n
	}
	for i := start; i >= 0; i-- {
		if msgs[i].Role == core.RoleUser {
			return msgs[i:]
		}
	}
	for start < len(msgs)-1 && msgs[start].Role == core.RoleTool {
		start++
	}
	return msgs[start:]
}
