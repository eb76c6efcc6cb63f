package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/tool"
)

// ToolStepOptions configures a ToolStep.
type ToolStepOptions struct {
	// Name is recorded as the author of every tool result message.
	Name string
	// MaxParallel bounds concurrent calls. 0 or 1 runs calls sequentially.
	MaxParallel int
	// Timeout bounds a single call (0 = no limit).
	Timeout time.Duration
	// Limits rejects a batch that would exceed the tool call ceiling.
	Limits core.Limits
	Logger logging.Logger
}

// ToolStep executes the pending tool calls of the last assistant message and
// appends one result message per call in call order.
type ToolStep struct {
	tools map[string]tool.Tool
	opts  ToolStepOptions
}

// NewToolStep creates a dispatcher for tools.
func NewToolStep(tools []tool.Tool, optFns ...func(o *ToolStepOptions)) *ToolStep {
	opts := ToolStepOptions{
		Name:   "agent",
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &ToolStep{tools: tool.Index(tools), opts: opts}
}

type callOutcome struct {
	response core.FunctionResponse
	delta    map[string]any
}

// Run executes every pending call exactly once. Calls already answered in
// the log are skipped. Tool failures are recorded as error results; only
// context cancellation and the tool call ceiling fail the step.
func (ts *ToolStep) Run(ctx context.Context, s core.State) (core.State, error) {
	calls := s.PendingCalls()
	if len(calls) == 0 {
		return s, nil
	}
	if err := ts.opts.Limits.CheckTool(s, len(calls)); err != nil {
		return s, err
	}

	outcomes := ts.execute(ctx, s, calls)
	if err := ctx.Err(); err != nil {
		return s, err
	}

	ns := s
	delta := map[string]any{}
	completed := false
	for _, oc := range outcomes {
		ns = ns.Append(core.NewToolResultMessage(ts.opts.Name, oc.response))
		maps.Copy(delta, oc.delta)
		completed = completed || oc.response.Completed
	}
	ns = ns.WithValues(delta)
	ns.ToolCalls += len(calls)
	if completed {
		ns.Completed = true
	}

	return ns, nil
}

// execute runs calls with bounded parallelism and returns outcomes indexed
// like calls.
func (ts *ToolStep) execute(ctx context.Context, s core.State, calls []core.FunctionCall) []callOutcome {
	n := len(calls)
	results := make([]callOutcome, n)

	maxPar := ts.opts.MaxParallel
	if maxPar <= 0 {
		maxPar = 1
	}
	if maxPar > n {
		maxPar = n
	}

	batchStart := time.Now()
	if gl, ok := ts.opts.Logger.(*logging.GraphLogger); ok {
		defer gl.WithComponent("tool").StartTimer("tool.batch")()
	}
	if maxPar == 1 {
		for i, fc := range calls {
			if ctx.Err() != nil {
				break
			}
			results[i] = ts.executeOne(ctx, s, fc)
		}
	} else {
		var wg sync.WaitGroup
		sem := make(chan struct{}, maxPar)
	dispatch:
		for i, fc := range calls {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				break dispatch
			}
			wg.Add(1)
			go func(idx int, fc core.FunctionCall) {
				defer wg.Done()
				defer func() { <-sem }()
				results[idx] = ts.executeOne(ctx, s, fc)
			}(i, fc)
		}
		wg.Wait()
	}

	ts.opts.Logger.Debug(
		"tool.batch.complete",
		"agent", ts.opts.Name,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results
}

func (ts *ToolStep) executeOne(ctx context.Context, s core.State, fc core.FunctionCall) callOutcome {
	if ts.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ts.opts.Timeout)
		defer cancel()
	}

	toolCtx := core.NewToolContext(ctx, s, ts.opts.Name, fc.ID, ts.opts.Logger)

	start := time.Now()
	var (
		result any
		err    error
	)
	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
				if gl, ok := ts.opts.Logger.(*logging.GraphLogger); ok {
					gl.WithComponent("tool").ErrorWithStack(err, "tool.call.panic", "agent", ts.opts.Name, "tool", fc.Name)
				} else {
					ts.opts.Logger.Error("tool.call.panic", "agent", ts.opts.Name, "tool", fc.Name, "recover", r)
				}
			}
		}()
		result, err = ts.call(toolCtx, fc)
	}()
	dur := time.Since(start)

	if gl, ok := ts.opts.Logger.(*logging.GraphLogger); ok {
		gl.LogToolCall(fc.Name, dur, err == nil, err)
	} else {
		ts.opts.Logger.Info("tool.call.executed", "agent", ts.opts.Name, "tool", fc.Name, "duration_ms", dur.Milliseconds(), "error", err != nil)
	}

	resp := core.FunctionResponse{ID: fc.ID, Name: fc.Name}
	if err != nil {
		resp.Error = err.Error()
		return callOutcome{response: resp}
	}

	content, completed := tool.Unwrap(result)
	resp.Response = content
	resp.Completed = completed || toolCtx.Completed()

	return callOutcome{response: resp, delta: toolCtx.Delta()}
}

// call centralizes tool lookup, argument decoding and execution.
func (ts *ToolStep) call(toolCtx *core.ToolContext, fc core.FunctionCall) (any, error) {
	impl, ok := ts.tools[fc.Name]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", fc.Name)
	}

	argMap := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &argMap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", err)
		}
	}

	return impl.Call(toolCtx, argMap)
}

// panicError converts a recovered panic value to an error.
func panicError(r any) error { return &PanicError{Value: r, Stack: debug.Stack()} }

// PanicError reports a panic recovered from a tool.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string { return fmt.Sprintf("panic recovered: %v", p.Value) }
