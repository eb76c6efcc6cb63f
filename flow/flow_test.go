package flow

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/internal/testutil"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/tool"
)

type mockTool struct {
	name     string
	delay    time.Duration
	result   any
	err      error
	panicMsg any
	state    map[string]any
	complete bool
	calls    atomic.Int32
}

func (mt *mockTool) Name() string               { return mt.name }
func (mt *mockTool) Description() string        { return "mock tool" }
func (mt *mockTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (mt *mockTool) Call(tc *core.ToolContext, _ map[string]any) (any, error) {
	mt.calls.Add(1)
	if mt.delay > 0 {
		select {
		case <-time.After(mt.delay):
		case <-tc.Context().Done():
			return nil, tc.Context().Err()
		}
	}
	if mt.panicMsg != nil {
		panic(mt.panicMsg)
	}
	for k, v := range mt.state {
		tc.SetState(k, v)
	}
	if mt.complete {
		tc.MarkCompleted()
	}
	return mt.result, mt.err
}

func callState(calls ...core.FunctionCall) core.State {
	return core.NewState(
		core.NewUserMessage("go"),
		core.NewFunctionCallMessage("agent", "", calls...),
	)
}

// -------------------- Window --------------------

func TestWindow(t *testing.T) {
	msgs := []core.Message{
		core.NewUserMessage("q"),
		core.NewFunctionCallMessage("agent", "", core.FunctionCall{ID: "c1", Name: "t"}),
		core.NewToolResultMessage("agent", core.FunctionResponse{ID: "c1", Name: "t", Response: "r"}),
		core.NewAssistantMessage("agent", "a"),
		core.NewUserMessage("q2"),
		core.NewAssistantMessage("agent", "b"),
	}

	assert.Len(t, Window(msgs, 0), 6)
	assert.Len(t, Window(msgs, 10), 6)
	assert.Empty(t, Window(nil, 3))

	w := Window(msgs, 2)
	require.Len(t, w, 2)
	assert.Equal(t, "q2", w[0].Text())

	// the cut lands inside the first exchange and widens back to its user turn
	w = Window(msgs, 3)
	require.Len(t, w, 6)
	assert.Equal(t, core.RoleUser, w[0].Role)
}

func TestWindow_NeverOpensWithCallOrEmpties(t *testing.T) {
	msgs := []core.Message{
		core.NewUserMessage("q"),
		core.NewFunctionCallMessage("agent", "", core.FunctionCall{ID: "c1", Name: "t"}),
		core.NewToolResultMessage("agent", core.FunctionResponse{ID: "c1", Name: "t", Response: "r1"}),
		core.NewFunctionCallMessage("agent", "", core.FunctionCall{ID: "c2", Name: "t"}),
		core.NewToolResultMessage("agent", core.FunctionResponse{ID: "c2", Name: "t", Response: "r2"}),
	}

	for _, n := range []int{1, 2, 3, 4} {
		w := Window(msgs, n)
		require.NotEmpty(t, w, "n=%d", n)
		assert.Equal(t, core.RoleUser, w[0].Role, "n=%d", n)
		assert.Len(t, w, 5, "n=%d", n)
	}

	// without any user turn the window keeps at least the newest message
	orphaned := msgs[1:]
	w := Window(orphaned, 1)
	require.Len(t, w, 1)
	assert.Equal(t, core.RoleTool, w[0].Role)

	w = Window(orphaned, 2)
	require.Len(t, w, 2)
	assert.True(t, w[0].HasFunctionCalls())
}

// -------------------- ModelStep --------------------

func TestModelStep_AppendsReplyAndCounts(t *testing.T) {
	m := model.NewScriptedModel().ReplyText("hello")
	step := NewModelStep(m, func(o *ModelStepOptions) {
		o.Name = "greeter"
		o.Instruction = StaticInstruction("Greet {{.name}}.")
	})

	s := core.NewState(core.NewUserMessage("hi")).With("name", "Bob")
	ns, err := step.Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, 1, ns.ModelCalls)
	require.Len(t, ns.Messages, 2)
	assert.Equal(t, "greeter", ns.Messages[1].Author)
	assert.Equal(t, "hello", ns.FinalText())

	// receiver untouched
	assert.Len(t, s.Messages, 1)
	assert.Equal(t, 0, s.ModelCalls)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Greet Bob.", reqs[0].Instructions)
}

func TestModelStep_AdvertisesToolsAndStreams(t *testing.T) {
	m := model.NewScriptedModel().ReplyText("abc")
	var partials strings.Builder
	step := NewModelStep(m, func(o *ModelStepOptions) {
		o.Tools = []tool.Tool{&mockTool{name: "t1"}}
		o.Stream = true
		o.OnPartial = func(r model.Response) { partials.WriteString(r.Message.Text()) }
	})

	_, err := step.Run(context.Background(), core.NewState(core.NewUserMessage("x")))
	require.NoError(t, err)
	assert.Equal(t, "abc", partials.String())
	require.Len(t, m.Requests()[0].Tools, 1)
	assert.Equal(t, "t1", m.Requests()[0].Tools[0].Function.Name)
}

func TestModelStep_AssignsMissingCallIDs(t *testing.T) {
	m := model.NewScriptedModel().ReplyCalls(core.FunctionCall{Name: "t1", Arguments: "{}"})
	step := NewModelStep(m)

	ns, err := step.Run(context.Background(), core.NewState(core.NewUserMessage("x")))
	require.NoError(t, err)

	calls := ns.PendingCalls()
	require.Len(t, calls, 1)
	assert.NotEmpty(t, calls[0].ID)
}

func TestModelStep_SuppressesDuplicateCalls(t *testing.T) {
	call := core.FunctionCall{ID: "c1", Name: "send_email", Arguments: "{}"}
	s := callState(call).Append(core.NewToolResultMessage("agent", core.FunctionResponse{ID: "c1", Name: "send_email", Response: "sent"}))

	m := model.NewScriptedModel().ReplyCalls(call)
	ns, err := NewModelStep(m).Run(context.Background(), s)
	require.NoError(t, err)

	last, _ := ns.Last()
	assert.False(t, last.HasFunctionCalls())
	assert.Equal(t, DuplicateCallNotice, last.Text())
	assert.Empty(t, ns.PendingCalls())
	assert.Equal(t, 1, ns.ModelCalls)
}

func TestModelStep_KeepsFreshCallsNextToDuplicates(t *testing.T) {
	old := core.FunctionCall{ID: "c1", Name: "t", Arguments: "{}"}
	s := callState(old).Append(core.NewToolResultMessage("agent", core.FunctionResponse{ID: "c1", Name: "t"}))

	fresh := core.FunctionCall{ID: "c2", Name: "t", Arguments: "{}"}
	m := model.NewScriptedModel().ReplyCalls(old, fresh, fresh)
	ns, err := NewModelStep(m).Run(context.Background(), s)
	require.NoError(t, err)

	pending := ns.PendingCalls()
	require.Len(t, pending, 1)
	assert.Equal(t, "c2", pending[0].ID)
}

func TestModelStep_LimitAndErrors(t *testing.T) {
	m := model.NewScriptedModel()
	step := NewModelStep(m, func(o *ModelStepOptions) { o.Limits = core.Limits{MaxModelCalls: 1} })

	s := core.NewState(core.NewUserMessage("x"))
	s.ModelCalls = 1
	_, err := step.Run(context.Background(), s)
	assert.ErrorIs(t, err, ErrModelCallLimit)
	var limitErr *core.LimitError
	assert.ErrorAs(t, err, &limitErr)

	_, err = NewModelStep(m).Run(context.Background(), core.NewState())
	assert.ErrorIs(t, err, model.ErrScriptExhausted)

	bad := NewModelStep(model.NewScriptedModel().ReplyText("x"), func(o *ModelStepOptions) {
		o.Instruction = StaticInstruction("{{.broken")
	})
	_, err = bad.Run(context.Background(), core.NewState())
	assert.ErrorContains(t, err, "resolve instruction")
}

// -------------------- ToolStep --------------------

func TestToolStep_ExecutesPendingCallsInOrder(t *testing.T) {
	fast := &mockTool{name: "fast", result: "f"}
	slow := &mockTool{name: "slow", delay: 30 * time.Millisecond, result: "s"}
	step := NewToolStep([]tool.Tool{fast, slow}, func(o *ToolStepOptions) { o.MaxParallel = 4 })

	s := callState(
		core.FunctionCall{ID: "c1", Name: "slow", Arguments: "{}"},
		core.FunctionCall{ID: "c2", Name: "fast", Arguments: "{}"},
	)
	ns, err := step.Run(context.Background(), s)
	require.NoError(t, err)

	require.Len(t, ns.Messages, 4)
	assert.Equal(t, s.Messages, ns.Messages[:2])
	assert.Equal(t, "c1", ns.Messages[2].FunctionResponses()[0].ID)
	assert.Equal(t, "s", ns.Messages[2].FunctionResponses()[0].Response)
	assert.Equal(t, "c2", ns.Messages[3].FunctionResponses()[0].ID)
	assert.Equal(t, 2, ns.ToolCalls)
	assert.Empty(t, ns.PendingCalls())
}

func TestToolStep_ErrorsBecomeResults(t *testing.T) {
	failing := &mockTool{name: "fail", err: errors.New("boom")}
	panicking := &mockTool{name: "panic", panicMsg: "kaboom"}
	step := NewToolStep([]tool.Tool{failing, panicking})

	s := callState(
		core.FunctionCall{ID: "c1", Name: "fail", Arguments: "{}"},
		core.FunctionCall{ID: "c2", Name: "panic", Arguments: "{}"},
		core.FunctionCall{ID: "c3", Name: "missing", Arguments: "{}"},
		core.FunctionCall{ID: "c4", Name: "fail", Arguments: "{not json"},
	)
	ns, err := step.Run(context.Background(), s)
	require.NoError(t, err)

	var errs []string
	for _, m := range ns.Messages[2:] {
		errs = append(errs, m.FunctionResponses()[0].Error)
	}
	require.Len(t, errs, 4)
	assert.Equal(t, "boom", errs[0])
	assert.Contains(t, errs[1], "kaboom")
	assert.Contains(t, errs[2], "tool missing not found")
	assert.Contains(t, errs[3], "failed to unmarshal args")
	assert.Equal(t, int32(1), failing.calls.Load())
}

func TestToolStep_NeverReexecutesAnsweredCalls(t *testing.T) {
	counter := &mockTool{name: "count", result: 1}
	step := NewToolStep([]tool.Tool{counter})

	s := callState(core.FunctionCall{ID: "c1", Name: "count", Arguments: "{}"})
	ns, err := step.Run(context.Background(), s)
	require.NoError(t, err)

	again, err := step.Run(context.Background(), ns)
	require.NoError(t, err)
	assert.Equal(t, ns.Messages, again.Messages)
	assert.Equal(t, int32(1), counter.calls.Load())
}

func TestToolStep_AppliesDeltasAndCompletion(t *testing.T) {
	writer := &mockTool{name: "update", result: "ok", state: map[string]any{"document": "draft v2"}}
	saver := &mockTool{name: "save", result: tool.Done("saved")}
	step := NewToolStep([]tool.Tool{writer, saver})

	s := callState(core.FunctionCall{ID: "c1", Name: "update"}).With("document", "draft v1")
	ns, err := step.Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "draft v2", ns.String("document"))
	assert.Equal(t, "draft v1", s.String("document"))
	assert.False(t, ns.Completed)

	ns = ns.Append(core.NewFunctionCallMessage("agent", "", core.FunctionCall{ID: "c2", Name: "save"}))
	ns, err = step.Run(context.Background(), ns)
	require.NoError(t, err)
	assert.True(t, ns.Completed)
	last, _ := ns.Last()
	assert.Equal(t, "saved", last.FunctionResponses()[0].Response)
	assert.True(t, last.FunctionResponses()[0].Completed)
}

func TestToolStep_MarkCompletedFromContext(t *testing.T) {
	step := NewToolStep([]tool.Tool{&mockTool{name: "done", complete: true}})
	ns, err := step.Run(context.Background(), callState(core.FunctionCall{ID: "c1", Name: "done"}))
	require.NoError(t, err)
	assert.True(t, ns.Completed)
}

func TestToolStep_ToolCallLimit(t *testing.T) {
	step := NewToolStep([]tool.Tool{&mockTool{name: "t"}}, func(o *ToolStepOptions) {
		o.Limits = core.Limits{MaxToolCalls: 1}
	})
	_, err := step.Run(context.Background(), callState(
		core.FunctionCall{ID: "c1", Name: "t"},
		core.FunctionCall{ID: "c2", Name: "t"},
	))
	var limitErr *core.LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "tool", limitErr.Kind)
}

func TestToolStep_Cancellation(t *testing.T) {
	step := NewToolStep([]tool.Tool{&mockTool{name: "slow", delay: time.Second}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := step.Run(ctx, callState(core.FunctionCall{ID: "c1", Name: "slow"}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToolStep_Timeout(t *testing.T) {
	slow := &mockTool{name: "slow", delay: time.Second, result: "late"}
	step := NewToolStep([]tool.Tool{slow}, func(o *ToolStepOptions) { o.Timeout = 20 * time.Millisecond })

	ns, err := step.Run(context.Background(), callState(core.FunctionCall{ID: "c1", Name: "slow"}))
	require.NoError(t, err)

	last, _ := ns.Last()
	resp := last.FunctionResponses()[0]
	assert.Contains(t, resp.Error, context.DeadlineExceeded.Error())
	assert.Nil(t, resp.Response)
	assert.Equal(t, 1, ns.ToolCalls)
}

func TestToolStep_ParallelCancellationWhileWaitingForSlot(t *testing.T) {
	slow := &mockTool{name: "slow", delay: 5 * time.Second}
	step := NewToolStep([]tool.Tool{slow}, func(o *ToolStepOptions) { o.MaxParallel = 2 })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := step.Run(ctx, callState(
		core.FunctionCall{ID: "c1", Name: "slow"},
		core.FunctionCall{ID: "c2", Name: "slow"},
		core.FunctionCall{ID: "c3", Name: "slow"},
		core.FunctionCall{ID: "c4", Name: "slow"},
	))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestToolStep_GraphLoggerRecordsStackAndBatchTime(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json", Output: &buf})
	step := NewToolStep([]tool.Tool{&mockTool{name: "panic", panicMsg: "kaboom"}}, func(o *ToolStepOptions) {
		o.Logger = logger
	})

	_, err := step.Run(context.Background(), callState(core.FunctionCall{ID: "c1", Name: "panic"}))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"tool.call.panic"`)
	assert.Contains(t, out, `"stack_trace"`)
	assert.Contains(t, out, `"error_type":"*flow.PanicError"`)
	assert.Contains(t, out, `"operation":"tool.batch"`)
}

// -------------------- Policy --------------------

func TestPolicy_Next(t *testing.T) {
	withCalls := testutil.NewStateBuilder().Messages(testutil.Call("c1", "t", `{}`))
	plain := testutil.NewStateBuilder().Messages(testutil.User("q"), testutil.Assistant("a"))

	assert.Equal(t, DecisionTools, Policy{}.Next(withCalls.Build()))
	assert.Equal(t, DecisionEnd, Policy{}.Next(plain.Build()))
	assert.Equal(t, DecisionHuman, Policy{Human: true}.Next(plain.Build()))

	exhausted := plain.ModelCalls(3).Build()
	assert.Equal(t, DecisionEnd, Policy{MaxModelCalls: 3, Human: true}.Next(exhausted))

	done := withCalls.Completed().Build()
	assert.Equal(t, DecisionEnd, Policy{StopOnCompleted: true}.Next(done))
	assert.Equal(t, DecisionTools, Policy{}.Next(done))
}

func TestPolicy_AfterTools(t *testing.T) {
	s := core.NewState()
	assert.Equal(t, DecisionModel, Policy{}.AfterTools(s))

	s.ModelCalls = 2
	assert.Equal(t, DecisionEnd, Policy{MaxModelCalls: 2}.AfterTools(s))
	assert.Equal(t, DecisionModel, Policy{MaxModelCalls: 3}.AfterTools(s))

	s.Completed = true
	assert.Equal(t, DecisionEnd, Policy{StopOnCompleted: true}.AfterTools(s))
}

func TestPolicy_IsPure(t *testing.T) {
	s := callState(core.FunctionCall{ID: "c1", Name: "t"})
	p := Policy{MaxModelCalls: 5}
	before := len(s.Messages)
	for range 3 {
		assert.Equal(t, DecisionTools, p.Next(s))
	}
	assert.Len(t, s.Messages, before)
}

// -------------------- HumanStep --------------------

func TestHumanStep(t *testing.T) {
	var prompts strings.Builder
	step := NewHumanStep(NewLineReader(strings.NewReader("hello\n  EXIT \n"), &prompts, "You: "))

	s, err := step.Run(context.Background(), core.NewState())
	require.NoError(t, err)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, "hello", s.Messages[0].Text())
	assert.False(t, s.Completed)

	s, err = step.Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, s.Completed)
	assert.Len(t, s.Messages, 1)
	assert.Equal(t, "You: You: ", prompts.String())
}

func TestHumanStep_SkipsWhenUserTurnPending(t *testing.T) {
	input := InputFunc(func(context.Context) (string, error) {
		t.Fatal("input must not be read")
		return "", nil
	})
	s := core.NewState(core.NewUserMessage("already asked"))

	ns, err := NewHumanStep(input).Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, s.Messages, ns.Messages)
}

func TestHumanStep_EOFAndErrors(t *testing.T) {
	s, err := NewHumanStep(NewLineReader(strings.NewReader(""), nil, "")).Run(context.Background(), core.NewState())
	require.NoError(t, err)
	assert.True(t, s.Completed)

	boom := errors.New("tty gone")
	_, err = NewHumanStep(InputFunc(func(context.Context) (string, error) { return "", boom })).Run(context.Background(), core.NewState())
	assert.ErrorIs(t, err, boom)
}
