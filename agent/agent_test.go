package agent

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/checkpoint"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/flow"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/tool"
)

type pathArgs struct {
	FilePath string `json:"file_path"`
}

func countingExtractTool(calls *atomic.Int32) tool.Tool {
	return tool.NewTypedTool("extract_text_from_pdf", "Extract text", func(_ *core.ToolContext, args pathArgs) (any, error) {
		calls.Add(1)
		return "The invoice total is 42 EUR.", nil
	})
}

// -------------------- Instruction --------------------

func TestInstruction(t *testing.T) {
	ctx := context.Background()
	s := core.NewState().With("document", "draft")

	static := NewInstructionFromText("Current document: {{.document}}")
	assert.True(t, static.IsStatic())
	text, err := static.Resolve(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "Current document: draft", text)

	dynamic := NewInstructionFromFunc(func(_ context.Context, s core.State) (string, error) {
		return "len={{len .document}} calls=" + string(rune('0'+s.ModelCalls)), nil
	})
	assert.False(t, dynamic.IsStatic())
	text, err = dynamic.Resolve(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "len=5 calls=0", text)

	boom := errors.New("boom")
	_, err = NewInstructionFromProvider(Func(func(context.Context, core.State) (string, error) { return "", boom })).Resolve(ctx, s)
	assert.ErrorIs(t, err, boom)

	assert.True(t, Instruction{}.IsZero())
}

// -------------------- ToolAgent --------------------

func TestToolAgent_TwoModelCallsOneToolCall(t *testing.T) {
	var toolCalls atomic.Int32
	m := model.NewScriptedModel().
		ReplyCalls(core.FunctionCall{ID: "call_1", Name: "extract_text_from_pdf", Arguments: `{"file_path":"invoice.pdf"}`}).
		ReplyText("The total is 42 EUR.")

	a, err := NewToolAgent("pdf_qa", m, func(o *ToolAgentOptions) {
		o.Tools = []tool.Tool{countingExtractTool(&toolCalls)}
	})
	require.NoError(t, err)

	out, err := a.Invoke(context.Background(), "What is the total?", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, m.Calls())
	assert.Equal(t, 2, out.ModelCalls)
	assert.Equal(t, int32(1), toolCalls.Load())
	assert.Equal(t, 1, out.ToolCalls)
	assert.Equal(t, "The total is 42 EUR.", out.FinalText())

	roles := make([]string, 0, len(out.Messages))
	for _, msg := range out.Messages {
		roles = append(roles, msg.Role)
	}
	assert.Equal(t, []string{core.RoleUser, core.RoleAssistant, core.RoleTool, core.RoleAssistant}, roles)

	// the tool result reached the second model call
	second := m.Requests()[1]
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, "The invoice total is 42 EUR.", last.FunctionResponses()[0].Response)
}

func TestToolAgent_CeilingTerminatesLoopingModel(t *testing.T) {
	var n atomic.Int32
	// a model that requests a fresh call forever
	m := model.NewScriptedModel().Then(func(model.Request) (core.Message, error) {
		id := n.Add(1)
		return model.AssistantMessage(core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        "call_" + string(rune('a'+id)),
			Name:      "noop",
			Arguments: "{}",
		}}), nil
	}).RepeatLast()

	noop := tool.NewFunctionTool("noop", "does nothing", map[string]any{"type": "object"}, func(*core.ToolContext, map[string]any) (any, error) {
		return "ok", nil
	})

	for _, limit := range []int{1, 3, 7} {
		a, err := NewToolAgent("looper", m, func(o *ToolAgentOptions) {
			o.Tools = []tool.Tool{noop}
			o.MaxModelCalls = limit
		})
		require.NoError(t, err)

		before := m.Calls()
		out, err := a.Invoke(context.Background(), "loop", nil)
		require.NoError(t, err)
		assert.Equal(t, limit, m.Calls()-before)
		assert.Equal(t, limit, out.ModelCalls)
		assert.Empty(t, out.PendingCalls())
	}
}

func TestToolAgent_DuplicateCallNeverReexecutes(t *testing.T) {
	var sent atomic.Int32
	send := tool.NewFunctionTool("send_email", "send", map[string]any{"type": "object"}, func(*core.ToolContext, map[string]any) (any, error) {
		sent.Add(1)
		return "Email sent", nil
	})

	call := core.FunctionCall{ID: "call_send", Name: "send_email", Arguments: "{}"}
	// the model keeps re-issuing the same call id
	m := model.NewScriptedModel().ReplyCalls(call).RepeatLast()

	a, err := NewToolAgent("mailer", m, func(o *ToolAgentOptions) {
		o.Tools = []tool.Tool{send}
	})
	require.NoError(t, err)

	out, err := a.Invoke(context.Background(), "send it once", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), sent.Load())
	assert.Equal(t, 2, m.Calls())
	assert.Equal(t, flow.DuplicateCallNotice, out.FinalText())
}

func TestToolAgent_StopsOnCompletedResult(t *testing.T) {
	save := tool.NewFunctionTool("save", "save", map[string]any{"type": "object"}, func(*core.ToolContext, map[string]any) (any, error) {
		return tool.Done("Document saved"), nil
	})
	m := model.NewScriptedModel().ReplyCalls(core.FunctionCall{ID: "c1", Name: "save", Arguments: "{}"}).ReplyText("unreachable")

	a, err := NewToolAgent("drafter", m, func(o *ToolAgentOptions) { o.Tools = []tool.Tool{save} })
	require.NoError(t, err)

	out, err := a.Invoke(context.Background(), "save", nil)
	require.NoError(t, err)
	assert.True(t, out.Completed)
	assert.Equal(t, 1, m.Calls())
}

func TestToolAgent_HumanLoop(t *testing.T) {
	m := model.NewScriptedModel().ReplyText("Hi Alice!").ReplyText("Bye!")
	input := flow.NewLineReader(strings.NewReader("hello, I am Alice\nsee you\nexit\n"), nil, "")

	a, err := NewToolAgent("chat", m, func(o *ToolAgentOptions) {
		o.Input = input
		o.MaxModelCalls = 0
	})
	require.NoError(t, err)
	assert.Contains(t, a.Graph().Nodes(), NodeHuman)
	assert.True(t, a.Policy().Human)

	out, err := a.Invoke(context.Background(), "", nil)
	require.NoError(t, err)
	assert.True(t, out.Completed)
	assert.Equal(t, 2, out.ModelCalls)

	texts := make([]string, 0, len(out.Messages))
	for _, msg := range out.Messages {
		texts = append(texts, msg.Text())
	}
	assert.Equal(t, []string{"hello, I am Alice", "Hi Alice!", "see you", "Bye!"}, texts)

	// the second request saw the whole conversation
	assert.Len(t, m.Requests()[1].Messages, 3)
}

func TestToolAgent_ContinueThread(t *testing.T) {
	ctx := context.Background()
	saver := checkpoint.NewInMemorySaver()
	m := model.NewScriptedModel().ReplyText("first answer").ReplyText("second answer")

	a, err := NewToolAgent("chat", m, func(o *ToolAgentOptions) { o.Checkpointer = saver })
	require.NoError(t, err)

	_, err = a.Continue(ctx, "thread-1", "first question")
	require.NoError(t, err)
	out, err := a.Continue(ctx, "thread-1", "second question")
	require.NoError(t, err)

	require.Len(t, out.Messages, 4)
	assert.Equal(t, "second answer", out.FinalText())
	assert.Equal(t, 1, out.ModelCalls)

	latest, err := a.Graph().LatestState(ctx, "thread-1")
	require.NoError(t, err)
	assert.Len(t, latest.Messages, 4)
}

func TestToolAgent_ModelErrorSurfaces(t *testing.T) {
	boom := errors.New("quota exceeded")
	m := model.NewScriptedModel().Then(func(model.Request) (core.Message, error) { return core.Message{}, boom })

	a, err := NewToolAgent("broken", m)
	require.NoError(t, err)

	_, err = a.Invoke(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, boom)
	var nodeErr *graph.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, NodeModel, nodeErr.Node)
}

// -------------------- StructuredAgent --------------------

type superhero struct {
	CodeName    string `json:"code_name"`
	Description string `json:"description"`
}

func (s superhero) Validate() error {
	if s.CodeName == "" {
		return errors.New("code_name is required")
	}
	return nil
}

func TestStructuredAgent(t *testing.T) {
	m := model.NewScriptedModel().ReplyText("```json\n{\"code_name\":\"Night Owl\",\"description\":\"Sees in the dark.\"}\n```")

	a, err := NewStructuredAgent[superhero]("superhero", m, func(o *StructuredAgentOptions) {
		o.Instruction = NewInstructionFromText("Invent a superhero called {{.name}}.")
		o.OutputKey = "hero"
	})
	require.NoError(t, err)

	hero, err := a.Invoke(context.Background(), "go", map[string]any{"name": "Owl"})
	require.NoError(t, err)
	assert.Equal(t, "Night Owl", hero.CodeName)

	instructions := m.Requests()[0].Instructions
	assert.True(t, strings.HasPrefix(instructions, "Invent a superhero called Owl."))
	assert.Contains(t, instructions, `"code_name"`)
}

func TestStructuredAgent_Malformed(t *testing.T) {
	replies := []string{
		"Sure! Here is your hero: {\"code_name\":\"x\",\"description\":\"y\"}",
		`{"code_name":"x","description":"y","power":"z"}`,
		`{"code_name":"","description":"y"}`,
	}
	for _, reply := range replies {
		m := model.NewScriptedModel().ReplyText(reply)
		a, err := NewStructuredAgent[superhero]("superhero", m, func(o *StructuredAgentOptions) { o.SchemaHint = false })
		require.NoError(t, err)

		_, err = a.Invoke(context.Background(), "go", nil)
		var malformed *model.MalformedOutputError
		require.ErrorAs(t, err, &malformed, reply)
		assert.Equal(t, reply, malformed.Output)
	}
}
