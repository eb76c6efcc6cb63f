package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/model"
)

func TestBuildContents(t *testing.T) {
	msgs := []core.Message{
		core.NewUserMessage("read the pdf"),
		core.NewFunctionCallMessage("agent", "", core.FunctionCall{ID: "c1", Name: "extract_text_from_pdf", Arguments: `{"file_path":"a.pdf"}`}),
		core.NewToolResultMessage("agent", core.FunctionResponse{ID: "c1", Name: "extract_text_from_pdf", Response: "hello"}),
		core.NewAssistantMessage("agent", "It says hello."),
	}

	contents := buildContents(msgs)
	require.Len(t, contents, 4)

	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, "read the pdf", contents[0].Parts[0].Text)

	assert.Equal(t, genai.RoleModel, contents[1].Role)
	fc := contents[1].Parts[0].FunctionCall
	require.NotNil(t, fc)
	assert.Equal(t, "c1", fc.ID)
	assert.Equal(t, "a.pdf", fc.Args["file_path"])

	assert.Equal(t, genai.RoleUser, contents[2].Role)
	fr := contents[2].Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, "c1", fr.ID)
	assert.Equal(t, "hello", fr.Response["output"])

	assert.Equal(t, "It says hello.", contents[3].Parts[0].Text)
}

func TestResponsePayload_Error(t *testing.T) {
	p := responsePayload(core.FunctionResponse{Name: "x", Error: "file not found"})
	assert.Equal(t, "file not found", p["error"])
}

func TestConvertResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		ResponseID: "r1",
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
				{Text: "let me add"},
				{FunctionCall: &genai.FunctionCall{ID: "c9", Name: "add", Args: map[string]any{"a": 1.0, "b": 2.0}}},
			}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 3, CandidatesTokenCount: 4, TotalTokenCount: 7},
	}

	out, err := convertResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "r1", out.ID)
	assert.Equal(t, "tool_calls", out.FinishReason)
	assert.Equal(t, "let me add", out.Message.Text())
	calls := out.Message.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "add", calls[0].Name)
	assert.JSONEq(t, `{"a":1,"b":2}`, calls[0].Arguments)
	assert.Equal(t, &model.TokenUsage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7}, out.Usage)
}

func TestConvertResponse_Empty(t *testing.T) {
	_, err := convertResponse(&genai.GenerateContentResponse{})
	assert.Error(t, err)
}

func TestNormalizeFinish(t *testing.T) {
	assert.Equal(t, "stop", normalizeFinish("", false))
	assert.Equal(t, "length", normalizeFinish(string(genai.FinishReasonMaxTokens), false))
	assert.Equal(t, "tool_calls", normalizeFinish(string(genai.FinishReasonStop), true))
	assert.Equal(t, "safety", normalizeFinish("SAFETY", false))
}

func TestBuildConfig(t *testing.T) {
	m := NewModelFromClient(nil, func(o *Options) { o.MaxOutputTokens = 256 })
	cfg := m.buildConfig(model.Request{
		Instructions: "be helpful",
		Tools: []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
			Name: "add", Description: "adds", Parameters: map[string]any{"type": "object"},
		}}},
	})

	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "be helpful", cfg.SystemInstruction.Parts[0].Text)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.2, *cfg.Temperature, 1e-6)
	assert.Equal(t, int32(256), cfg.MaxOutputTokens)
	require.Len(t, cfg.Tools, 1)
	assert.Equal(t, "add", cfg.Tools[0].FunctionDeclarations[0].Name)
	assert.Equal(t, genai.FunctionCallingConfigModeAuto, cfg.ToolConfig.FunctionCallingConfig.Mode)
	assert.Equal(t, "gemini", m.Info().Provider)
}
