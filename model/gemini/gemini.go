// Package gemini provides an implementation of model.Model using the Google
// Gen AI SDK (Gemini API). It adapts the normalized Request/Response
// structures into genai contents and back, including function calling.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/model"
)

// Options configure the Gemini model adapter.
type Options struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	APIKey          string
}

// Model wraps the Gemini GenerateContent API behind the generic model.Model interface.
type Model struct {
	client *genai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       "gemini-2.5-flash",
		Temperature: 0.2,
	}
}

// NewModel creates a Gemini model with a new client. Without an explicit
// APIKey the SDK reads GOOGLE_API_KEY / GEMINI_API_KEY from the environment.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements unified streaming / non-streaming generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(out)

		contents := buildContents(req.Messages)
		if len(contents) == 0 {
			errCh <- errors.New("gemini: no contents provided")
			return
		}
		cfg := m.buildConfig(req)

		if req.Stream {
			m.handleStreaming(ctx, contents, cfg, out, errCh)
			return
		}

		resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, cfg)
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}
		final, err := convertResponse(resp)
		if err != nil {
			errCh <- err
			return
		}
		out <- final
	}()

	return out, errCh
}

func (m *Model) handleStreaming(
	ctx context.Context,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
	out chan<- model.Response,
	errCh chan<- error,
) {
	var (
		text   strings.Builder
		calls  []core.Part
		finish string
		usage  *model.TokenUsage
	)

	for chunk, err := range m.client.Models.GenerateContentStream(ctx, m.opts.Model, contents, cfg) {
		if err != nil {
			errCh <- fmt.Errorf("gemini streaming error: %w", err)
			return
		}
		if u := convertUsage(chunk); u != nil {
			usage = u
		}
		if len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil {
			continue
		}
		cand := chunk.Candidates[0]
		if cand.FinishReason != "" {
			finish = string(cand.FinishReason)
		}
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" && !part.Thought {
				text.WriteString(part.Text)
				out <- model.Response{Partial: true, Message: model.AssistantMessage(core.TextPart{Text: part.Text})}
			}
			if part.FunctionCall != nil {
				calls = append(calls, functionCallPart(part.FunctionCall))
			}
		}
	}

	parts := make([]core.Part, 0, len(calls)+1)
	if text.Len() > 0 {
		parts = append(parts, core.TextPart{Text: text.String()})
	}
	parts = append(parts, calls...)
	out <- model.Response{
		Message:      model.AssistantMessage(parts...),
		FinishReason: normalizeFinish(finish, len(calls) > 0),
		Usage:        usage,
	}
}

func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}

	if req.Instructions != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.Instructions, genai.RoleUser)
	}
	if m.opts.Temperature > 0 {
		temp := m.opts.Temperature
		cfg.Temperature = &temp
	}
	if m.opts.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = m.opts.MaxOutputTokens
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, td := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 td.Function.Name,
				Description:          td.Function.Description,
				ParametersJsonSchema: td.Function.Parameters,
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		cfg.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto},
		}
	}
	return cfg
}

// buildContents converts the conversation into genai contents. System
// messages inside the log are folded into user turns since Gemini only
// accepts a single system instruction.
func buildContents(msgs []core.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case core.RoleAssistant:
			parts := make([]*genai.Part, 0, len(msg.Parts))
			for _, p := range msg.Parts {
				switch v := p.(type) {
				case core.TextPart:
					if v.Text != "" {
						parts = append(parts, genai.NewPartFromText(v.Text))
					}
				case core.FunctionCallPart:
					part := genai.NewPartFromFunctionCall(v.FunctionCall.Name, decodeArgs(v.FunctionCall.Arguments))
					part.FunctionCall.ID = v.FunctionCall.ID
					parts = append(parts, part)
				}
			}
			if len(parts) == 0 {
				parts = append(parts, genai.NewPartFromText(""))
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
		case core.RoleTool:
			parts := make([]*genai.Part, 0, len(msg.Parts))
			for _, fr := range msg.FunctionResponses() {
				part := genai.NewPartFromFunctionResponse(fr.Name, responsePayload(fr))
				part.FunctionResponse.ID = fr.ID
				parts = append(parts, part)
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
			}
		default:
			if text := msg.Text(); text != "" {
				contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
			}
		}
	}
	return contents
}

func decodeArgs(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{"input": raw}
	}
	return args
}

func responsePayload(fr core.FunctionResponse) map[string]any {
	if fr.Error != "" {
		return map[string]any{"error": fr.Error}
	}
	if m, ok := fr.Response.(map[string]any); ok {
		return m
	}
	return map[string]any{"output": fr.Text()}
}

func functionCallPart(fc *genai.FunctionCall) core.Part {
	args, err := json.Marshal(fc.Args)
	if err != nil || fc.Args == nil {
		args = []byte("{}")
	}
	return core.FunctionCallPart{FunctionCall: core.FunctionCall{
		ID:        fc.ID,
		Name:      fc.Name,
		Arguments: string(args),
	}}
}

func convertResponse(resp *genai.GenerateContentResponse) (model.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return model.Response{}, fmt.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return model.Response{}, errors.New("gemini: no candidates returned")
	}

	cand := resp.Candidates[0]
	var (
		parts    []core.Part
		text     strings.Builder
		hasCalls bool
	)
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" && !part.Thought {
				text.WriteString(part.Text)
			}
			if part.FunctionCall != nil {
				parts = append(parts, functionCallPart(part.FunctionCall))
				hasCalls = true
			}
		}
	}
	if text.Len() > 0 {
		parts = append([]core.Part{core.TextPart{Text: text.String()}}, parts...)
	}

	return model.Response{
		ID:           resp.ResponseID,
		Message:      model.AssistantMessage(parts...),
		FinishReason: normalizeFinish(string(cand.FinishReason), hasCalls),
		Usage:        convertUsage(resp),
	}, nil
}

func convertUsage(resp *genai.GenerateContentResponse) *model.TokenUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return nil
	}
	u := resp.UsageMetadata
	return &model.TokenUsage{
		PromptTokens:     int(u.PromptTokenCount),
		CompletionTokens: int(u.CandidatesTokenCount),
		TotalTokens:      int(u.TotalTokenCount),
	}
}

func normalizeFinish(reason string, hasCalls bool) string {
	if hasCalls {
		return "tool_calls"
	}
	switch reason {
	case "", string(genai.FinishReasonStop):
		return "stop"
	case string(genai.FinishReasonMaxTokens):
		return "length"
	default:
		return strings.ToLower(reason)
	}
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "gemini",
		SupportsTools: true,
	}
}
