package model

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/agentgraph/core"
)

// ErrScriptExhausted is returned when a ScriptedModel runs out of turns.
var ErrScriptExhausted = errors.New("scripted model has no turns left")

// Turn produces one scripted reply for a request.
type Turn func(req Request) (core.Message, error)

// ScriptedModel is a deterministic in‑memory Model for tests and offline
// demos. It replays a fixed sequence of turns and records every request.
type ScriptedModel struct {
	mu       sync.Mutex
	info     Info
	turns    []Turn
	repeat   bool
	requests []Request
}

// NewScriptedModel constructs a model replying with msgs in order.
func NewScriptedModel(msgs ...core.Message) *ScriptedModel {
	m := &ScriptedModel{info: Info{Name: "scripted", Provider: "scripted", SupportsTools: true}}
	for _, msg := range msgs {
		m.Reply(msg)
	}
	return m
}

// Reply appends a fixed reply.
func (m *ScriptedModel) Reply(msg core.Message) *ScriptedModel {
	return m.Then(func(Request) (core.Message, error) { return msg, nil })
}

// ReplyText appends a plain text reply.
func (m *ScriptedModel) ReplyText(text string) *ScriptedModel {
	return m.Reply(AssistantMessage(core.TextPart{Text: text}))
}

// ReplyCalls appends a reply requesting the given tool calls.
func (m *ScriptedModel) ReplyCalls(calls ...core.FunctionCall) *ScriptedModel {
	parts := make([]core.Part, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: c})
	}
	return m.Reply(AssistantMessage(parts...))
}

// Then appends a turn computed from the request.
func (m *ScriptedModel) Then(turn Turn) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = append(m.turns, turn)
	return m
}

// RepeatLast makes the final turn answer every further request.
func (m *ScriptedModel) RepeatLast() *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.repeat = true
	return m
}

// Requests returns a copy of the requests received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Request(nil), m.requests...)
}

// Calls returns the number of Generate invocations.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.requests)
}

func (m *ScriptedModel) next(req Request) (Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.requests)
	m.requests = append(m.requests, req)

	switch {
	case idx < len(m.turns):
		return m.turns[idx], nil
	case m.repeat && len(m.turns) > 0:
		return m.turns[len(m.turns)-1], nil
	default:
		return nil, ErrScriptExhausted
	}
}

// Generate implements Model; with req.Stream set the text is first emitted
// rune by rune as partial responses.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(respCh)

		turn, err := m.next(req)
		if err != nil {
			errCh <- err
			return
		}
		msg, err := turn(req)
		if err != nil {
			errCh <- err
			return
		}
		msg.Role = core.RoleAssistant

		if req.Stream {
			for _, r := range msg.Text() {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Message: AssistantMessage(core.TextPart{Text: string(r)})}:
				}
			}
		}

		finish := "stop"
		if msg.HasFunctionCalls() {
			finish = "tool_calls"
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{Message: msg, FinishReason: finish}:
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }
