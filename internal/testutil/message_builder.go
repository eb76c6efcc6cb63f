package testutil

import (
	"time"

	"github.com/hupe1980/agentgraph/core"
)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder().Author("agent").AssistantText("hello").Call("c1", "add", `{"a":1,"b":2}`).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MessageBuilder struct {
	id        string
	author    string
	role      string
	parts     []core.Part
	timestamp time.Time
}

// NewMessageBuilder creates a builder with default author "agent".
func NewMessageBuilder() *MessageBuilder { return &MessageBuilder{author: "agent"} }

// ID overrides the generated message ID (chainable).
func (b *MessageBuilder) ID(id string) *MessageBuilder { b.id = id; return b }

// Author sets the author name (chainable).
func (b *MessageBuilder) Author(a string) *MessageBuilder { b.author = a; return b }

// At sets the timestamp (chainable).
func (b *MessageBuilder) At(t time.Time) *MessageBuilder { b.timestamp = t; return b }

// UserText appends a text part and sets the role to user (chainable).
func (b *MessageBuilder) UserText(t string) *MessageBuilder {
	b.role = core.RoleUser
	b.author = core.RoleUser
	b.parts = append(b.parts, core.TextPart{Text: t})
	return b
}

// AssistantText appends a text part and sets the role to assistant (chainable).
func (b *MessageBuilder) AssistantText(t string) *MessageBuilder {
	b.role = core.RoleAssistant
	b.parts = append(b.parts, core.TextPart{Text: t})
	return b
}

// Call appends a function call part and sets the role to assistant (chainable).
func (b *MessageBuilder) Call(id, name, args string) *MessageBuilder {
	b.role = core.RoleAssistant
	b.parts = append(b.parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args}})
	return b
}

// Result appends a function response part and sets the role to tool (chainable).
func (b *MessageBuilder) Result(id, name string, result any, err error) *MessageBuilder {
	fr := core.FunctionResponse{ID: id, Name: name, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	b.role = core.RoleTool
	b.parts = append(b.parts, core.FunctionResponsePart{FunctionResponse: fr})
	return b
}

// AddPart appends a custom part (chainable).
func (b *MessageBuilder) AddPart(p core.Part) *MessageBuilder {
	b.parts = append(b.parts, p)
	return b
}

// Build constructs the core.Message. The role defaults to assistant.
func (b *MessageBuilder) Build() core.Message {
	role := b.role
	if role == "" {
		role = core.RoleAssistant
	}
	msg := core.NewMessage(role, append([]core.Part(nil), b.parts...)...)
	msg.Author = b.author
	if b.id != "" {
		msg.ID = b.id
	}
	if !b.timestamp.IsZero() {
		msg.Timestamp = b.timestamp
	}
	return msg
}

// User is a shortcut for a user text message.
func User(text string) core.Message { return NewMessageBuilder().UserText(text).Build() }

// Assistant is a shortcut for an assistant text message.
func Assistant(text string) core.Message { return NewMessageBuilder().AssistantText(text).Build() }

// Call is a shortcut for an assistant message requesting a single tool call.
func Call(id, name, args string) core.Message { return NewMessageBuilder().Call(id, name, args).Build() }

// Result is a shortcut for a successful tool result message.
func Result(id, name string, result any) core.Message {
	return NewMessageBuilder().Result(id, name, result, nil).Build()
}
