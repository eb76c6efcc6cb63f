package core

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of the conversation log. After it has been appended
// to a State it should be treated as immutable. It captures:
//   - Correlation (ID, Author)
//   - Role and ordered heterogeneous Parts
//   - A UTC timestamp
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Author    string    `json:"author,omitempty"`
	Parts     []Part    `json:"parts"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a bare message with a fresh id and timestamp.
func NewMessage(role string, parts ...Part) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Parts:     parts,
		Timestamp: time.Now().UTC(),
	}
}

// NewSystemMessage creates a system instruction message.
func NewSystemMessage(text string) Message {
	return NewMessage(RoleSystem, TextPart{Text: text})
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(text string) Message {
	m := NewMessage(RoleUser, TextPart{Text: text})
	m.Author = RoleUser
	return m
}

// NewAssistantMessage creates an assistant text message authored by author.
func NewAssistantMessage(author, text string) Message {
	m := NewMessage(RoleAssistant, TextPart{Text: text})
	m.Author = author
	return m
}

// NewFunctionCallMessage creates an assistant message requesting one or more
// tool invocations. text may be empty.
func NewFunctionCallMessage(author, text string, calls ...FunctionCall) Message {
	parts := make([]Part, 0, len(calls)+1)
	if text != "" {
		parts = append(parts, TextPart{Text: text})
	}
	for _, c := range calls {
		parts = append(parts, FunctionCallPart{FunctionCall: c})
	}
	m := NewMessage(RoleAssistant, parts...)
	m.Author = author
	return m
}

// NewToolResultMessage records the outcome of a tool invocation.
func NewToolResultMessage(author string, fr FunctionResponse) Message {
	m := NewMessage(RoleTool, FunctionResponsePart{FunctionResponse: fr})
	m.Author = author
	return m
}

// NewID generates a new unique identifier for messages and tool calls.
func NewID() string { return uuid.NewString() }

// Text concatenates all text parts of the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// FunctionCalls returns the FunctionCall parts preserving their order.
func (m Message) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range m.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// FunctionResponses returns the FunctionResponse parts preserving their order.
func (m Message) FunctionResponses() []FunctionResponse {
	var responses []FunctionResponse
	for _, p := range m.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// HasFunctionCalls reports whether the message requests any tool invocation.
func (m Message) HasFunctionCalls() bool {
	for _, p := range m.Parts {
		if _, ok := p.(FunctionCallPart); ok {
			return true
		}
	}
	return false
}

// clone copies the parts slice so the result can be modified independently.
func (m Message) clone() Message {
	c := m
	c.Parts = append([]Part(nil), m.Parts...)
	return c
}

type messageJSON struct {
	ID        string     `json:"id"`
	Role      string     `json:"role"`
	Author    string     `json:"author,omitempty"`
	Parts     []partJSON `json:"parts"`
	Timestamp time.Time  `json:"timestamp"`
}

// MarshalJSON encodes the message with a type discriminator on every part.
func (m Message) MarshalJSON() ([]byte, error) {
	mj := messageJSON{ID: m.ID, Role: m.Role, Author: m.Author, Timestamp: m.Timestamp, Parts: make([]partJSON, 0, len(m.Parts))}
	for _, p := range m.Parts {
		pj, err := marshalPart(p)
		if err != nil {
			return nil, err
		}
		mj.Parts = append(mj.Parts, pj)
	}
	return json.Marshal(mj)
}

// UnmarshalJSON decodes a message produced by MarshalJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	var mj messageJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return err
	}
	parts := make([]Part, 0, len(mj.Parts))
	for _, pj := range mj.Parts {
		p, err := unmarshalPart(pj)
		if err != nil {
			return err
		}
		parts = append(parts, p)
	}
	*m = Message{ID: mj.ID, Role: mj.Role, Author: mj.Author, Parts: parts, Timestamp: mj.Timestamp}
	return nil
}
