package core

import (
	"encoding/json"
	"fmt"
	"maps"
)

// State is the value threaded through a graph run. It carries the
// append-only conversation log, a flat key/value scratchpad used by
// instructions and tools, and the counters the continuation policy reads.
//
// Every method that changes something returns a new State; the receiver is
// never mutated, so a State handed to a node can be retained safely.
type State struct {
	Messages   []Message      `json:"messages"`
	Values     map[string]any `json:"values,omitempty"`
	ModelCalls int            `json:"model_calls"`
	ToolCalls  int            `json:"tool_calls"`
	Completed  bool           `json:"completed,omitempty"`
}

// NewState creates a state seeded with the given messages.
func NewState(msgs ...Message) State {
	return State{Messages: append([]Message(nil), msgs...)}
}

// Append returns a new state with msgs added to the end of the log.
func (s State) Append(msgs ...Message) State {
	ns := s.Clone()
	for _, m := range msgs {
		ns.Messages = append(ns.Messages, m.clone())
	}
	return ns
}

// With returns a new state with key set to value.
func (s State) With(key string, value any) State {
	ns := s.Clone()
	if ns.Values == nil {
		ns.Values = map[string]any{}
	}
	ns.Values[key] = value
	return ns
}

// WithValues returns a new state with every entry of delta applied.
func (s State) WithValues(delta map[string]any) State {
	if len(delta) == 0 {
		return s
	}
	ns := s.Clone()
	if ns.Values == nil {
		ns.Values = make(map[string]any, len(delta))
	}
	maps.Copy(ns.Values, delta)
	return ns
}

// Value returns the scratchpad entry stored under key.
func (s State) Value(key string) (any, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// String returns the scratchpad entry stored under key formatted as text.
// Missing keys yield an empty string.
func (s State) String(key string) string {
	v, ok := s.Values[key]
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", v)
}

// Last returns the most recent message.
func (s State) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LastAssistant returns the most recent assistant message.
func (s State) LastAssistant() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// FinalText returns the text of the most recent assistant message.
func (s State) FinalText() string {
	m, ok := s.LastAssistant()
	if !ok {
		return ""
	}
	return m.Text()
}

// IssuedCallIDs returns the set of tool call ids any assistant message has
// requested so far.
func (s State) IssuedCallIDs() map[string]struct{} {
	ids := map[string]struct{}{}
	for _, m := range s.Messages {
		for _, fc := range m.FunctionCalls() {
			if fc.ID != "" {
				ids[fc.ID] = struct{}{}
			}
		}
	}
	return ids
}

// AnsweredCallIDs returns the set of tool call ids that already have a
// recorded result.
func (s State) AnsweredCallIDs() map[string]struct{} {
	ids := map[string]struct{}{}
	for _, m := range s.Messages {
		for _, fr := range m.FunctionResponses() {
			if fr.ID != "" {
				ids[fr.ID] = struct{}{}
			}
		}
	}
	return ids
}

// PendingCalls returns the calls of the last message that have no recorded
// result yet. Only the last message is inspected: once anything follows an
// assistant turn its calls are considered handled.
func (s State) PendingCalls() []FunctionCall {
	last, ok := s.Last()
	if !ok || last.Role != RoleAssistant {
		return nil
	}
	calls := last.FunctionCalls()
	if len(calls) == 0 {
		return nil
	}
	answered := s.AnsweredCallIDs()
	pending := make([]FunctionCall, 0, len(calls))
	for _, fc := range calls {
		if _, done := answered[fc.ID]; done {
			continue
		}
		pending = append(pending, fc)
	}
	return pending
}

// Clone returns a copy whose slices and maps can be modified independently.
// Messages are shared by value; their part slices are copied lazily by
// Append.
func (s State) Clone() State {
	ns := s
	ns.Messages = append(make([]Message, 0, len(s.Messages)+1), s.Messages...)
	if s.Values != nil {
		ns.Values = maps.Clone(s.Values)
	}
	return ns
}

// Marshal encodes the state as JSON.
func (s State) Marshal() ([]byte, error) { return json.Marshal(s) }

// UnmarshalState decodes a state produced by Marshal.
func UnmarshalState(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, err
	}
	return s, nil
}
