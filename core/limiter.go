package core

import "fmt"

// Limits bounds the amount of work a single run may perform. A zero field
// means unlimited.
type Limits struct {
	MaxModelCalls int
	MaxToolCalls  int
}

// LimitError signals that a run reached one of its ceilings.
type LimitError struct {
	Kind string
	Max  int
}

// Error implements the error interface.
func (e *LimitError) Error() string {
	return fmt.Sprintf("exceeded max %s calls: %d", e.Kind, e.Max)
}

// ModelCallsRemaining returns how many model calls are left for s, or -1 if
// unlimited.
func (l Limits) ModelCallsRemaining(s State) int {
	if l.MaxModelCalls <= 0 {
		return -1
	}
	return max(l.MaxModelCalls-s.ModelCalls, 0)
}

// CheckModel returns a *LimitError when another model call would exceed the
// ceiling.
func (l Limits) CheckModel(s State) error {
	if l.MaxModelCalls > 0 && s.ModelCalls >= l.MaxModelCalls {
		return &LimitError{Kind: "model", Max: l.MaxModelCalls}
	}
	return nil
}

// CheckTool returns a *LimitError when n more tool calls would exceed the
// ceiling.
func (l Limits) CheckTool(s State, n int) error {
	if l.MaxToolCalls > 0 && s.ToolCalls+n > l.MaxToolCalls {
		return &LimitError{Kind: "tool", Max: l.MaxToolCalls}
	}
	return nil
}

// ModelCallsExhausted reports whether n model calls reach the ceiling.
func (l Limits) ModelCallsExhausted(n int) bool {
	return l.MaxModelCalls > 0 && n >= l.MaxModelCalls
}
