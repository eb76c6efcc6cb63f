package flow

import "github.com/hupe1980/agentgraph/core"

// Decision is the outcome of a continuation check.
type Decision string

const (
	// DecisionModel routes back to the model step.
	DecisionModel Decision = "model"
	// DecisionTools routes to the tool step.
	DecisionTools Decision = "tools"
	// DecisionHuman routes to the human step for the next user turn.
	DecisionHuman Decision = "human"
	// DecisionEnd terminates the run.
	DecisionEnd Decision = "end"
)

// Policy is the continuation predicate of the agent loop. Its decisions
// depend only on the message log, the call counters and its own limits.
type Policy struct {
	// MaxModelCalls ends the run once that many model calls were made (0 = unlimited).
	MaxModelCalls int
	// StopOnCompleted ends the run once a tool reported completion.
	StopOnCompleted bool
	// Human routes replies without tool calls to the human step instead of ending.
	Human bool
}

// Next decides where the run goes after the model replied.
func (p Policy) Next(s core.State) Decision {
	if p.StopOnCompleted && s.Completed {
		return DecisionEnd
	}
	// pending calls always get their results, the ceiling is enforced by AfterTools
	if len(s.PendingCalls()) > 0 {
		return DecisionTools
	}
	if p.limits().ModelCallsExhausted(s.ModelCalls) {
		return DecisionEnd
	}
	if p.Human {
		return DecisionHuman
	}
	return DecisionEnd
}

// AfterTools decides whether the model is called again once tool results
// were recorded.
func (p Policy) AfterTools(s core.State) Decision {
	if p.StopOnCompleted && s.Completed {
		return DecisionEnd
	}
	if p.limits().ModelCallsExhausted(s.ModelCalls) {
		return DecisionEnd
	}
	return DecisionModel
}

func (p Policy) limits() core.Limits {
	return core.Limits{MaxModelCalls: p.MaxModelCalls}
}
