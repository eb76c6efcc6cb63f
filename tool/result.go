package tool

import (
	"github.com/hupe1980/agentgraph/model"
)

// Result is a structured tool result. Completed tells the continuation
// policy that the overall task is finished after this call, e.g. once a
// document has been saved.
type Result struct {
	Content   any  `json:"content"`
	Completed bool `json:"completed,omitempty"`
}

// Done wraps content in a completed Result.
func Done(content any) Result {
	return Result{Content: content, Completed: true}
}

// Unwrap splits a tool return value into its content and completion flag.
func Unwrap(v any) (any, bool) {
	switch r := v.(type) {
	case Result:
		return r.Content, r.Completed
	case *Result:
		if r == nil {
			return nil, false
		}
		return r.Content, r.Completed
	default:
		return v, false
	}
}

// Definitions converts tools into the declarations sent to the model.
func Definitions(tools []Tool) []model.ToolDefinition {
	if len(tools) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// Index maps tools by name. Later tools with a duplicate name win.
func Index(tools []Tool) map[string]Tool {
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
	}
	return byName
}
