// Package tool implements the function / tool calling subsystem that lets agents
// invoke local capabilities (computations, mail, documents) with schema
// validated arguments, consistent error handling and metadata for model guidance.
package tool

import (
	"fmt"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/internal/util"
)

// Error codes carried by *ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
)

// Tool defines the interface for extending agent capabilities with local functions.
//
// Tools are registered with a tool step so the model can request them by
// name. Every call receives a *core.ToolContext that exposes the state
// snapshot, a logger and the means to stage state changes or mark the task
// completed.
//
// Tool implementations should:
//   - Provide clear, descriptive names (snake_case) and descriptions
//   - Define a JSON schema for their parameters
//   - Report failures as errors; the dispatcher turns them into error results
//   - Be safe for concurrent use when the dispatcher runs calls in parallel
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is provided to the model to help it decide when to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with decoded arguments. The returned value is
	// either plain content or a Result carrying a completion signal.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap exposes the underlying validation or execution error, if any.
func (e *ToolError) Unwrap() error {
	if err, ok := e.Details.(error); ok {
		return err
	}
	return nil
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
