package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEntryPoint is returned by Compile when no entry point was set.
	ErrNoEntryPoint = errors.New("graph has no entry point")

	// ErrInvalidGraph wraps every structural problem reported by Compile.
	ErrInvalidGraph = errors.New("invalid graph")

	// ErrNoCheckpointer is returned when a checkpoint operation is requested
	// on a graph compiled without a Saver.
	ErrNoCheckpointer = errors.New("graph has no checkpointer")
)

// RecursionLimitError is returned when a run executes more nodes than the
// configured limit without reaching End.
type RecursionLimitError struct {
	Limit int
}

// Error implements the error interface.
func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("recursion limit of %d reached without hitting end", e.Limit)
}

// RouteError is returned when a router yields a key its mapping does not
// contain, or a node name that does not exist.
type RouteError struct {
	Node string
	Key  string
}

// Error implements the error interface.
func (e *RouteError) Error() string {
	return fmt.Sprintf("router of node %q returned unknown route %q", e.Node, e.Key)
}

// NodeError wraps a failure returned by a node function.
type NodeError struct {
	Node string
	Err  error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q: %v", e.Node, e.Err)
}

// Unwrap returns the underlying node failure.
func (e *NodeError) Unwrap() error { return e.Err }
