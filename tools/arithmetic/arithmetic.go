// Package arithmetic provides the four basic arithmetic operations as tools.
package arithmetic

import (
	"errors"
	"fmt"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/tool"
)

var (
	// ErrDivisionByZero is returned when dividing by zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrUnknownOperation is returned for operators other than + - * /.
	ErrUnknownOperation = errors.New("unknown operation")
)

// Operands are the arguments of every arithmetic tool.
type Operands struct {
	A float64 `json:"a" description:"First operand"`
	B float64 `json:"b" description:"Second operand"`
}

// Apply evaluates a op b for op one of + - * /.
func Apply(op string, a, b float64) (float64, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a / b, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
}

func newTool(name, description, op string) tool.Tool {
	return tool.NewTypedTool(name, description, func(_ *core.ToolContext, args Operands) (any, error) {
		return Apply(op, args.A, args.B)
	})
}

// Add returns the add tool.
func Add() tool.Tool { return newTool("add", "Add two numbers: a + b.", "+") }

// Subtract returns the subtract tool.
func Subtract() tool.Tool { return newTool("subtract", "Subtract two numbers: a - b.", "-") }

// Multiply returns the multiply tool.
func Multiply() tool.Tool { return newTool("multiply", "Multiply two numbers: a * b.", "*") }

// Divide returns the divide tool. Division by zero is reported as an error.
func Divide() tool.Tool { return newTool("divide", "Divide two numbers: a / b.", "/") }

// Tools returns all arithmetic tools.
func Tools() []tool.Tool {
	return []tool.Tool{Add(), Subtract(), Multiply(), Divide()}
}
