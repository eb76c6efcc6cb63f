package flow

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/agentgraph/core"
)

// ExitCommand ends a conversation when entered as a user turn.
const ExitCommand = "exit"

// ErrConversationEnded is returned by an InputSource once the user left.
var ErrConversationEnded = errors.New("conversation ended")

// InputSource yields the next user turn.
type InputSource interface {
	Next(ctx context.Context) (string, error)
}

// InputFunc adapts a function to InputSource.
type InputFunc func(ctx context.Context) (string, error)

// Next implements InputSource.
func (f InputFunc) Next(ctx context.Context) (string, error) { return f(ctx) }

// LineReader reads user turns line by line, writing a prompt before each.
type LineReader struct {
	scanner *bufio.Scanner
	prompt  string
	out     io.Writer
}

// NewLineReader creates an input source over r. A non-empty prompt is
// written to out before every read.
func NewLineReader(r io.Reader, out io.Writer, prompt string) *LineReader {
	return &LineReader{scanner: bufio.NewScanner(r), prompt: prompt, out: out}
}

// Next reads the next line. EOF yields ErrConversationEnded.
func (lr *LineReader) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if lr.prompt != "" && lr.out != nil {
		if _, err := fmt.Fprint(lr.out, lr.prompt); err != nil {
			return "", err
		}
	}
	if !lr.scanner.Scan() {
		if err := lr.scanner.Err(); err != nil {
			return "", err
		}
		return "", ErrConversationEnded
	}
	return lr.scanner.Text(), nil
}

// HumanStep appends the next user turn read from an input source. Entering
// ExitCommand or reaching the end of input marks the state Completed. When
// the log already ends with a user turn nothing is read.
type HumanStep struct {
	input InputSource
}

// NewHumanStep creates a human step reading from input.
func NewHumanStep(input InputSource) *HumanStep {
	return &HumanStep{input: input}
}

// Run reads one user turn.
func (hs *HumanStep) Run(ctx context.Context, s core.State) (core.State, error) {
	if last, ok := s.Last(); ok && last.Role == core.RoleUser {
		return s, nil
	}

	text, err := hs.input.Next(ctx)
	if errors.Is(err, ErrConversationEnded) || errors.Is(err, io.EOF) {
		return ended(s), nil
	}
	if err != nil {
		return s, fmt.Errorf("read user input: %w", err)
	}

	text = strings.TrimSpace(text)
	if strings.EqualFold(text, ExitCommand) {
		return ended(s), nil
	}

	return s.Append(core.NewUserMessage(text)), nil
}

func ended(s core.State) core.State {
	ns := s.Clone()
	ns.Completed = true
	return ns
}
