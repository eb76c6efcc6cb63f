package graph

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentgraph/checkpoint"
	"github.com/hupe1980/agentgraph/logging"
)

const scopeName = "github.com/hupe1980/agentgraph/graph"

// Graph is a compiled, immutable StateGraph. It is safe for concurrent use;
// every run works on its own state value.
type Graph[S any] struct {
	name         string
	nodes        map[string]NodeFunc[S]
	order        []string
	edges        map[string]string
	branches     map[string]branch[S]
	entry        string
	limit        int
	logger       logging.Logger
	checkpointer checkpoint.Saver
}

// Step reports one executed node.
type Step[S any] struct {
	// Index counts node executions of the thread, starting at 1.
	Index int
	// Node is the node that ran.
	Node string
	// Next is the node that runs after it, or End.
	Next string
	// State is the state the node returned.
	State S
}

// RunOptions configures a single run.
type RunOptions struct {
	// ThreadID keys checkpoints. Without it nothing is persisted.
	ThreadID string
	// RecursionLimit overrides the compiled limit for this run.
	RecursionLimit int
}

// WithThreadID sets the checkpoint thread of a run.
func WithThreadID(id string) func(o *RunOptions) {
	return func(o *RunOptions) { o.ThreadID = id }
}

// WithRunRecursionLimit overrides the recursion limit of a single run.
func WithRunRecursionLimit(n int) func(o *RunOptions) {
	return func(o *RunOptions) { o.RecursionLimit = n }
}

// Name returns the graph name.
func (g *Graph[S]) Name() string { return g.name }

// Nodes returns the node names in registration order.
func (g *Graph[S]) Nodes() []string { return slices.Clone(g.order) }

// Invoke runs the graph from the entry point until End and returns the
// final state. On error the last successfully produced state is returned
// alongside it.
//
// A run on a thread that already has checkpoints numbers its steps after the
// latest one, so a thread can span several invocations.
func (g *Graph[S]) Invoke(ctx context.Context, state S, optFns ...func(o *RunOptions)) (S, error) {
	opts := g.runOptions(optFns)
	offset, err := g.threadOffset(ctx, opts.ThreadID)
	if err != nil {
		return state, err
	}
	return g.run(ctx, g.entry, offset, state, opts, nil)
}

// Stream runs the graph in a goroutine and emits a Step after every node.
// The step channel is closed when the run ends; the error channel then
// yields at most one error and is closed as well.
func (g *Graph[S]) Stream(ctx context.Context, state S, optFns ...func(o *RunOptions)) (<-chan Step[S], <-chan error) {
	steps := make(chan Step[S])
	errc := make(chan error, 1)
	opts := g.runOptions(optFns)

	go func() {
		defer close(errc)
		defer close(steps)

		emit := func(s Step[S]) error {
			select {
			case steps <- s:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		offset, err := g.threadOffset(ctx, opts.ThreadID)
		if err != nil {
			errc <- err
			return
		}
		if _, err := g.run(ctx, g.entry, offset, state, opts, emit); err != nil {
			errc <- err
		}
	}()

	return steps, errc
}

// Resume continues the thread from the node recorded as Next in its latest
// checkpoint. A thread whose last checkpoint points at End returns the saved
// state unchanged.
func (g *Graph[S]) Resume(ctx context.Context, threadID string, optFns ...func(o *RunOptions)) (S, error) {
	var zero S
	if g.checkpointer == nil {
		return zero, ErrNoCheckpointer
	}

	cp, err := g.checkpointer.Latest(ctx, threadID)
	if err != nil {
		return zero, err
	}
	state, err := decodeState[S](cp.State)
	if err != nil {
		return zero, err
	}
	if cp.Next == End {
		return state, nil
	}
	if _, ok := g.nodes[cp.Next]; !ok {
		return state, fmt.Errorf("checkpoint of thread %q points at unknown node %q", threadID, cp.Next)
	}

	opts := g.runOptions(optFns)
	opts.ThreadID = threadID
	return g.run(ctx, cp.Next, cp.Step, state, opts, nil)
}

// LatestState returns the state stored in the latest checkpoint of a thread.
func (g *Graph[S]) LatestState(ctx context.Context, threadID string) (S, error) {
	var zero S
	if g.checkpointer == nil {
		return zero, ErrNoCheckpointer
	}
	cp, err := g.checkpointer.Latest(ctx, threadID)
	if err != nil {
		return zero, err
	}
	return decodeState[S](cp.State)
}

// threadOffset returns the step of the latest checkpoint of threadID, or 0.
func (g *Graph[S]) threadOffset(ctx context.Context, threadID string) (int, error) {
	if g.checkpointer == nil || threadID == "" {
		return 0, nil
	}
	cp, err := g.checkpointer.Latest(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	return cp.Step, nil
}

func (g *Graph[S]) runOptions(optFns []func(o *RunOptions)) RunOptions {
	opts := RunOptions{RecursionLimit: g.limit}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.RecursionLimit <= 0 {
		opts.RecursionLimit = g.limit
	}
	return opts
}

func (g *Graph[S]) run(ctx context.Context, current string, offset int, state S, opts RunOptions, emit func(Step[S]) error) (S, error) {
	tracer := otel.Tracer(scopeName)
	ctx, span := tracer.Start(ctx, "graph.invoke", trace.WithAttributes(
		attribute.String("graph.name", g.name),
		attribute.String("graph.thread_id", opts.ThreadID),
	))
	defer span.End()

	logger := g.runLogger(opts.ThreadID)
	start := time.Now()
	executed := 0

	finish := func(err error) (S, error) {
		span.SetAttributes(attribute.Int("graph.steps", executed))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if gl, ok := logger.(*logging.GraphLogger); ok {
			gl.LogGraphExecution(g.name, executed, time.Since(start), err == nil, err)
		} else if err != nil {
			logger.Error("graph.run.failed", "graph", g.name, "steps", executed, "error", err)
		} else {
			logger.Debug("graph.run.completed", "graph", g.name, "steps", executed, "duration", time.Since(start))
		}
		return state, err
	}

	for current != End {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		if executed >= opts.RecursionLimit {
			return finish(&RecursionLimitError{Limit: opts.RecursionLimit})
		}

		out, err := g.step(ctx, tracer, logger, current, state)
		executed++
		if err != nil {
			return finish(err)
		}
		state = out

		to, err := g.next(current, state)
		if err != nil {
			return finish(err)
		}

		index := offset + executed
		if err := g.save(ctx, opts.ThreadID, index, current, to, state); err != nil {
			return finish(err)
		}
		if emit != nil {
			if err := emit(Step[S]{Index: index, Node: current, Next: to, State: state}); err != nil {
				return finish(err)
			}
		}

		logger.Debug("graph.node.transition", "graph", g.name, "from", current, "to", to, "step", index)
		current = to
	}

	return finish(nil)
}

func (g *Graph[S]) step(ctx context.Context, tracer trace.Tracer, logger logging.Logger, name string, state S) (S, error) {
	ctx, span := tracer.Start(ctx, "graph.node", trace.WithAttributes(
		attribute.String("graph.name", g.name),
		attribute.String("graph.node", name),
	))
	defer span.End()

	logger.Debug("graph.node.start", "graph", g.name, "node", name)

	out, err := g.nodes[name](ctx, state)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("graph.node.error", "graph", g.name, "node", name, "error", err)
		return state, &NodeError{Node: name, Err: err}
	}
	return out, nil
}

// runLogger tags the entries of a threaded run with the thread and a fresh
// run id when the graph logs through a GraphLogger.
func (g *Graph[S]) runLogger(threadID string) logging.Logger {
	gl, ok := g.logger.(*logging.GraphLogger)
	if !ok || threadID == "" {
		return g.logger
	}
	return gl.WithThread(threadID, uuid.NewString())
}

// next resolves the node following from. A node without outgoing edges ends
// the run.
func (g *Graph[S]) next(from string, state S) (string, error) {
	if br, ok := g.branches[from]; ok {
		key := br.router(state)
		if br.mapping == nil {
			if _, exists := g.nodes[key]; exists || key == End {
				return key, nil
			}
			return "", &RouteError{Node: from, Key: key}
		}
		to, ok := br.mapping[key]
		if !ok {
			return "", &RouteError{Node: from, Key: key}
		}
		return to, nil
	}
	if to, ok := g.edges[from]; ok {
		return to, nil
	}
	return End, nil
}

func (g *Graph[S]) save(ctx context.Context, threadID string, index int, node, next string, state S) error {
	if g.checkpointer == nil || threadID == "" {
		return nil
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint state: %w", err)
	}
	err = g.checkpointer.Put(ctx, checkpoint.Checkpoint{
		ThreadID:  threadID,
		Step:      index,
		Node:      node,
		Next:      next,
		State:     raw,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func decodeState[S any](raw []byte) (S, error) {
	var s S
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("decode checkpoint state: %w", err)
	}
	return s, nil
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, cmp.Compare[string])
	return keys
}

// IsRecursionLimit reports whether err stems from an exhausted recursion limit.
func IsRecursionLimit(err error) bool {
	var rle *RecursionLimitError
	return errors.As(err, &rle)
}
