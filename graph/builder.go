package graph

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/hupe1980/agentgraph/checkpoint"
	"github.com/hupe1980/agentgraph/logging"
)

// Reserved node names.
const (
	Start = "__start__"
	End   = "__end__"
)

// DefaultRecursionLimit bounds node executions per run.
const DefaultRecursionLimit = 25

// NodeFunc transforms the state. It must not mutate its input in place when
// the state type holds reference values shared with earlier steps.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// RouterFunc picks the next route after a node ran.
type RouterFunc[S any] func(state S) string

type branch[S any] struct {
	router  RouterFunc[S]
	mapping map[string]string
}

// StateGraph is the mutable builder for a Graph. Methods return the builder
// so calls can be chained; wiring problems are collected and reported by
// Compile.
type StateGraph[S any] struct {
	nodes    map[string]NodeFunc[S]
	order    []string
	edges    map[string]string
	branches map[string]branch[S]
	entry    string
	errs     []error
}

// New creates an empty builder.
func New[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:    map[string]NodeFunc[S]{},
		edges:    map[string]string{},
		branches: map[string]branch[S]{},
	}
}

// AddNode registers a node under a unique name.
func (b *StateGraph[S]) AddNode(name string, fn NodeFunc[S]) *StateGraph[S] {
	switch {
	case name == "":
		b.errs = append(b.errs, errors.New("node name must not be empty"))
	case name == Start || name == End:
		b.errs = append(b.errs, fmt.Errorf("node name %q is reserved", name))
	case fn == nil:
		b.errs = append(b.errs, fmt.Errorf("node %q has nil function", name))
	default:
		if _, dup := b.nodes[name]; dup {
			b.errs = append(b.errs, fmt.Errorf("node %q already exists", name))
			return b
		}
		b.nodes[name] = fn
		b.order = append(b.order, name)
	}
	return b
}

// AddEdge adds an unconditional transition. An edge from Start sets the
// entry point.
func (b *StateGraph[S]) AddEdge(from, to string) *StateGraph[S] {
	if from == Start {
		return b.SetEntryPoint(to)
	}
	if from == End {
		b.errs = append(b.errs, errors.New("end cannot have outgoing edges"))
		return b
	}
	if prev, dup := b.edges[from]; dup && prev != to {
		b.errs = append(b.errs, fmt.Errorf("node %q already has an edge to %q", from, prev))
		return b
	}
	b.edges[from] = to
	return b
}

// AddConditionalEdges routes the output of from through router. With a nil
// mapping the router must return a node name (or End) directly.
func (b *StateGraph[S]) AddConditionalEdges(from string, router RouterFunc[S], mapping map[string]string) *StateGraph[S] {
	if router == nil {
		b.errs = append(b.errs, fmt.Errorf("node %q has nil router", from))
		return b
	}
	if _, dup := b.branches[from]; dup {
		b.errs = append(b.errs, fmt.Errorf("node %q already has conditional edges", from))
		return b
	}
	b.branches[from] = branch[S]{router: router, mapping: maps.Clone(mapping)}
	return b
}

// SetEntryPoint names the first node of every run.
func (b *StateGraph[S]) SetEntryPoint(name string) *StateGraph[S] {
	b.entry = name
	return b
}

// SetFinishPoint adds an edge from name to End.
func (b *StateGraph[S]) SetFinishPoint(name string) *StateGraph[S] {
	return b.AddEdge(name, End)
}

// Options configures a compiled Graph.
type Options struct {
	// Name identifies the graph in logs, spans and the Mermaid title.
	Name string
	// RecursionLimit bounds node executions per run.
	RecursionLimit int
	// Logger receives run and node level logs.
	Logger logging.Logger
	// Checkpointer persists the state after every node when a run carries a
	// thread id.
	Checkpointer checkpoint.Saver
}

// WithName sets the graph name.
func WithName(name string) func(o *Options) {
	return func(o *Options) { o.Name = name }
}

// WithRecursionLimit overrides DefaultRecursionLimit.
func WithRecursionLimit(n int) func(o *Options) {
	return func(o *Options) { o.RecursionLimit = n }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithCheckpointer enables checkpointing through saver.
func WithCheckpointer(saver checkpoint.Saver) func(o *Options) {
	return func(o *Options) { o.Checkpointer = saver }
}

// Compile validates the builder and returns an executable Graph.
func (b *StateGraph[S]) Compile(optFns ...func(o *Options)) (*Graph[S], error) {
	opts := Options{
		Name:           "graph",
		RecursionLimit: DefaultRecursionLimit,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.RecursionLimit <= 0 {
		opts.RecursionLimit = DefaultRecursionLimit
	}

	if err := b.validate(); err != nil {
		return nil, err
	}

	g := &Graph[S]{
		name:         opts.Name,
		nodes:        maps.Clone(b.nodes),
		order:        append([]string(nil), b.order...),
		edges:        maps.Clone(b.edges),
		branches:     maps.Clone(b.branches),
		entry:        b.entry,
		limit:        opts.RecursionLimit,
		logger:       opts.Logger,
		checkpointer: opts.Checkpointer,
	}
	return g, nil
}

func (b *StateGraph[S]) validate() error {
	if b.entry == "" {
		return ErrNoEntryPoint
	}

	problems := append([]error(nil), b.errs...)

	exists := func(name string) bool {
		_, ok := b.nodes[name]
		return ok || name == End
	}

	if _, ok := b.nodes[b.entry]; !ok {
		problems = append(problems, fmt.Errorf("entry point %q is not a node", b.entry))
	}
	for _, from := range sortedKeys(b.edges) {
		to := b.edges[from]
		if _, ok := b.nodes[from]; !ok {
			problems = append(problems, fmt.Errorf("edge source %q is not a node", from))
		}
		if !exists(to) {
			problems = append(problems, fmt.Errorf("edge target %q is not a node", to))
		}
		if _, both := b.branches[from]; both {
			problems = append(problems, fmt.Errorf("node %q has both a plain and a conditional edge", from))
		}
	}
	for _, from := range sortedKeys(b.branches) {
		if _, ok := b.nodes[from]; !ok {
			problems = append(problems, fmt.Errorf("conditional edge source %q is not a node", from))
		}
		br := b.branches[from]
		for _, key := range sortedKeys(br.mapping) {
			if !exists(br.mapping[key]) {
				problems = append(problems, fmt.Errorf("route %q of node %q targets unknown node %q", key, from, br.mapping[key]))
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidGraph, errors.Join(problems...))
}
