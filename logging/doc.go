// Package logging provides a minimal logging interface and adapters for agentgraph.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that graphs, steps and tools use for observability. Arguments follow the
// slog key/value convention. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping an existing *slog.Logger
//   - GraphLogger with thread/run context and run metrics helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json", Output: os.Stderr})
//	g, err := builder.Compile(graph.WithLogger(logger))
package logging
