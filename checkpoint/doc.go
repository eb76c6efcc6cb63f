// Package checkpoint persists graph state between node executions.
//
// A Saver records one Checkpoint per executed node, keyed by thread id. The
// graph package writes checkpoints when configured with a Saver and can
// resume a thread from the node recorded as Next in the latest checkpoint.
// InMemorySaver keeps everything in process; the sqlite subpackage stores
// checkpoints in a local database file.
package checkpoint
