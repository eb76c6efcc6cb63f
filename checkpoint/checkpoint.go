package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a thread has no checkpoints.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint is the persisted snapshot taken after a node ran.
type Checkpoint struct {
	ThreadID  string          `json:"thread_id"`
	Step      int             `json:"step"`
	Node      string          `json:"node"`
	Next      string          `json:"next"`
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}

// Saver stores and retrieves checkpoints.
type Saver interface {
	// Put appends a checkpoint to its thread.
	Put(ctx context.Context, cp Checkpoint) error
	// Latest returns the most recent checkpoint of a thread or ErrNotFound.
	Latest(ctx context.Context, threadID string) (Checkpoint, error)
	// List returns all checkpoints of a thread ordered by step.
	List(ctx context.Context, threadID string) ([]Checkpoint, error)
}
