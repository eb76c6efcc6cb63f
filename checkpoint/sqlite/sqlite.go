// Package sqlite implements checkpoint.Saver on top of a local SQLite file
// using the pure-Go modernc.org/sqlite driver. Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentgraph/checkpoint"
	"github.com/hupe1980/agentgraph/logging"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Options configures a Saver.
type Options struct {
	// Logger receives debug logs for every operation.
	Logger logging.Logger
}

// Saver stores checkpoints in a single table keyed by (thread_id, step).
type Saver struct {
	db     *sql.DB
	logger logging.Logger
}

var _ checkpoint.Saver = (*Saver)(nil)

// New opens the database at dbPath and creates the schema. A single
// connection is used so concurrent writers serialize instead of failing
// with SQLITE_BUSY.
func New(ctx context.Context, dbPath string, optFns ...func(o *Options)) (*Saver, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Saver{db: db, logger: opts.Logger}
	if err := s.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Debug("checkpoint.sqlite.opened", "path", dbPath)
	return s, nil
}

// Init creates the checkpoints table if it does not exist.
func (s *Saver) Init(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS checkpoints (
		thread_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		node TEXT NOT NULL,
		next TEXT NOT NULL,
		state TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (thread_id, step)
	)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Saver) Close() error { return s.db.Close() }

// Put inserts or replaces the checkpoint for (thread, step).
func (s *Saver) Put(ctx context.Context, cp checkpoint.Checkpoint) error {
	created := cp.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO checkpoints (thread_id, step, node, next, state, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		cp.ThreadID, cp.Step, cp.Node, cp.Next, string(cp.State), created.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	s.logger.Debug("checkpoint.sqlite.put", "thread_id", cp.ThreadID, "step", cp.Step, "node", cp.Node)
	return nil
}

// Latest returns the checkpoint with the highest step of the thread.
func (s *Saver) Latest(ctx context.Context, threadID string) (checkpoint.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT thread_id, step, node, next, state, created_at FROM checkpoints WHERE thread_id = ? ORDER BY step DESC LIMIT 1`,
		threadID,
	)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return checkpoint.Checkpoint{}, checkpoint.ErrNotFound
	}
	if err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("latest checkpoint: %w", err)
	}
	return cp, nil
}

// List returns every checkpoint of the thread ordered by step.
func (s *Saver) List(ctx context.Context, threadID string) ([]checkpoint.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT thread_id, step, node, next, state, created_at FROM checkpoints WHERE thread_id = ? ORDER BY step ASC`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []checkpoint.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(sc scanner) (checkpoint.Checkpoint, error) {
	var (
		cp      checkpoint.Checkpoint
		state   string
		created int64
	)
	if err := sc.Scan(&cp.ThreadID, &cp.Step, &cp.Node, &cp.Next, &state, &created); err != nil {
		return checkpoint.Checkpoint{}, err
	}
	cp.State = []byte(state)
	cp.CreatedAt = time.UnixMilli(created)
	return cp, nil
}
