// Package store persists completed conversation turns in an append-only
// SQLite log.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Cyclone1070/sandchat/internal/chat"
	_ "modernc.org/sqlite"
)

// Store is the append-only conversation log. Every database operation runs on
// one dedicated worker goroutine: a single writer cannot interleave
// multi-statement transactions, which keeps the on-disk log consistent
// without row-level locking. Turns are inherently sequential per session, so
// the throughput trade is acceptable.
type Store struct {
	db         *sql.DB
	jobs       chan job
	done       chan struct{}
	workerDone chan struct{}
	closeOnce  sync.Once
	logger     *slog.Logger
}

type job struct {
	fn    func(db *sql.DB) (any, error)
	reply chan result
}

type result struct {
	value any
	err   error
}

// Open opens (creating if necessary) the SQLite log at path and starts the
// worker. Schema initialization is idempotent.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Debug("pragma failed", "pragma", pragma, "error", err)
		}
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:         db,
		jobs:       make(chan job),
		done:       make(chan struct{}),
		workerDone: make(chan struct{}),
		logger:     logger,
	}
	go s.worker()

	logger.Info("conversation store ready", "path", path)
	return s, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(
		"CREATE TABLE IF NOT EXISTS messages (id INTEGER PRIMARY KEY AUTOINCREMENT, message_list BLOB)",
	)
	if err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// worker executes submitted jobs strictly in order until Close.
func (s *Store) worker() {
	defer close(s.workerDone)
	for {
		select {
		case j := <-s.jobs:
			value, err := j.fn(s.db)
			j.reply <- result{value: value, err: err}
		case <-s.done:
			if err := s.db.Close(); err != nil {
				s.logger.Warn("closing database", "error", err)
			}
			return
		}
	}
}

// submit hands one operation to the worker and waits for its reply. The reply
// channel is buffered so an abandoned caller never blocks the worker.
func (s *Store) submit(ctx context.Context, fn func(db *sql.DB) (any, error)) (any, error) {
	j := job{fn: fn, reply: make(chan result, 1)}

	select {
	case s.jobs <- j:
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-j.reply:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AddTurn appends one serialized turn blob as a new row. This is the only
// mutation in normal operation.
func (s *Store) AddTurn(ctx context.Context, blob []byte) error {
	_, err := s.submit(ctx, func(db *sql.DB) (any, error) {
		if _, err := db.Exec("INSERT INTO messages (message_list) VALUES (?)", blob); err != nil {
			return nil, fmt.Errorf("append turn: %w", err)
		}
		return nil, nil
	})
	return err
}

// Messages replays the full history in insertion order, decoding each
// persisted turn blob and concatenating its messages.
func (s *Store) Messages(ctx context.Context) ([]chat.Message, error) {
	value, err := s.submit(ctx, func(db *sql.DB) (any, error) {
		rows, err := db.Query("SELECT message_list FROM messages ORDER BY id")
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		defer rows.Close()

		var messages []chat.Message
		for rows.Next() {
			var blob []byte
			if err := rows.Scan(&blob); err != nil {
				return nil, fmt.Errorf("scan turn: %w", err)
			}
			turn, err := chat.DecodeTurn(blob)
			if err != nil {
				return nil, err
			}
			messages = append(messages, turn...)
		}
		return messages, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return value.([]chat.Message), nil
}

// Clear wipes the history. Administrative operation serving the CLI; normal
// operation never deletes.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.submit(ctx, func(db *sql.DB) (any, error) {
		if _, err := db.Exec("DELETE FROM messages"); err != nil {
			return nil, fmt.Errorf("clear history: %w", err)
		}
		return nil, nil
	})
	return err
}

// Close stops the worker and closes the database. Safe to call more than
// once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	<-s.workerDone
	return nil
}
