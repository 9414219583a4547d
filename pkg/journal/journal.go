// Package journal records prediction episodes and stage commands in a
// SQLite database for later review. Writes happen on a background
// goroutine so the tracking loop never waits on disk.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/rocky-hockey/internal/log"
	"github.com/teslashibe/rocky-hockey/pkg/robot"
	"github.com/teslashibe/rocky-hockey/pkg/tracking"
	_ "modernc.org/sqlite"
)

// ErrClosed is returned by queries after Close.
var ErrClosed = errors.New("journal: closed")

// Config controls the journal.
type Config struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
	Buffer  int    `json:"buffer" mapstructure:"buffer"` // pending writes before new ones are dropped
}

// DefaultConfig returns a journal in the working directory.
func DefaultConfig() Config {
	return Config{Enabled: true, Path: "rocky-hockey.db", Buffer: 1024}
}

type write func(ctx context.Context, db *sql.DB) error

// Store is the SQLite-backed journal.
type Store struct {
	db     *sql.DB
	writes chan write
	done   chan struct{}

	mu      sync.RWMutex // held for reading while sending on writes
	closed  atomic.Bool
	dropped atomic.Uint64
	logger  *slog.Logger
}

var _ tracking.EpisodeRecorder = (*Store)(nil)

// Open opens or creates the database at path and starts the writer.
func Open(cfg Config) (*Store, error) {
	if cfg.Buffer < 1 {
		cfg.Buffer = DefaultConfig().Buffer
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", cfg.Path, err)
	}
	// One connection keeps writes ordered and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	logger := log.Component("journal")
	if err := migrateUp(db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:     db,
		writes: make(chan write, cfg.Buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
	go s.writer()

	s.logger.Info("journal opened", "path", cfg.Path)
	return s, nil
}

func (s *Store) writer() {
	defer close(s.done)
	ctx := context.Background()
	for w := range s.writes {
		if err := w(ctx, s.db); err != nil {
			s.logger.Warn("journal write failed", "err", err)
		}
	}
}

func (s *Store) enqueue(w write) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return
	}
	select {
	case s.writes <- w:
	default:
		if s.dropped.Add(1)%100 == 1 {
			s.logger.Warn("journal queue full, dropping writes", "dropped", s.dropped.Load())
		}
	}
}

// EpisodeStarted records a new prediction.
func (s *Store) EpisodeStarted(ep tracking.Episode) {
	s.enqueue(func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, `INSERT INTO episodes
			(id, started_at, from_x, from_y, collision_x, collision_y, predicted_x, predicted_y, bounced, commanded)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ep.ID.String(), ep.StartedAt.UTC(),
			ep.From.X, ep.From.Y,
			ep.Collision.X, ep.Collision.Y,
			ep.Predicted.X, ep.Predicted.Y,
			ep.Bounced, ep.Commanded)
		return err
	})
}

// EpisodeEnded stamps the end time of an episode.
func (s *Store) EpisodeEnded(id uuid.UUID, at time.Time) {
	s.enqueue(func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, `UPDATE episodes SET ended_at = ? WHERE id = ?`, at.UTC(), id.String())
		return err
	})
}

// RecordCommand records a dispatched stage command and its outcome. It
// has the shape of robot.Dispatcher's OnResult hook.
func (s *Store) RecordCommand(r robot.Result) {
	var errText sql.NullString
	if r.Err != nil {
		errText = sql.NullString{String: r.Err.Error(), Valid: true}
	}
	cmd := r.Command
	s.enqueue(func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, `INSERT INTO commands
			(id, kind, x, y, issued_at, duration_us, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			cmd.ID.String(), cmd.Kind.String(), cmd.X, cmd.Y,
			cmd.IssuedAt.UTC(), r.Duration.Microseconds(), errText)
		return err
	})
}

// Flush waits until every write queued so far has been applied.
func (s *Store) Flush(ctx context.Context) error {
	applied := make(chan struct{})
	marker := func(context.Context, *sql.DB) error { close(applied); return nil }

	s.mu.RLock()
	if s.closed.Load() {
		s.mu.RUnlock()
		return ErrClosed
	}
	select {
	case s.writes <- marker:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-applied:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many writes were discarded because the queue was full.
func (s *Store) Dropped() uint64 {
	return s.dropped.Load()
}

// Close applies pending writes and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return nil
	}
	s.closed.Store(true)
	close(s.writes)
	s.mu.Unlock()

	<-s.done
	return s.db.Close()
}
