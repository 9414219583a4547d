package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/rocky-hockey/pkg/geometry"
)

// EpisodeRecord is a stored prediction episode.
type EpisodeRecord struct {
	ID        uuid.UUID      `json:"id"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
	From      geometry.Point `json:"from"`
	Collision geometry.Point `json:"collision"`
	Predicted geometry.Point `json:"predicted"`
	Bounced   bool           `json:"bounced"`
	Commanded bool           `json:"commanded"`
}

// CommandRecord is a stored stage command.
type CommandRecord struct {
	ID       uuid.UUID     `json:"id"`
	Kind     string        `json:"kind"`
	X        int           `json:"x"`
	Y        int           `json:"y"`
	IssuedAt time.Time     `json:"issued_at"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Summary aggregates the journal.
type Summary struct {
	Episodes  int `json:"episodes"`
	Bounced   int `json:"bounced"`
	Commanded int `json:"commanded"`
	Commands  int `json:"commands"`
	Failed    int `json:"failed"`
}

// RecentEpisodes returns up to limit episodes, newest first.
func (s *Store) RecentEpisodes(ctx context.Context, limit int) ([]EpisodeRecord, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, started_at, ended_at, from_x, from_y, collision_x, collision_y,
		predicted_x, predicted_y, bounced, commanded
		FROM episodes ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query episodes: %w", err)
	}
	defer rows.Close()

	var out []EpisodeRecord
	for rows.Next() {
		var (
			rec   EpisodeRecord
			id    string
			ended sql.NullTime
		)
		if err := rows.Scan(&id, &rec.StartedAt, &ended,
			&rec.From.X, &rec.From.Y,
			&rec.Collision.X, &rec.Collision.Y,
			&rec.Predicted.X, &rec.Predicted.Y,
			&rec.Bounced, &rec.Commanded); err != nil {
			return nil, fmt.Errorf("journal: scan episode: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("journal: episode id %q: %w", id, err)
		}
		if ended.Valid {
			t := ended.Time
			rec.EndedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecentCommands returns up to limit commands, newest first.
func (s *Store) RecentCommands(ctx context.Context, limit int) ([]CommandRecord, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, kind, x, y, issued_at, duration_us, error
		FROM commands ORDER BY issued_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query commands: %w", err)
	}
	defer rows.Close()

	var out []CommandRecord
	for rows.Next() {
		var (
			rec     CommandRecord
			id      string
			micros  int64
			errText sql.NullString
		)
		if err := rows.Scan(&id, &rec.Kind, &rec.X, &rec.Y, &rec.IssuedAt, &micros, &errText); err != nil {
			return nil, fmt.Errorf("journal: scan command: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("journal: command id %q: %w", id, err)
		}
		rec.Duration = time.Duration(micros) * time.Microsecond
		rec.Error = errText.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Summarize counts episodes and commands.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	var sum Summary
	if s.closed.Load() {
		return sum, ErrClosed
	}
	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*), COALESCE(SUM(bounced), 0), COALESCE(SUM(commanded), 0)
		FROM episodes`).Scan(&sum.Episodes, &sum.Bounced, &sum.Commanded)
	if err != nil {
		return sum, fmt.Errorf("journal: summarize episodes: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `SELECT
		COUNT(*), COUNT(error)
		FROM commands`).Scan(&sum.Commands, &sum.Failed)
	if err != nil {
		return sum, fmt.Errorf("journal: summarize commands: %w", err)
	}
	return sum, nil
}
