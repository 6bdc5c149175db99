// Package scanstore records a history of completed scans to a local SQLite
// database, so a long-running agent or repeated CLI scans of the same
// target can show "last detected N back-ends at T" without re-parsing clue
// files.
package scanstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/snapetech/halberd/internal/clue"
)

// Store wraps a SQLite-backed scan history table.
type Store struct {
	db *sql.DB
}

// Open creates (if necessary) and opens the scan history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("scanstore: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("scanstore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS scan_runs (
	id          TEXT PRIMARY KEY,
	target      TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL,
	raw_clues   INTEGER NOT NULL,
	backends    INTEGER NOT NULL
);`

// Run is one recorded scan.
type Run struct {
	ID        string
	Target    string
	StartedAt time.Time
	Duration  time.Duration
	RawClues  int
	Backends  int
}

// Record inserts a completed scan's summary and returns its generated ID.
func (s *Store) Record(target string, startedAt time.Time, duration time.Duration, raw []clue.Clue, result []clue.Clue) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO scan_runs (id, target, started_at, duration_ms, raw_clues, backends) VALUES (?, ?, ?, ?, ?, ?)`,
		id, target, startedAt.UTC(), duration.Milliseconds(), len(raw), len(result),
	)
	if err != nil {
		return "", fmt.Errorf("scanstore: record: %w", err)
	}
	return id, nil
}

// History returns the most recent runs against target, newest first, capped
// at limit rows.
func (s *Store) History(target string, limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, target, started_at, duration_ms, raw_clues, backends
		 FROM scan_runs WHERE target = ? ORDER BY started_at DESC LIMIT ?`,
		target, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("scanstore: history: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.Target, &r.StartedAt, &durationMS, &r.RawClues, &r.Backends); err != nil {
			return nil, fmt.Errorf("scanstore: scan row: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}
