package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var sqliteSchema = []string{`CREATE TABLE IF NOT EXISTS sessions (
	session_id       TEXT PRIMARY KEY,
	participant_id   TEXT NOT NULL,
	hct_order        TEXT NOT NULL,
	trial1           INTEGER NOT NULL,
	trial2           INTEGER NOT NULL,
	trial3           INTEGER NOT NULL,
	experiment_order TEXT NOT NULL,
	lab_number       TEXT NOT NULL,
	experimenter     TEXT NOT NULL,
	start_time       TEXT NOT NULL,
	end_time         TEXT NOT NULL,
	generated_at_ms  INTEGER NOT NULL,
	host             TEXT NOT NULL,
	artifacts        TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS sessions_participant ON sessions (participant_id)`,
	`CREATE INDEX IF NOT EXISTS sessions_generated ON sessions (generated_at_ms)`,
}

const sqliteColumns = `session_id, participant_id, hct_order, trial1, trial2, trial3,
	experiment_order, lab_number, experimenter, start_time, end_time,
	generated_at_ms, host, artifacts`

// SQLite is a single-file session archive for one workstation.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the archive database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers; the CLI does one write per run.
	db.SetMaxOpenConns(1)
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create sessions table: %w", err)
		}
	}
	return &SQLite{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *SQLite) Path() string { return s.path }

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

// Record inserts the entry. Recording the same session ID twice is an error.
func (s *SQLite) Record(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	artifacts := e.Artifacts
	if artifacts == nil {
		artifacts = []string{}
	}
	artifactsJSON, err := json.Marshal(artifacts)
	if err != nil {
		return fmt.Errorf("failed to marshal artifacts: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sqliteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.ParticipantID, e.HCTOrder, e.Order[0], e.Order[1], e.Order[2],
		e.ExperimentOrder, e.LabNumber, e.Experimenter, e.StartTime, e.EndTime,
		e.GeneratedAtMs, e.Host, string(artifactsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID. Returns ErrNotFound if it doesn't exist.
func (s *SQLite) Get(ctx context.Context, sessionID string) (*Entry, error) {
	entries, err := s.query(ctx, `WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entries[0], nil
}

// List returns sessions in generation order. Exact-match criteria are pushed
// into SQL; the experimenter glob is applied in memory.
func (s *SQLite) List(ctx context.Context, c *Criteria) ([]*Entry, error) {
	var where []string
	var args []any
	if c != nil {
		if c.SinceTimestampMs > 0 {
			where = append(where, "generated_at_ms >= ?")
			args = append(args, c.SinceTimestampMs)
		}
		if c.UntilTimestampMs > 0 {
			where = append(where, "generated_at_ms <= ?")
			args = append(args, c.UntilTimestampMs)
		}
		if c.ParticipantID != "" {
			where = append(where, "participant_id = ?")
			args = append(args, c.ParticipantID)
		}
		if c.LabNumber != "" {
			where = append(where, "lab_number = ?")
			args = append(args, c.LabNumber)
		}
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	entries, err := s.query(ctx, clause, args...)
	if err != nil {
		return nil, err
	}
	return filter(entries, c), nil
}

// ForParticipant returns every session generated for participantID.
func (s *SQLite) ForParticipant(ctx context.Context, participantID string) ([]*Entry, error) {
	return s.query(ctx, `WHERE participant_id = ?`, participantID)
}

func (s *SQLite) query(ctx context.Context, clause string, args ...any) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM sessions `+clause+` ORDER BY generated_at_ms, session_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var artifactsJSON string
		if err := rows.Scan(&e.SessionID, &e.ParticipantID, &e.HCTOrder, &e.Order[0], &e.Order[1], &e.Order[2],
			&e.ExperimentOrder, &e.LabNumber, &e.Experimenter, &e.StartTime, &e.EndTime,
			&e.GeneratedAtMs, &e.Host, &artifactsJSON); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if err := json.Unmarshal([]byte(artifactsJSON), &e.Artifacts); err != nil {
			return nil, fmt.Errorf("decode artifacts for %s: %w", e.SessionID, err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}
	return entries, nil
}
