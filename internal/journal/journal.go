// Package journal persists the active workout session to a local SQLite file
// so a crash or restart mid-workout loses nothing: the starting instance
// snapshot is written once, every applied edit command is appended, and the
// session is rebuilt at boot by replaying the log against the snapshot.
package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/meltforce/liftlog/internal/engine"
	"github.com/meltforce/liftlog/internal/models"
)

// DB is an open session journal. It satisfies engine.SessionJournal.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at dir/session.db.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating journal dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "session.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening journal db: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS session_snapshot (
			id          INTEGER PRIMARY KEY CHECK (id = 1),
			instance    TEXT NOT NULL,
			started_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS session_commands (
			seq         INTEGER PRIMARY KEY,
			command     TEXT NOT NULL,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating journal tables: %w", err)
		}
	}

	return &DB{db: db}, nil
}

// Begin starts a new journal for the given instance, discarding any previous
// contents.
func (j *DB) Begin(inst *models.WorkoutInstance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("encoding instance snapshot: %w", err)
	}

	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM session_commands`); err != nil {
		return fmt.Errorf("clearing command log: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO session_snapshot (id, instance) VALUES (1, ?)`, string(data),
	); err != nil {
		return fmt.Errorf("writing instance snapshot: %w", err)
	}
	return tx.Commit()
}

// Append records one applied command at the given sequence number.
func (j *DB) Append(seq int, cmd engine.Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}
	if _, err := j.db.Exec(
		`INSERT INTO session_commands (seq, command) VALUES (?, ?)`, seq, string(data),
	); err != nil {
		return fmt.Errorf("appending command %d: %w", seq, err)
	}
	return nil
}

// Load returns the journaled instance snapshot and command log, or ok=false
// when no session was in flight.
func (j *DB) Load() (inst *models.WorkoutInstance, cmds []engine.Command, ok bool, err error) {
	var data string
	err = j.db.QueryRow(`SELECT instance FROM session_snapshot WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("reading instance snapshot: %w", err)
	}

	inst = &models.WorkoutInstance{}
	if err := json.Unmarshal([]byte(data), inst); err != nil {
		return nil, nil, false, fmt.Errorf("decoding instance snapshot: %w", err)
	}

	rows, err := j.db.Query(`SELECT command FROM session_commands ORDER BY seq ASC`)
	if err != nil {
		return nil, nil, false, fmt.Errorf("reading command log: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, nil, false, fmt.Errorf("scanning command: %w", err)
		}
		var cmd engine.Command
		if err := json.Unmarshal([]byte(raw), &cmd); err != nil {
			return nil, nil, false, fmt.Errorf("decoding command: %w", err)
		}
		cmds = append(cmds, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, false, err
	}
	return inst, cmds, true, nil
}

// Clear drops the snapshot and command log after a session ends.
func (j *DB) Clear() error {
	if _, err := j.db.Exec(`DELETE FROM session_commands`); err != nil {
		return fmt.Errorf("clearing command log: %w", err)
	}
	if _, err := j.db.Exec(`DELETE FROM session_snapshot`); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}
	return nil
}

// Close closes the journal database.
func (j *DB) Close() error {
	return j.db.Close()
}
