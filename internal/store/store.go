// Package store provides SQLite-backed persistence for Mealtime.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/mealtime/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store provides access to the Mealtime SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transitions (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		reminder_id TEXT,
		details TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transitions_reminder_id ON transitions(reminder_id);
	CREATE INDEX IF NOT EXISTS idx_transitions_timestamp ON transitions(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Key-Value Operations ---

// Get returns the value stored under key. The bool is false when the key is absent.
func (s *Store) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query kv %q: %w", key, err)
	}
	return value, true, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(key string, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("put kv %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete kv %q: %w", key, err)
	}
	return nil
}

// --- Transition Operations ---

// WriteTransition records a reminder state change.
func (s *Store) WriteTransition(action, inputsHash, outcome, reminderID, details string) (*models.Transition, error) {
	tr := &models.Transition{
		ID:         uuid.New().String(),
		Action:     action,
		InputsHash: inputsHash,
		Outcome:    outcome,
		ReminderID: reminderID,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO transitions (id, action, inputs_hash, outcome, reminder_id, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.Action, tr.InputsHash, tr.Outcome, tr.ReminderID, tr.Details, tr.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert transition: %w", err)
	}
	return tr, nil
}

// ListTransitions returns the most recent transitions, newest first,
// optionally filtered by reminder ID. A limit <= 0 returns all.
func (s *Store) ListTransitions(reminderID string, limit int) ([]models.Transition, error) {
	query := `SELECT id, action, inputs_hash, outcome, reminder_id, details, timestamp FROM transitions`
	var args []interface{}

	if reminderID != "" {
		query += ` WHERE reminder_id = ?`
		args = append(args, reminderID)
	}
	query += ` ORDER BY timestamp DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []models.Transition
	for rows.Next() {
		var tr models.Transition
		var reminder, details sql.NullString
		if err := rows.Scan(&tr.ID, &tr.Action, &tr.InputsHash, &tr.Outcome, &reminder, &details, &tr.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.ReminderID = reminder.String
		tr.Details = details.String
		out = append(out, tr)
	}
	return out, rows.Err()
}

// PruneTransitions deletes transitions older than before.
func (s *Store) PruneTransitions(before time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM transitions WHERE timestamp < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune transitions: %w", err)
	}
	return res.RowsAffected()
}
