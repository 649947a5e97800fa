package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/normanking/cortex-emotion/internal/conversation"
	"github.com/normanking/cortex-emotion/internal/metrics"
)

// SQLiteStore keeps one row per session in a local database file.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex // guards entropy
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS conversation_snapshots (
		session_id       TEXT PRIMARY KEY,
		snapshot_id      TEXT NOT NULL,
		state            TEXT NOT NULL,
		last_interaction TEXT NOT NULL,
		saved_at         TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_last ON conversation_snapshots(last_interaction DESC);
	`)
	return err
}

// Backend implements Store.
func (s *SQLiteStore) Backend() string { return "sqlite" }

// Save replaces all rows with states in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, states []conversation.State) (err error) {
	defer func() { record(s.Backend(), "save", err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_snapshots`); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conversation_snapshots (session_id, snapshot_id, state, last_interaction, saved_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	savedAt := time.Now().UTC().Format(time.RFC3339Nano)
	for _, st := range states {
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", st.SessionID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			st.SessionID, s.newID(), string(data),
			st.LastInteraction.UTC().Format(time.RFC3339Nano), savedAt,
		); err != nil {
			return fmt.Errorf("insert %s: %w", st.SessionID, err)
		}
	}
	return tx.Commit()
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context) (_ []conversation.State, err error) {
	defer func() { record(s.Backend(), "load", err) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT state FROM conversation_snapshots ORDER BY last_interaction DESC`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []conversation.State
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var st conversation.State
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (conversation.State, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM conversation_snapshots WHERE session_id = ?`, sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return conversation.State{}, ErrNotFound
	}
	if err != nil {
		return conversation.State{}, fmt.Errorf("get snapshot: %w", err)
	}
	var st conversation.State
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return conversation.State{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return st, nil
}

// SnapshotID returns the id of the latest saved row of a session.
func (s *SQLiteStore) SnapshotID(ctx context.Context, sessionID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot_id FROM conversation_snapshots WHERE session_id = ?`, sessionID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return id, err
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) (err error) {
	defer func() { record(s.Backend(), "delete", err) }()
	_, err = s.db.ExecContext(ctx, `DELETE FROM conversation_snapshots WHERE session_id = ?`, sessionID)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func record(backend, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SnapshotOps.WithLabelValues(backend, op, status).Inc()
}
