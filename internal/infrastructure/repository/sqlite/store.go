// Package sqlite provides a SQLite-backed store for the raffle aggregate.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/VladKovDev/raffle-bot/internal/domain/raffle"
	"github.com/VladKovDev/raffle-bot/internal/domain/repository"
	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

var _ repository.StateRepository = (*Store)(nil)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS raffle_state (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  body TEXT NOT NULL,
  updated_at INTEGER NOT NULL
)`,
	// bodies that failed to decode, kept for manual recovery
	`CREATE TABLE IF NOT EXISTS raffle_state_corrupt (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  body TEXT NOT NULL,
  saved_at INTEGER NOT NULL
)`,
}

// Store keeps the aggregate as one JSON document in a single-row table.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens the database at path and creates the state table.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer at a time keeps sqlite from returning SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, stmt := range schema {
		if _, err := sqlDB.Exec(stmt); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("create raffle state tables: %w", err)
		}
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Load returns the stored aggregate, or a fresh one when no row exists.
func (s *Store) Load(ctx context.Context) (*raffle.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var body string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT body FROM raffle_state WHERE id = 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return raffle.NewState(), nil
	}
	if err != nil {
		return nil, &raffle.Error{Kind: raffle.KindIO, Op: "load", Err: err}
	}

	var state raffle.State
	if err := json.Unmarshal([]byte(body), &state); err != nil {
		if _, backupErr := s.sqlDB.ExecContext(ctx,
			`INSERT INTO raffle_state_corrupt (body, saved_at) VALUES (?, ?)`,
			body, s.now().UTC().UnixMilli(),
		); backupErr != nil {
			err = errors.Join(err, fmt.Errorf("back up corrupt state: %w", backupErr))
		}
		return nil, &raffle.Error{Kind: raffle.KindCorruptState, Op: "load", Err: err}
	}
	state.Normalize()
	return &state, nil
}

// Persist replaces the stored row with state in one transaction.
func (s *Store) Persist(ctx context.Context, state raffle.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(state)
	if err != nil {
		return &raffle.Error{Kind: raffle.KindIO, Op: "persist", Err: fmt.Errorf("failed to marshal state: %w", err)}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return &raffle.Error{Kind: raffle.KindIO, Op: "persist", Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO raffle_state (id, body, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		string(body), s.now().UTC().UnixMilli(),
	); err != nil {
		return &raffle.Error{Kind: raffle.KindIO, Op: "persist", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &raffle.Error{Kind: raffle.KindIO, Op: "persist", Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}
