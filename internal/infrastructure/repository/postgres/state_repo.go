package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/VladKovDev/raffle-bot/internal/domain/raffle"
	"github.com/VladKovDev/raffle-bot/internal/domain/repository"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createStateTable = `CREATE TABLE IF NOT EXISTS raffle_state (
  id SMALLINT PRIMARY KEY CHECK (id = 1),
  body JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const createCorruptTable = `CREATE TABLE IF NOT EXISTS raffle_state_corrupt (
  id BIGSERIAL PRIMARY KEY,
  body TEXT NOT NULL,
  saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type PostgresStateRepository struct {
	db *pgxpool.Pool
}

var _ repository.StateRepository = (*PostgresStateRepository)(nil)

// NewPostgresStateRepository ensures the state tables exist. The pool is
// owned by the caller.
func NewPostgresStateRepository(ctx context.Context, db *pgxpool.Pool) (*PostgresStateRepository, error) {
	if _, err := db.Exec(ctx, createStateTable); err != nil {
		return nil, fmt.Errorf("failed to create raffle_state table: %w", err)
	}
	if _, err := db.Exec(ctx, createCorruptTable); err != nil {
		return nil, fmt.Errorf("failed to create raffle_state_corrupt table: %w", err)
	}
	return &PostgresStateRepository{db: db}, nil
}

func (r *PostgresStateRepository) Load(ctx context.Context) (*raffle.State, error) {
	var body []byte
	err := r.db.QueryRow(ctx, `SELECT body::text FROM raffle_state WHERE id = 1`).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return raffle.NewState(), nil
	}
	if err != nil {
		return nil, &raffle.Error{Kind: raffle.KindIO, Op: "load", Err: fmt.Errorf("failed to get state: %w", err)}
	}

	var state raffle.State
	if err := json.Unmarshal(body, &state); err != nil {
		if _, backupErr := r.db.Exec(ctx, `INSERT INTO raffle_state_corrupt (body) VALUES ($1)`, string(body)); backupErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to back up corrupt state: %w", backupErr))
		}
		return nil, &raffle.Error{Kind: raffle.KindCorruptState, Op: "load", Err: err}
	}
	state.Normalize()
	return &state, nil
}

func (r *PostgresStateRepository) Persist(ctx context.Context, state raffle.State) error {
	body, err := json.Marshal(state)
	if err != nil {
		return &raffle.Error{Kind: raffle.KindIO, Op: "persist", Err: fmt.Errorf("failed to marshal state: %w", err)}
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO raffle_state (id, body, updated_at) VALUES (1, $1::jsonb, now())
		 ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		string(body),
	)
	if err != nil {
		return &raffle.Error{Kind: raffle.KindIO, Op: "persist", Err: fmt.Errorf("failed to upsert state: %w", err)}
	}
	return nil
}

// Close is a no-op; the pool is closed by its owner.
func (r *PostgresStateRepository) Close() error {
	return nil
}
