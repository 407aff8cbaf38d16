package repository

import (
	"context"

	"github.com/VladKovDev/raffle-bot/internal/domain/raffle"
)

// StateRepository stores the whole raffle aggregate as one atomic unit.
type StateRepository interface {
	// Load returns the stored aggregate, or a fresh one when nothing has
	// been stored yet. Unparseable data yields a raffle.KindCorruptState
	// error.
	Load(ctx context.Context) (*raffle.State, error)
	// Persist replaces the stored aggregate. A failed Persist leaves the
	// previous version intact.
	Persist(ctx context.Context, state raffle.State) error
	Close() error
}
