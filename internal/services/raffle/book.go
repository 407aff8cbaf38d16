// Package raffle implements the registration ledger, the draw engine and
// the outbox tracker on top of one shared, persisted aggregate.
package raffle

import (
	"context"
	"sync"

	domain "github.com/VladKovDev/raffle-bot/internal/domain/raffle"
)

// Flusher triggers a write of the whole aggregate. It fails when no
// further writes will happen.
type Flusher interface {
	RequestPersist() (<-chan struct{}, error)
}

// Book owns the live aggregate. Every read and mutation goes through it so
// mutations are atomic with respect to each other and to snapshots.
type Book struct {
	mu    sync.RWMutex
	state *domain.State
}

func NewBook(state *domain.State) *Book {
	if state == nil {
		state = domain.NewState()
	}
	state.Normalize()
	return &Book{state: state}
}

// Snapshot returns a deep copy of the aggregate.
func (b *Book) Snapshot() domain.State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.Clone()
}

func (b *Book) read(fn func(s *domain.State)) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	fn(b.state)
}

// update applies fn under the write lock. fn reports whether it changed
// the state.
func (b *Book) update(fn func(s *domain.State) (bool, error)) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fn(b.state)
}

// commit applies fn and, only if it changed the state, waits for the
// change to be written.
func (b *Book) commit(ctx context.Context, f Flusher, fn func(s *domain.State) (bool, error)) error {
	changed, err := b.update(fn)
	if err != nil || !changed {
		return err
	}
	return flushAndWait(ctx, f)
}

// flushAndWait requests a persist and waits for it or for ctx.
func flushAndWait(ctx context.Context, f Flusher) error {
	done, err := f.RequestPersist()
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
