// Package persist funnels state writes into a single in-flight operation
// against the configured state repository.
package persist

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/VladKovDev/raffle-bot/internal/domain/raffle"
	"github.com/VladKovDev/raffle-bot/internal/domain/repository"
	"github.com/VladKovDev/raffle-bot/pkg/logger"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("serializer is closed")

// Source supplies the aggregate to write. Snapshot must return a copy
// that is safe to encode while the live state keeps changing.
type Source interface {
	Snapshot() raffle.State
}

// flush is one physical write and everyone waiting on it.
type flush struct {
	done chan struct{}
}

func newFlush() *flush {
	return &flush{done: make(chan struct{})}
}

// Serializer allows at most one write in flight and at most one pending
// write queued behind it. Requests arriving while a write runs all join
// the pending write; its snapshot is taken when it starts, so it covers
// every mutation applied before any of those requests.
type Serializer struct {
	repo   repository.StateRepository
	source Source
	logger logger.Logger

	mu       sync.Mutex
	inFlight bool
	pending  *flush
	closed   bool
	idle     chan struct{}

	writes   int64
	failures int64
}

func NewSerializer(repo repository.StateRepository, source Source, log logger.Logger) *Serializer {
	idle := make(chan struct{})
	close(idle)
	return &Serializer{
		repo:   repo,
		source: source,
		logger: log,
		idle:   idle,
	}
}

// RequestPersist returns a channel closed once the state at call time,
// or a later one, has been written. Write failures are logged and still
// release the waiters. Once the serializer is closed nothing more will be
// written, so the request fails with ErrClosed.
func (s *Serializer) RequestPersist() (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, &raffle.Error{Kind: raffle.KindIO, Op: "persist", Err: ErrClosed}
	}

	if s.inFlight {
		if s.pending == nil {
			s.pending = newFlush()
		}
		return s.pending.done, nil
	}

	s.inFlight = true
	s.idle = make(chan struct{})
	f := newFlush()
	go s.run(f)
	return f.done, nil
}

// Persist requests a write and waits for it. ctx bounds the wait only;
// the write itself is never cancelled.
func (s *Serializer) Persist(ctx context.Context) error {
	done, err := s.RequestPersist()
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

func (s *Serializer) run(f *flush) {
	for {
		s.write()
		close(f.done)

		s.mu.Lock()
		if s.pending == nil {
			s.inFlight = false
			close(s.idle)
			s.mu.Unlock()
			return
		}
		f = s.pending
		s.pending = nil
		s.mu.Unlock()
	}
}

func (s *Serializer) write() {
	state := s.source.Snapshot()
	start := time.Now()

	err := s.repo.Persist(context.Background(), state)

	s.mu.Lock()
	s.writes++
	if err != nil {
		s.failures++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("failed to persist raffle state",
			zap.Int("participants", len(state.Participants)),
			zap.Error(err))
		return
	}
	s.logger.Debug("raffle state persisted",
		zap.Int("participants", len(state.Participants)),
		zap.Int64("total_starts", state.TotalStarts),
		zap.Duration("took", time.Since(start)))
}

// Writes returns the number of physical writes attempted so far.
func (s *Serializer) Writes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Failures returns the number of physical writes that failed.
func (s *Serializer) Failures() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// Close rejects new requests and waits for in-flight and pending writes
// to drain.
func (s *Serializer) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
