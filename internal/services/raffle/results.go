package raffle

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	domain "github.com/VladKovDev/raffle-bot/internal/domain/raffle"
	"github.com/VladKovDev/raffle-bot/pkg/logger"
	"go.uber.org/zap"
)

// Outcome is the answer to a results query.
type Outcome struct {
	Status  domain.Status
	Winners *domain.Winners
}

// Results drives the OPEN -> AWAITING_DRAW -> DRAWN lifecycle. The draw
// happens lazily on the first query after the deadline that finds at
// least one participant, and its result is frozen from then on.
type Results struct {
	book      *Book
	flusher   Flusher
	logger    logger.Logger
	endsAt    time.Time
	winnerCap int
	random    io.Reader
}

func NewResults(book *Book, flusher Flusher, endsAt time.Time, winnerCap int, log logger.Logger) *Results {
	if winnerCap == 0 {
		winnerCap = DefaultWinnerCap
	}
	return &Results{
		book:      book,
		flusher:   flusher,
		logger:    log,
		endsAt:    endsAt,
		winnerCap: winnerCap,
		random:    rand.Reader,
	}
}

func (r *Results) EndsAt() time.Time {
	return r.endsAt
}

// TimeLeft returns the time until the deadline, or zero once it passed.
func (r *Results) TimeLeft(now time.Time) time.Duration {
	if d := r.endsAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Status reports the raffle phase at now without side effects.
func (r *Results) Status(now time.Time) domain.Status {
	var drawn bool
	r.book.read(func(s *domain.State) {
		drawn = s.Winners != nil
	})
	switch {
	case drawn:
		return domain.StatusDrawn
	case now.Before(r.endsAt):
		return domain.StatusOpen
	default:
		return domain.StatusAwaitingDraw
	}
}

// Query answers a results request. After the deadline the first query
// that sees participants performs the draw; every later query returns
// the stored winners verbatim.
func (r *Results) Query(ctx context.Context, now time.Time) (Outcome, error) {
	if now.Before(r.endsAt) {
		return Outcome{Status: domain.StatusOpen}, nil
	}

	var frozen *domain.Winners
	r.book.read(func(s *domain.State) {
		if s.Winners != nil {
			w := copyWinners(*s.Winners)
			frozen = &w
		}
	})
	if frozen != nil {
		return Outcome{Status: domain.StatusDrawn, Winners: frozen}, nil
	}

	var (
		result domain.Winners
		found  bool
		count  int
	)
	drewNow, err := r.book.update(func(s *domain.State) (bool, error) {
		// another query may have drawn while we waited for the lock
		if s.Winners != nil {
			result = copyWinners(*s.Winners)
			found = true
			return false, nil
		}
		count = len(s.Participants)
		if count == 0 {
			return false, nil
		}
		list, err := Draw(r.random, s.OrderedParticipants(), r.winnerCap)
		if err != nil {
			return false, err
		}
		result = Finalize(list, now)
		stored := copyWinners(result)
		s.Winners = &stored
		found = true
		return true, nil
	})
	if err != nil {
		return Outcome{}, err
	}

	if !found {
		return Outcome{Status: domain.StatusAwaitingDraw}, nil
	}

	if drewNow {
		r.logger.Info("raffle winners drawn",
			zap.String("draw_id", result.DrawID),
			zap.Int("participants", count),
			zap.Int("winners", len(result.List)))
		if err := flushAndWait(ctx, r.flusher); err != nil {
			return Outcome{Status: domain.StatusDrawn, Winners: &result}, err
		}
	}

	return Outcome{Status: domain.StatusDrawn, Winners: &result}, nil
}

func copyWinners(w domain.Winners) domain.Winners {
	w.List = append([]string{}, w.List...)
	return w
}
