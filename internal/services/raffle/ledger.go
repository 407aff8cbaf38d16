package raffle

import (
	"context"
	"strings"

	domain "github.com/VladKovDev/raffle-bot/internal/domain/raffle"
)

// Ledger keeps the participant registry and the start counter.
type Ledger struct {
	book    *Book
	flusher Flusher
}

func NewLedger(book *Book, flusher Flusher) *Ledger {
	return &Ledger{book: book, flusher: flusher}
}

// RecordStart counts a session start, registered or not.
func (l *Ledger) RecordStart(ctx context.Context, identity string) error {
	return l.book.commit(ctx, l.flusher, func(s *domain.State) (bool, error) {
		s.TotalStarts++
		return true, nil
	})
}

// Register stores a participant. The first registration of an identity
// wins: later calls return the stored participant with
// ErrAlreadyRegistered and change nothing.
func (l *Ledger) Register(ctx context.Context, identity, displayName, handle string) (domain.Participant, error) {
	const op = "register"

	handle = strings.TrimSpace(handle)
	if handle == "" {
		return domain.Participant{}, domain.InvalidArgument(op, "handle is empty")
	}
	if identity == "" {
		return domain.Participant{}, domain.InvalidArgument(op, "identity is empty")
	}

	var stored domain.Participant
	err := l.book.commit(ctx, l.flusher, func(s *domain.State) (bool, error) {
		if existing, ok := s.Participants[identity]; ok {
			stored = existing
			return false, &domain.Error{Kind: domain.KindAlreadyRegistered, Op: op, Identity: identity}
		}
		stored = domain.Participant{Username: displayName, Twitter: handle}
		s.Participants[identity] = stored
		return true, nil
	})
	return stored, err
}

func (l *Ledger) IsRegistered(identity string) bool {
	var ok bool
	l.book.read(func(s *domain.State) {
		_, ok = s.Participants[identity]
	})
	return ok
}

func (l *Ledger) Count() int {
	var n int
	l.book.read(func(s *domain.State) {
		n = len(s.Participants)
	})
	return n
}

func (l *Ledger) HandleFor(identity string) (string, bool) {
	var (
		handle string
		ok     bool
	)
	l.book.read(func(s *domain.State) {
		var p domain.Participant
		p, ok = s.Participants[identity]
		handle = p.Twitter
	})
	return handle, ok
}

func (l *Ledger) TotalStarts() int64 {
	var n int64
	l.book.read(func(s *domain.State) {
		n = s.TotalStarts
	})
	return n
}
