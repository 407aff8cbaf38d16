package raffle

import (
	"context"

	domain "github.com/VladKovDev/raffle-bot/internal/domain/raffle"
)

// Outbox remembers the last message the bot sent to each user so the
// transport can retract it before sending the next one.
type Outbox struct {
	book    *Book
	flusher Flusher
}

func NewOutbox(book *Book, flusher Flusher) *Outbox {
	return &Outbox{book: book, flusher: flusher}
}

// RecordLastMessage overwrites the stored message id for identity.
// Recording the id already stored writes nothing.
func (o *Outbox) RecordLastMessage(ctx context.Context, identity string, messageID int) error {
	return o.book.commit(ctx, o.flusher, func(s *domain.State) (bool, error) {
		if id, ok := s.LastMessageIDs[identity]; ok && id == messageID {
			return false, nil
		}
		s.LastMessageIDs[identity] = messageID
		return true, nil
	})
}

func (o *Outbox) LastMessageFor(identity string) (int, bool) {
	var (
		id int
		ok bool
	)
	o.book.read(func(s *domain.State) {
		id, ok = s.LastMessageIDs[identity]
	})
	return id, ok
}
