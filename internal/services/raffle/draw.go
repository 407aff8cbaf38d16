package raffle

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"

	domain "github.com/VladKovDev/raffle-bot/internal/domain/raffle"
	"github.com/google/uuid"
)

// DefaultWinnerCap is the number of winners drawn when none is configured.
const DefaultWinnerCap = 50

// Draw shuffles participants with Fisher-Yates and returns up to limit
// handles in shuffled order. Each swap index is drawn uniformly from
// [0, i] by rejection sampling on r, which must be a cryptographically
// secure source in production.
func Draw(r io.Reader, participants []domain.Participant, limit int) ([]string, error) {
	const op = "draw"

	if limit <= 0 {
		return nil, domain.InvalidArgument(op, fmt.Sprintf("winner cap must be positive, got %d", limit))
	}
	if len(participants) == 0 {
		return []string{}, nil
	}
	if r == nil {
		r = rand.Reader
	}

	shuffled := make([]domain.Participant, len(participants))
	copy(shuffled, participants)

	for i := len(shuffled) - 1; i > 0; i-- {
		j, err := rand.Int(r, big.NewInt(int64(i)+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read random source: %w", err)
		}
		k := j.Int64()
		shuffled[i], shuffled[k] = shuffled[k], shuffled[i]
	}

	n := min(limit, len(shuffled))
	handles := make([]string, 0, n)
	for _, p := range shuffled[:n] {
		handles = append(handles, p.Twitter)
	}
	return handles, nil
}

// Finalize freezes a draw result at now.
func Finalize(list []string, now time.Time) domain.Winners {
	return domain.Winners{
		Timestamp: now.UnixMilli(),
		List:      append([]string{}, list...),
		DrawID:    uuid.NewString(),
	}
}
