package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/VladKovDev/raffle-bot/internal/domain/raffle"
	"github.com/VladKovDev/raffle-bot/internal/domain/repository"
	"github.com/VladKovDev/raffle-bot/pkg/logger"
	"go.uber.org/zap"
)

// LoadOrFresh loads the stored aggregate. Corrupt data is logged and
// replaced by an empty aggregate; any other failure is returned.
func LoadOrFresh(ctx context.Context, repo repository.StateRepository, log logger.Logger) (*raffle.State, error) {
	state, err := repo.Load(ctx)
	if err == nil {
		state.Normalize()
		log.Info("raffle state loaded",
			zap.Int("participants", len(state.Participants)),
			zap.Int64("total_starts", state.TotalStarts),
			zap.Bool("drawn", state.Winners != nil))
		return state, nil
	}

	if errors.Is(err, raffle.ErrCorruptState) {
		log.Warn("stored raffle state is corrupt, starting from an empty state", zap.Error(err))
		return raffle.NewState(), nil
	}

	return nil, fmt.Errorf("failed to load raffle state: %w", err)
}
