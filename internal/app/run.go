package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/VladKovDev/raffle-bot/internal/config"
	"github.com/VladKovDev/raffle-bot/internal/domain/repository"
	"github.com/VladKovDev/raffle-bot/internal/infrastructure/repository/postgres"
	"github.com/VladKovDev/raffle-bot/internal/services/persist"
	"github.com/VladKovDev/raffle-bot/internal/services/raffle"
	"github.com/VladKovDev/raffle-bot/pkg/logger"
	"go.uber.org/zap"
)

var timeNow = time.Now

// App holds high-level application dependencies.
type App struct {
	Config       *config.Config
	Logger       logger.Logger
	DB           *postgres.Pool
	Store        repository.StateRepository
	Book         *raffle.Book
	Serializer   *persist.Serializer
	Checkpointer *persist.Checkpointer
	Ledger       *raffle.Ledger
	Results      *raffle.Results
	Outbox       *raffle.Outbox
}

// NewApp loads the persisted aggregate from store and wires the raffle
// services around it.
func NewApp(ctx context.Context, cfg *config.Config, store repository.StateRepository, pool *postgres.Pool, logger logger.Logger) (*App, error) {
	endsAt, err := cfg.Raffle.EndsAtTime()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Raffle.Location()
	if err != nil {
		return nil, err
	}

	state, err := persist.LoadOrFresh(ctx, store, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("failed to load raffle state: %w", err)
	}

	book := raffle.NewBook(state)
	serializer := persist.NewSerializer(store, book, logger.Named("persist"))

	app := &App{
		Config:     cfg,
		Logger:     logger,
		DB:         pool,
		Store:      store,
		Book:       book,
		Serializer: serializer,
		Ledger:     raffle.NewLedger(book, serializer),
		Results:    raffle.NewResults(book, serializer, endsAt, cfg.Raffle.WinnerCap, logger.Named("results")),
		Outbox:     raffle.NewOutbox(book, serializer),
	}

	if cfg.Storage.Checkpoint != "" {
		app.Checkpointer, err = persist.NewCheckpointer(cfg.Storage.Checkpoint, loc, serializer, logger.Named("checkpoint"))
		if err != nil {
			return nil, err
		}
	}

	logger.Info("raffle configured",
		zap.Time("ends_at", app.Results.EndsAt().In(loc)),
		zap.Int("winner_cap", cfg.Raffle.WinnerCap),
		zap.String("status", app.Results.Status(timeNow()).String()))

	return app, nil
}

func Run(ctx context.Context) error {
	configPath := os.Getenv("RAFFLE_BOT_CONFIG_PATH")
	cfg, err := initConfig(configPath, ctx)
	if err != nil {
		return fmt.Errorf("failed to init config: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync()
	logger.Debug("logger debug enabled...")

	store, pool, err := initStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}

	app, err := NewApp(ctx, cfg, store, pool, logger)
	if err != nil {
		closeStore(logger, store, pool)
		return fmt.Errorf("failed to init app: %w", err)
	}

	botCtx, stopBot := context.WithCancel(ctx)
	defer stopBot()

	handler, err := app.StartBot(botCtx)
	if err != nil {
		app.Close(context.Background())
		return fmt.Errorf("failed to start bot: %w", err)
	}

	if app.Checkpointer != nil {
		app.Checkpointer.Start()
	}

	return gracefulShutdown(ctx, stopBot, app, handler)
}

func initConfig(configPath string, ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(configPath, ctx)
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) (logger.Logger, error) {
	return logger.New(cfg.Logger)
}
