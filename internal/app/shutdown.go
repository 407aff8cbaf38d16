package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	delivery "github.com/VladKovDev/raffle-bot/internal/delivery/telegram"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func gracefulShutdown(ctx context.Context, stopBot context.CancelFunc, app *App, handler *delivery.BotHandler) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger := app.Logger
	select {
	case <-ctx.Done():
		logger.Info("context cancelled, starting shutdown")
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	stopBot()

	select {
	case <-handler.Done():
	case <-shutdownCtx.Done():
		logger.Warn("update loop did not stop before the shutdown timeout")
		return app.Close(shutdownCtx)
	}

	handlersDone := make(chan struct{})
	go func() {
		handler.Wait()
		close(handlersDone)
	}()
	select {
	case <-handlersDone:
	case <-shutdownCtx.Done():
		logger.Warn("in-flight updates did not finish before the shutdown timeout")
	}

	return app.Close(shutdownCtx)
}

// Close stops the checkpointer, writes the aggregate one last time and
// releases the store.
func (a *App) Close(ctx context.Context) error {
	if a.Checkpointer != nil {
		a.Checkpointer.Stop()
	}

	if err := a.Serializer.Persist(ctx); err != nil {
		a.Logger.Error("final persist did not complete", zap.Error(err))
	}
	if err := a.Serializer.Close(ctx); err != nil {
		a.Logger.Warn("shutdown timeout exceeded")
		closeStore(a.Logger, a.Store, a.DB)
		return err
	}

	closeStore(a.Logger, a.Store, a.DB)
	a.Logger.Info("shutdown completed successfully",
		zap.Int64("writes", a.Serializer.Writes()),
		zap.Int64("failed_writes", a.Serializer.Failures()))
	return nil
}
