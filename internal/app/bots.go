package app

import (
	"context"
	"fmt"

	delivery "github.com/VladKovDev/raffle-bot/internal/delivery/telegram"
	"github.com/VladKovDev/raffle-bot/internal/infrastructure/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// StartBot authorizes the bot and starts its update loop in the background.
func (a *App) StartBot(ctx context.Context) (*delivery.BotHandler, error) {
	bot, err := tgbotapi.NewBotAPI(a.Config.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create new bot API: %w", err)
	}

	bot.Debug = a.Config.Telegram.Debug
	a.Logger.Info("Authorized on account",
		zap.String("account", bot.Self.UserName))

	botHandler := a.NewBotHandler(bot, telegram.NewSender(bot, a.Logger.Named("telegram")))

	go botHandler.Start(ctx)

	return botHandler, nil
}

// NewBotHandler wires the raffle flow to updates and a messenger.
func (a *App) NewBotHandler(updates delivery.UpdatesProvider, messenger delivery.Messenger) *delivery.BotHandler {
	flow := delivery.NewFlow(messenger, a.Ledger, a.Results, a.Outbox, a.Logger.Named("flow"))
	return delivery.NewBotHandler(updates, flow, a.Config.Telegram.UpdateTimeout, a.Logger)
}
