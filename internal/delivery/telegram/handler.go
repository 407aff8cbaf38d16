package telegram

import (
	"context"
	"sync"

	"github.com/VladKovDev/raffle-bot/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// UpdatesProvider is the long-polling part of *tgbotapi.BotAPI.
type UpdatesProvider interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type BotHandler struct {
	bot     UpdatesProvider
	flow    *Flow
	timeout int
	logger  logger.Logger
	wg      sync.WaitGroup
	stopped chan struct{}
}

func NewBotHandler(bot UpdatesProvider, flow *Flow, updateTimeout int, logger logger.Logger) *BotHandler {
	return &BotHandler{
		bot:     bot,
		flow:    flow,
		timeout: updateTimeout,
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// Start processes incoming updates until ctx is cancelled or the updates
// channel closes. Each update is handled in its own goroutine. Start must
// be called at most once.
func (h *BotHandler) Start(ctx context.Context) {
	defer close(h.stopped)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = h.timeout

	updates := h.bot.GetUpdatesChan(u)

	// in-flight handlers finish their writes after shutdown begins
	handlerCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			h.stop()
			return
		case upd, ok := <-updates:
			if !ok {
				h.logger.Info("updates channel closed")
				return
			}
			// select picks at random when both cases are ready
			if ctx.Err() != nil {
				h.stop()
				return
			}
			ev, ok := h.event(upd)
			if !ok {
				continue
			}
			h.wg.Add(1)
			go h.handle(handlerCtx, upd.UpdateID, ev)
		}
	}
}

func (h *BotHandler) stop() {
	h.logger.Info("stopping update loop")
	h.bot.StopReceivingUpdates()
}

// Done is closed once Start has returned.
func (h *BotHandler) Done() <-chan struct{} {
	return h.stopped
}

// Wait blocks until Start has returned and every update it dispatched has
// been handled.
func (h *BotHandler) Wait() {
	<-h.stopped
	h.wg.Wait()
}

func (h *BotHandler) event(upd tgbotapi.Update) (Event, bool) {
	ev, ok := EventFromUpdate(upd)
	if !ok {
		return nil, false
	}
	if r, isReply := ev.(TextReply); isReply {
		r.IsReplyToHandlePrompt = h.flow.IsHandlePromptReply(r.Identity, r.ReplyToMessageID, r.ReplyToText)
		ev = r
	}
	return ev, true
}

func (h *BotHandler) handle(ctx context.Context, updateID int, ev Event) {
	defer h.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic while handling update",
				zap.Int("update_id", updateID),
				zap.Any("panic", r))
		}
	}()
	h.flow.Handle(ctx, ev)
}
