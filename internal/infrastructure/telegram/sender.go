// Package telegram adapts the Bot API client to the messenger used by the
// raffle flow.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/VladKovDev/raffle-bot/internal/domain/raffle"
	"github.com/VladKovDev/raffle-bot/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// DefaultRetryAfter applies when a 429 response carries no retry_after.
const DefaultRetryAfter = 5 * time.Second

// BotAPI is the part of *tgbotapi.BotAPI the sender needs.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Sender struct {
	bot    BotAPI
	logger logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewSender(bot BotAPI, log logger.Logger) *Sender {
	return &Sender{bot: bot, logger: log, sleep: sleepContext}
}

// SendMessage delivers text with an optional reply markup and returns the
// new message id. A rate-limited send is retried once after the delay the
// server asked for.
func (s *Sender) SendMessage(ctx context.Context, chatID int64, text string, markup any) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}

	var sent tgbotapi.Message
	err := s.withRetry(ctx, "send_message", func() error {
		var err error
		sent, err = s.bot.Send(msg)
		return classify("send_message", err, false)
	})
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// DeleteMessage removes a message. A message that is already gone yields
// a KindNotFound error.
func (s *Sender) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	del := tgbotapi.NewDeleteMessage(chatID, messageID)
	return s.withRetry(ctx, "delete_message", func() error {
		_, err := s.bot.Request(del)
		return classify("delete_message", err, true)
	})
}

func (s *Sender) AnswerCallback(ctx context.Context, callbackID string) error {
	cb := tgbotapi.NewCallback(callbackID, "")
	return s.withRetry(ctx, "answer_callback", func() error {
		_, err := s.bot.Request(cb)
		return classify("answer_callback", err, false)
	})
}

func (s *Sender) withRetry(ctx context.Context, op string, call func() error) error {
	err := call()
	wait, limited := raffle.RetryAfterOf(err)
	if !limited {
		return err
	}

	s.logger.Warn("telegram rate limit hit, retrying",
		zap.String("op", op),
		zap.Duration("retry_after", wait))
	if err := s.sleep(ctx, wait); err != nil {
		return fmt.Errorf("failed to wait for rate limit: %w", err)
	}
	return call()
}

// classify maps a Bot API failure onto a raffle error kind using the
// numeric error code only.
func classify(op string, err error, isDelete bool) error {
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return &raffle.Error{Kind: raffle.KindTransient, Op: op, Err: err}
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		wait := time.Duration(apiErr.RetryAfter) * time.Second
		if wait <= 0 {
			wait = DefaultRetryAfter
		}
		return &raffle.Error{Kind: raffle.KindRateLimited, Op: op, RetryAfter: wait, Err: err}
	case isDelete && apiErr.Code == http.StatusBadRequest:
		return &raffle.Error{Kind: raffle.KindNotFound, Op: op, Err: err}
	default:
		return &raffle.Error{Kind: raffle.KindTransient, Op: op, Err: err}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
