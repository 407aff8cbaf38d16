package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	domain "github.com/VladKovDev/raffle-bot/internal/domain/raffle"
	"github.com/VladKovDev/raffle-bot/internal/services/raffle"
	"github.com/VladKovDev/raffle-bot/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Messenger delivers and retracts bot messages.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup any) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Flow answers raffle events. Every answer retracts the user's previous
// bot message first and is recorded as the new last message.
type Flow struct {
	messenger Messenger
	ledger    *raffle.Ledger
	results   *raffle.Results
	outbox    *raffle.Outbox
	logger    logger.Logger
	printer   *message.Printer
	now       func() time.Time

	mu      sync.Mutex
	prompts map[string]int
}

func NewFlow(messenger Messenger, ledger *raffle.Ledger, results *raffle.Results, outbox *raffle.Outbox, log logger.Logger) *Flow {
	return &Flow{
		messenger: messenger,
		ledger:    ledger,
		results:   results,
		outbox:    outbox,
		logger:    log,
		printer:   message.NewPrinter(language.English),
		now:       time.Now,
		prompts:   make(map[string]int),
	}
}

// Handle dispatches ev. Failures are logged and, when possible, reported
// to the user.
func (f *Flow) Handle(ctx context.Context, ev Event) {
	var err error
	switch e := ev.(type) {
	case SessionStart:
		err = f.HandleSessionStart(ctx, e)
	case ButtonPressed:
		err = f.HandleButton(ctx, e)
	case TextReply:
		err = f.HandleTextReply(ctx, e)
	default:
		return
	}
	if err != nil {
		f.reportError(ctx, ev.chatID(), ev.identity(), err)
	}
}

func (f *Flow) HandleSessionStart(ctx context.Context, ev SessionStart) error {
	f.retractPrevious(ctx, ev.ChatID, ev.Identity)
	if err := f.ledger.RecordStart(ctx, ev.Identity); err != nil {
		return err
	}
	_, err := f.reply(ctx, ev.ChatID, ev.Identity, welcomeText, mainMenu())
	return err
}

func (f *Flow) HandleButton(ctx context.Context, ev ButtonPressed) error {
	defer func() {
		if ev.CallbackID == "" {
			return
		}
		if err := f.messenger.AnswerCallback(ctx, ev.CallbackID); err != nil {
			f.logger.Warn("failed to answer callback",
				zap.String("identity", ev.Identity),
				zap.Error(err))
		}
	}()

	f.retractPrevious(ctx, ev.ChatID, ev.Identity)

	switch ev.Action {
	case ActionTimeLeft:
		left := f.results.TimeLeft(f.now())
		f.logger.Debug("time left requested",
			zap.String("identity", ev.Identity),
			zap.Time("ends_at", f.results.EndsAt()),
			zap.Duration("left", left))
		text := timeLeftText(f.printer, left)
		_, err := f.reply(ctx, ev.ChatID, ev.Identity, text, mainMenu())
		return err

	case ActionRaffleResult:
		text, err := f.resultsText(ctx)
		if err != nil {
			return err
		}
		_, err = f.reply(ctx, ev.ChatID, ev.Identity, text, mainMenu())
		return err

	case ActionJoinRaffle:
		if handle, ok := f.ledger.HandleFor(ev.Identity); ok {
			_, err := f.reply(ctx, ev.ChatID, ev.Identity, alreadyJoinedText(handle), mainMenu())
			return err
		}
		id, err := f.reply(ctx, ev.ChatID, ev.Identity, handlePromptText, handlePrompt())
		if err != nil {
			return err
		}
		f.mu.Lock()
		f.prompts[ev.Identity] = id
		f.mu.Unlock()
		return nil

	case ActionParticipantCount:
		text := countsText(f.printer, f.ledger.TotalStarts(), f.ledger.Count())
		_, err := f.reply(ctx, ev.ChatID, ev.Identity, text, mainMenu())
		return err

	default:
		f.logger.Debug("unknown button action",
			zap.String("identity", ev.Identity),
			zap.String("action", string(ev.Action)))
		_, err := f.reply(ctx, ev.ChatID, ev.Identity, unknownActionText, mainMenu())
		return err
	}
}

func (f *Flow) resultsText(ctx context.Context) (string, error) {
	outcome, err := f.results.Query(ctx, f.now())
	if err != nil && outcome.Winners == nil {
		return "", err
	}
	if err != nil {
		// the draw is frozen in memory; only the wait for its write failed
		f.logger.Warn("winners drawn but not confirmed on disk", zap.Error(err))
	}

	switch outcome.Status {
	case domain.StatusOpen:
		return raffleNotEndedText, nil
	case domain.StatusAwaitingDraw:
		return noParticipantsText, nil
	default:
		return winnersText(outcome.Winners.List), nil
	}
}

func (f *Flow) HandleTextReply(ctx context.Context, ev TextReply) error {
	if !ev.IsReplyToHandlePrompt {
		return nil
	}

	f.retractPrevious(ctx, ev.ChatID, ev.Identity)

	p, err := f.ledger.Register(ctx, ev.Identity, ev.DisplayName, normalizeHandle(ev.Text))
	var text string
	switch {
	case err == nil:
		text = joinedText(p.Twitter)
		f.logger.Info("participant registered",
			zap.String("identity", ev.Identity),
			zap.String("handle", p.Twitter))
	case errors.Is(err, domain.ErrAlreadyRegistered):
		text = alreadyRegisteredText(p.Twitter)
	case errors.Is(err, domain.ErrInvalidArgument):
		text = emptyHandleText
	default:
		return err
	}

	_, err = f.reply(ctx, ev.ChatID, ev.Identity, text, mainMenu())
	return err
}

// IsHandlePromptReply reports whether a reply targets the handle prompt
// sent to identity. Prompts sent before a restart are recognized by
// their text.
func (f *Flow) IsHandlePromptReply(identity string, replyToID int, replyToText string) bool {
	f.mu.Lock()
	id, ok := f.prompts[identity]
	f.mu.Unlock()
	if ok && id == replyToID {
		return true
	}
	return strings.Contains(replyToText, handlePromptMarker)
}

// reply sends a message and records it as identity's last message.
func (f *Flow) reply(ctx context.Context, chatID int64, identity, text string, markup any) (int, error) {
	id, err := f.messenger.SendMessage(ctx, chatID, text, markup)
	if err != nil {
		return 0, err
	}

	f.mu.Lock()
	delete(f.prompts, identity)
	f.mu.Unlock()

	if err := f.outbox.RecordLastMessage(ctx, identity, id); err != nil {
		f.logger.Warn("failed to record last message",
			zap.String("identity", identity),
			zap.Error(err))
	}
	return id, nil
}

func (f *Flow) retractPrevious(ctx context.Context, chatID int64, identity string) {
	id, ok := f.outbox.LastMessageFor(identity)
	if !ok {
		return
	}
	err := f.messenger.DeleteMessage(ctx, chatID, id)
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		return
	}
	f.logger.Warn("failed to delete previous message",
		zap.String("identity", identity),
		zap.Int("message_id", id),
		zap.Error(err))
}

// reportError tells the user something went wrong. It is best-effort.
func (f *Flow) reportError(ctx context.Context, chatID int64, identity string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	f.logger.Error("failed to handle event",
		zap.String("identity", identity),
		zap.Error(err))
	if ctx.Err() != nil {
		return
	}

	text := genericErrorText
	if errors.Is(err, domain.ErrRateLimited) {
		text = rateLimitedText
	}
	if _, err := f.reply(ctx, chatID, identity, text, mainMenu()); err != nil {
		f.logger.Error("failed to send error reply",
			zap.String("identity", identity),
			zap.Error(err))
	}
}
