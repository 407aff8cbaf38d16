// Package telegram turns Bot API updates into raffle events and answers
// them through a Messenger.
package telegram

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Action string

const (
	ActionTimeLeft         Action = "time_left"
	ActionRaffleResult     Action = "raffle_result"
	ActionJoinRaffle       Action = "join_raffle"
	ActionParticipantCount Action = "participant_count"
)

// Event is one of SessionStart, ButtonPressed or TextReply.
type Event interface {
	identity() string
	chatID() int64
}

type SessionStart struct {
	Identity    string
	ChatID      int64
	DisplayName string
}

type ButtonPressed struct {
	Identity   string
	ChatID     int64
	Action     Action
	CallbackID string
}

type TextReply struct {
	Identity         string
	ChatID           int64
	DisplayName      string
	Text             string
	ReplyToMessageID int
	ReplyToText      string
	// IsReplyToHandlePrompt is filled in by the handler, which knows
	// which prompts were sent.
	IsReplyToHandlePrompt bool
}

func (e SessionStart) identity() string { return e.Identity }
func (e SessionStart) chatID() int64 { return e.ChatID }
func (e ButtonPressed) identity() string { return e.Identity }
func (e ButtonPressed) chatID() int64 { return e.ChatID }
func (e TextReply) identity() string { return e.Identity }
func (e TextReply) chatID() int64 { return e.ChatID }

// EventFromUpdate maps an update onto an event. Updates the raffle does
// not react to yield false.
func EventFromUpdate(upd tgbotapi.Update) (Event, bool) {
	if cb := upd.CallbackQuery; cb != nil {
		if cb.From == nil {
			return nil, false
		}
		chatID := cb.From.ID
		if cb.Message != nil && cb.Message.Chat != nil {
			chatID = cb.Message.Chat.ID
		}
		return ButtonPressed{
			Identity:   identityOf(cb.From),
			ChatID:     chatID,
			Action:     Action(cb.Data),
			CallbackID: cb.ID,
		}, true
	}

	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil, false
	}

	if msg.IsCommand() {
		if msg.Command() != "start" {
			return nil, false
		}
		return SessionStart{
			Identity:    identityOf(msg.From),
			ChatID:      msg.Chat.ID,
			DisplayName: displayName(msg.From),
		}, true
	}

	if msg.ReplyToMessage == nil {
		return nil, false
	}
	return TextReply{
		Identity:         identityOf(msg.From),
		ChatID:           msg.Chat.ID,
		DisplayName:      displayName(msg.From),
		Text:             msg.Text,
		ReplyToMessageID: msg.ReplyToMessage.MessageID,
		ReplyToText:      msg.ReplyToMessage.Text,
	}, true
}

func identityOf(u *tgbotapi.User) string {
	return strconv.FormatInt(u.ID, 10)
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return u.FirstName
}
