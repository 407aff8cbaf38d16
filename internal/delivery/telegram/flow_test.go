package telegram

import (
	"context"
	"strings"
	"testing"
	"time"

	domain "github.com/VladKovDev/raffle-bot/internal/domain/raffle"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestFlow_SessionStart(t *testing.T) {
	tf := newTestFlow(t, nil)
	ctx := context.Background()

	tf.flow.Handle(ctx, SessionStart{Identity: "1", ChatID: 1, DisplayName: "alice"})

	msg := tf.messenger.last(t)
	if msg.text != welcomeText {
		t.Errorf("expected welcome text, got %q", msg.text)
	}
	if _, ok := msg.markup.(tgbotapi.InlineKeyboardMarkup); !ok {
		t.Errorf("expected main menu markup, got %T", msg.markup)
	}
	if tf.ledger.TotalStarts() != 1 {
		t.Errorf("expected totalStarts 1, got %d", tf.ledger.TotalStarts())
	}
	if id, ok := tf.outbox.LastMessageFor("1"); !ok || id != msg.id {
		t.Errorf("expected last message %d, got %d (ok=%v)", msg.id, id, ok)
	}
}

func TestFlow_RetractsPreviousMessage(t *testing.T) {
	tf := newTestFlow(t, nil)
	ctx := context.Background()

	tf.flow.Handle(ctx, SessionStart{Identity: "1", ChatID: 1})
	first := tf.messenger.last(t).id
	tf.flow.Handle(ctx, SessionStart{Identity: "1", ChatID: 1})

	if len(tf.messenger.deleted) != 1 || tf.messenger.deleted[0] != first {
		t.Errorf("expected message %d to be deleted, got %v", first, tf.messenger.deleted)
	}
	if tf.ledger.TotalStarts() != 2 {
		t.Errorf("expected totalStarts 2, got %d", tf.ledger.TotalStarts())
	}
}

func TestFlow_DeleteNotFoundIsIgnored(t *testing.T) {
	tf := newTestFlow(t, nil)
	tf.messenger.deleteErr = &domain.Error{Kind: domain.KindNotFound}
	ctx := context.Background()

	tf.flow.Handle(ctx, SessionStart{Identity: "1", ChatID: 1})
	tf.flow.Handle(ctx, SessionStart{Identity: "1", ChatID: 1})

	if got := tf.messenger.last(t).text; got != welcomeText {
		t.Errorf("expected welcome text, got %q", got)
	}
	if tf.messenger.sentCount() != 2 {
		t.Errorf("expected 2 messages, got %d", tf.messenger.sentCount())
	}
}

func TestFlow_JoinFlow(t *testing.T) {
	tf := newTestFlow(t, nil)
	ctx := context.Background()

	tf.flow.Handle(ctx, ButtonPressed{Identity: "7", ChatID: 7, Action: ActionJoinRaffle, CallbackID: "cb"})

	prompt := tf.messenger.last(t)
	if prompt.text != handlePromptText {
		t.Errorf("expected handle prompt, got %q", prompt.text)
	}
	if _, ok := prompt.markup.(tgbotapi.ForceReply); !ok {
		t.Errorf("expected force reply markup, got %T", prompt.markup)
	}
	if len(tf.messenger.answered) != 1 || tf.messenger.answered[0] != "cb" {
		t.Errorf("expected callback to be answered, got %v", tf.messenger.answered)
	}
	if !tf.flow.IsHandlePromptReply("7", prompt.id, "") {
		t.Fatal("expected reply to the prompt to be recognized")
	}

	tf.flow.Handle(ctx, TextReply{Identity: "7", ChatID: 7, DisplayName: "gina", Text: "  @gina_tw ", ReplyToMessageID: prompt.id, IsReplyToHandlePrompt: true})

	if got := tf.messenger.last(t).text; got != "You have successfully joined the raffle with Twitter username: @gina_tw" {
		t.Errorf("unexpected reply %q", got)
	}
	if handle, ok := tf.ledger.HandleFor("7"); !ok || handle != "gina_tw" {
		t.Errorf("expected handle gina_tw, got %q (ok=%v)", handle, ok)
	}
	if tf.flow.IsHandlePromptReply("7", prompt.id, "") {
		t.Error("expected the prompt to be cleared after the next reply")
	}
}

func TestFlow_JoinWhenRegistered(t *testing.T) {
	state := domain.NewState()
	state.Participants["7"] = domain.Participant{Username: "gina", Twitter: "gina_tw"}
	tf := newTestFlow(t, state)

	tf.flow.Handle(context.Background(), ButtonPressed{Identity: "7", ChatID: 7, Action: ActionJoinRaffle})

	if got := tf.messenger.last(t).text; got != "You have already joined the raffle with Twitter username: @gina_tw" {
		t.Errorf("unexpected reply %q", got)
	}
}

func TestFlow_SecondRegistrationKeepsFirstHandle(t *testing.T) {
	tf := newTestFlow(t, nil)
	ctx := context.Background()

	tf.flow.Handle(ctx, TextReply{Identity: "7", ChatID: 7, Text: "first", IsReplyToHandlePrompt: true})
	tf.flow.Handle(ctx, TextReply{Identity: "7", ChatID: 7, Text: "second", IsReplyToHandlePrompt: true})

	if got := tf.messenger.last(t).text; got != "You have already registered with Twitter username: @first" {
		t.Errorf("unexpected reply %q", got)
	}
	if handle, _ := tf.ledger.HandleFor("7"); handle != "first" {
		t.Errorf("expected handle first, got %q", handle)
	}
}

func TestFlow_EmptyHandle(t *testing.T) {
	tf := newTestFlow(t, nil)

	tf.flow.Handle(context.Background(), TextReply{Identity: "7", ChatID: 7, Text: " @ ", IsReplyToHandlePrompt: true})

	if got := tf.messenger.last(t).text; got != emptyHandleText {
		t.Errorf("expected empty handle text, got %q", got)
	}
	if tf.ledger.IsRegistered("7") {
		t.Error("expected no participant to be created")
	}
}

func TestFlow_IgnoresUnrelatedReplies(t *testing.T) {
	tf := newTestFlow(t, nil)

	tf.flow.Handle(context.Background(), TextReply{Identity: "7", ChatID: 7, Text: "hello"})

	if tf.messenger.sentCount() != 0 {
		t.Errorf("expected no messages, got %d", tf.messenger.sentCount())
	}
	if tf.ledger.IsRegistered("7") {
		t.Error("expected no participant to be created")
	}
}

func TestFlow_IsHandlePromptReplyFallsBackToText(t *testing.T) {
	tf := newTestFlow(t, nil)

	if !tf.flow.IsHandlePromptReply("9", 123, handlePromptText) {
		t.Error("expected the prompt text to be recognized")
	}
	if tf.flow.IsHandlePromptReply("9", 123, "Raffle winners:") {
		t.Error("expected an unrelated message not to be recognized")
	}
}

func TestFlow_TimeLeft(t *testing.T) {
	tf := newTestFlow(t, nil)
	ctx := context.Background()

	tf.flow.now = func() time.Time {
		return tf.endsAt.Add(-(2*24*time.Hour + 3*time.Hour + 4*time.Minute + 30*time.Second))
	}
	tf.flow.Handle(ctx, ButtonPressed{Identity: "1", ChatID: 1, Action: ActionTimeLeft})
	if got := tf.messenger.last(t).text; got != "Time left until raffle ends:\n2 days, 3 hours, and 4 minutes" {
		t.Errorf("unexpected time left text %q", got)
	}

	tf.flow.now = func() time.Time { return tf.endsAt.Add(time.Second) }
	tf.flow.Handle(ctx, ButtonPressed{Identity: "1", ChatID: 1, Action: ActionTimeLeft})
	if got := tf.messenger.last(t).text; got != raffleEndedText {
		t.Errorf("expected %q, got %q", raffleEndedText, got)
	}
}

func TestFlow_ParticipantCount(t *testing.T) {
	state := domain.NewState()
	state.TotalStarts = 1234
	state.Participants["1"] = domain.Participant{Twitter: "a"}
	state.Participants["2"] = domain.Participant{Twitter: "b"}
	tf := newTestFlow(t, state)

	tf.flow.Handle(context.Background(), ButtonPressed{Identity: "1", ChatID: 1, Action: ActionParticipantCount})

	want := "Total users who started the bot: 1,234\nUsers who joined the raffle: 2"
	if got := tf.messenger.last(t).text; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestFlow_RaffleResults(t *testing.T) {
	tf := newTestFlow(t, nil)
	ctx := context.Background()
	press := ButtonPressed{Identity: "1", ChatID: 1, Action: ActionRaffleResult}

	tf.flow.Handle(ctx, press)
	if got := tf.messenger.last(t).text; got != raffleNotEndedText {
		t.Errorf("expected %q, got %q", raffleNotEndedText, got)
	}

	tf.flow.now = func() time.Time { return tf.endsAt.Add(time.Minute) }
	tf.flow.Handle(ctx, press)
	if got := tf.messenger.last(t).text; got != noParticipantsText {
		t.Errorf("expected %q, got %q", noParticipantsText, got)
	}

	for _, h := range []string{"alice", "bob"} {
		if _, err := tf.ledger.Register(ctx, h, h, h); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
	}

	tf.flow.Handle(ctx, press)
	first := tf.messenger.last(t).text
	if !strings.HasPrefix(first, winnersHeader) {
		t.Fatalf("expected winners text, got %q", first)
	}
	lines := strings.Split(strings.TrimPrefix(first, winnersHeader), "\n")
	if len(lines) != 2 {
		t.Errorf("expected 2 winners, got %v", lines)
	}

	tf.flow.Handle(ctx, press)
	if second := tf.messenger.last(t).text; second != first {
		t.Errorf("expected frozen winners %q, got %q", first, second)
	}
}

func TestFlow_RateLimitedReply(t *testing.T) {
	tf := newTestFlow(t, nil)
	tf.messenger.sendErrs = []error{&domain.Error{Kind: domain.KindRateLimited, RetryAfter: time.Second}}

	tf.flow.Handle(context.Background(), SessionStart{Identity: "1", ChatID: 1})

	if got := tf.messenger.last(t).text; got != rateLimitedText {
		t.Errorf("expected %q, got %q", rateLimitedText, got)
	}
}

func TestFlow_TransientFailureReply(t *testing.T) {
	tf := newTestFlow(t, nil)
	tf.messenger.sendErrs = []error{&domain.Error{Kind: domain.KindTransient}}

	tf.flow.Handle(context.Background(), ButtonPressed{Identity: "1", ChatID: 1, Action: ActionParticipantCount, CallbackID: "cb"})

	if got := tf.messenger.last(t).text; got != genericErrorText {
		t.Errorf("expected %q, got %q", genericErrorText, got)
	}
	if len(tf.messenger.answered) != 1 {
		t.Errorf("expected the callback to be answered even on failure, got %v", tf.messenger.answered)
	}
}

func TestNormalizeHandle(t *testing.T) {
	tests := map[string]string{
		"alice":     "alice",
		"  @alice ": "alice",
		"@":         "",
		"   ":       "",
		"@@alice":   "@alice",
	}
	for in, want := range tests {
		if got := normalizeHandle(in); got != want {
			t.Errorf("normalizeHandle(%q): expected %q, got %q", in, want, got)
		}
	}
}
