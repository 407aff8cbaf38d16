package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	domain "github.com/VladKovDev/raffle-bot/internal/domain/raffle"
	"github.com/VladKovDev/raffle-bot/internal/services/raffle"
	"github.com/VladKovDev/raffle-bot/pkg/logger"
)

type sentMessage struct {
	chatID int64
	text   string
	markup any
	id     int
}

type fakeMessenger struct {
	mu        sync.Mutex
	nextID    int
	sent      []sentMessage
	deleted   []int
	answered  []string
	sendErrs  []error
	deleteErr error
}

func (m *fakeMessenger) SendMessage(ctx context.Context, chatID int64, text string, markup any) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sendErrs) > 0 {
		err := m.sendErrs[0]
		m.sendErrs = m.sendErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	m.nextID++
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text, markup: markup, id: m.nextID})
	return m.nextID, nil
}

func (m *fakeMessenger) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, messageID)
	return m.deleteErr
}

func (m *fakeMessenger) AnswerCallback(ctx context.Context, callbackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answered = append(m.answered, callbackID)
	return nil
}

func (m *fakeMessenger) last(t *testing.T) sentMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("expected a message to be sent")
	}
	return m.sent[len(m.sent)-1]
}

func (m *fakeMessenger) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type instantFlusher struct{}

func (instantFlusher) RequestPersist() (<-chan struct{}, error) {
	ch := make(chan struct{})
	close(ch)
	return ch, nil
}

type testFlow struct {
	flow      *Flow
	messenger *fakeMessenger
	ledger    *raffle.Ledger
	outbox    *raffle.Outbox
	book      *raffle.Book
	endsAt    time.Time
}

func newTestFlow(t *testing.T, state *domain.State) *testFlow {
	t.Helper()
	endsAt := time.Date(2025, 6, 5, 22, 0, 0, 0, time.FixedZone("IRST", 3*3600+1800))
	book := raffle.NewBook(state)
	flusher := instantFlusher{}
	ledger := raffle.NewLedger(book, flusher)
	outbox := raffle.NewOutbox(book, flusher)
	results := raffle.NewResults(book, flusher, endsAt, raffle.DefaultWinnerCap, logger.Noop())
	messenger := &fakeMessenger{}

	flow := NewFlow(messenger, ledger, results, outbox, logger.Noop())
	flow.now = func() time.Time { return endsAt.Add(-time.Hour) }

	return &testFlow{flow: flow, messenger: messenger, ledger: ledger, outbox: outbox, book: book, endsAt: endsAt}
}
