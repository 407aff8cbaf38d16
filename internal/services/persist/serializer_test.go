package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/VladKovDev/raffle-bot/internal/domain/raffle"
	service "github.com/VladKovDev/raffle-bot/internal/services/raffle"
	"github.com/VladKovDev/raffle-bot/pkg/logger"
)

// memoryRepo records every persisted state. When gate is set, each
// Persist blocks until a value is received from it.
type memoryRepo struct {
	mu       sync.Mutex
	saved    []raffle.State
	gate     chan struct{}
	started  chan struct{}
	fail     error
	loadErr  error
	loadWith *raffle.State
	active   int
	overlap  bool
}

func (r *memoryRepo) Load(_ context.Context) (*raffle.State, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	if r.loadWith != nil {
		return r.loadWith, nil
	}
	return raffle.NewState(), nil
}

func (r *memoryRepo) Persist(_ context.Context, state raffle.State) error {
	r.mu.Lock()
	r.active++
	if r.active > 1 {
		r.overlap = true
	}
	r.mu.Unlock()

	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.gate != nil {
		<-r.gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.active--
	if r.fail != nil {
		return r.fail
	}
	r.saved = append(r.saved, state)
	return nil
}

func (r *memoryRepo) Close() error { return nil }

func (r *memoryRepo) last() (raffle.State, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saved) == 0 {
		return raffle.State{}, 0
	}
	return r.saved[len(r.saved)-1], len(r.saved)
}

type counterSource struct {
	mu    sync.Mutex
	state *raffle.State
}

func newCounterSource() *counterSource {
	return &counterSource{state: raffle.NewState()}
}

func (s *counterSource) Snapshot() raffle.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *counterSource) bump() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.TotalStarts++
}

func waitDone(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for persist")
	}
}

func request(t *testing.T, s *Serializer) <-chan struct{} {
	t.Helper()
	done, err := s.RequestPersist()
	if err != nil {
		t.Fatalf("RequestPersist returned error: %v", err)
	}
	return done
}

func TestSerializer_PersistWritesSnapshot(t *testing.T) {
	repo := &memoryRepo{}
	src := newCounterSource()
	s := NewSerializer(repo, src, logger.Noop())

	src.bump()
	if err := s.Persist(context.Background()); err != nil {
		t.Fatalf("Persist returned error: %v", err)
	}

	got, n := repo.last()
	if n != 1 {
		t.Fatalf("expected 1 write, got %d", n)
	}
	if got.TotalStarts != 1 {
		t.Errorf("expected totalStarts 1, got %d", got.TotalStarts)
	}
}

func TestSerializer_CoalescesRequestsWhileWriting(t *testing.T) {
	repo := &memoryRepo{gate: make(chan struct{}), started: make(chan struct{}, 10)}
	src := newCounterSource()
	s := NewSerializer(repo, src, logger.Noop())

	src.bump()
	first := request(t, s)
	<-repo.started

	var waiters []<-chan struct{}
	for i := 0; i < 5; i++ {
		src.bump()
		waiters = append(waiters, request(t, s))
	}

	select {
	case <-waiters[0]:
		t.Fatal("queued request released before its write completed")
	default:
	}

	repo.gate <- struct{}{}
	waitDone(t, first)
	<-repo.started
	repo.gate <- struct{}{}
	for _, w := range waiters {
		waitDone(t, w)
	}

	got, n := repo.last()
	if n != 2 {
		t.Errorf("expected 2 physical writes, got %d", n)
	}
	if got.TotalStarts != 6 {
		t.Errorf("expected final totalStarts 6, got %d", got.TotalStarts)
	}
	if s.Writes() != 2 {
		t.Errorf("expected Writes() 2, got %d", s.Writes())
	}
}

func TestSerializer_NoLostUpdateUnderConcurrency(t *testing.T) {
	repo := &memoryRepo{}
	src := newCounterSource()
	s := NewSerializer(repo, src, logger.Noop())

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src.bump()
			done, err := s.RequestPersist()
			if err != nil {
				t.Errorf("RequestPersist returned error: %v", err)
				return
			}
			<-done
		}()
	}
	wg.Wait()

	got, _ := repo.last()
	want := src.Snapshot()
	if got.TotalStarts != want.TotalStarts || got.TotalStarts != n {
		t.Errorf("expected persisted totalStarts %d, got %d", n, got.TotalStarts)
	}
	if repo.overlap {
		t.Error("expected writes never to overlap")
	}
}

func TestSerializer_FailureStillReleasesWaiters(t *testing.T) {
	repo := &memoryRepo{fail: &raffle.Error{Kind: raffle.KindIO, Err: errors.New("disk full")}}
	src := newCounterSource()
	s := NewSerializer(repo, src, logger.Noop())

	if err := s.Persist(context.Background()); err != nil {
		t.Fatalf("expected write failure to be swallowed, got %v", err)
	}
	if s.Failures() != 1 {
		t.Errorf("expected 1 failure, got %d", s.Failures())
	}
}

func TestSerializer_PersistHonoursContext(t *testing.T) {
	repo := &memoryRepo{gate: make(chan struct{})}
	s := NewSerializer(repo, newCounterSource(), logger.Noop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Persist(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	close(repo.gate)
}

func TestSerializer_CloseDrainsAndRejects(t *testing.T) {
	repo := &memoryRepo{gate: make(chan struct{}), started: make(chan struct{}, 10)}
	src := newCounterSource()
	s := NewSerializer(repo, src, logger.Noop())

	src.bump()
	request(t, s)
	<-repo.started
	src.bump()
	pending := request(t, s)

	closed := make(chan error, 1)
	go func() { closed <- s.Close(context.Background()) }()

	select {
	case <-closed:
		t.Fatal("Close returned while writes were outstanding")
	case <-time.After(20 * time.Millisecond):
	}

	close(repo.gate)
	waitDone(t, pending)
	if err := <-closed; err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	got, _ := repo.last()
	if got.TotalStarts != 2 {
		t.Errorf("expected drained write with totalStarts 2, got %d", got.TotalStarts)
	}
	if err := s.Persist(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
	if _, err := s.RequestPersist(); !errors.Is(err, ErrClosed) || !errors.Is(err, raffle.ErrIO) {
		t.Errorf("expected an io ErrClosed from RequestPersist, got %v", err)
	}
	if _, n := repo.last(); n != 2 {
		t.Errorf("expected no write after Close, got %d writes", n)
	}
}

func TestSerializer_MutationsAfterCloseFail(t *testing.T) {
	repo := &memoryRepo{}
	book := service.NewBook(nil)
	s := NewSerializer(repo, book, logger.Noop())
	ledger := service.NewLedger(book, s)
	outbox := service.NewOutbox(book, s)
	ctx := context.Background()

	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	if _, err := ledger.Register(ctx, "42", "bob", "bob"); !errors.Is(err, ErrClosed) {
		t.Errorf("Register: expected ErrClosed, got %v", err)
	}
	if err := ledger.RecordStart(ctx, "42"); !errors.Is(err, ErrClosed) {
		t.Errorf("RecordStart: expected ErrClosed, got %v", err)
	}
	if err := outbox.RecordLastMessage(ctx, "42", 7); !errors.Is(err, ErrClosed) {
		t.Errorf("RecordLastMessage: expected ErrClosed, got %v", err)
	}
	if _, n := repo.last(); n != 0 {
		t.Errorf("expected nothing written after Close, got %d writes", n)
	}
}

func TestLoadOrFresh_CorruptFallsBackToEmpty(t *testing.T) {
	repo := &memoryRepo{loadErr: &raffle.Error{Kind: raffle.KindCorruptState, Err: errors.New("unexpected EOF")}}

	state, err := LoadOrFresh(context.Background(), repo, logger.Noop())
	if err != nil {
		t.Fatalf("expected corrupt state to be recovered, got %v", err)
	}
	if len(state.Participants) != 0 || state.TotalStarts != 0 || state.Winners != nil {
		t.Errorf("expected an empty state, got %+v", state)
	}
}

func TestLoadOrFresh_OtherErrorsPropagate(t *testing.T) {
	repo := &memoryRepo{loadErr: fmt.Errorf("permission denied")}

	if _, err := LoadOrFresh(context.Background(), repo, logger.Noop()); err == nil {
		t.Error("expected load error to propagate")
	}
}

func TestLoadOrFresh_NormalizesLoadedState(t *testing.T) {
	repo := &memoryRepo{loadWith: &raffle.State{TotalStarts: 4}}

	state, err := LoadOrFresh(context.Background(), repo, logger.Noop())
	if err != nil {
		t.Fatalf("LoadOrFresh returned error: %v", err)
	}
	if state.LastMessageIDs == nil || state.Participants == nil {
		t.Error("expected maps to be initialized")
	}
	if state.TotalStarts != 4 {
		t.Errorf("expected totalStarts 4, got %d", state.TotalStarts)
	}
}

func TestCheckpointer_RejectsBadSchedule(t *testing.T) {
	s := NewSerializer(&memoryRepo{}, newCounterSource(), logger.Noop())

	if _, err := NewCheckpointer("every now and then", time.UTC, s, logger.Noop()); err == nil {
		t.Error("expected error for an invalid cron spec")
	}
}

func TestCheckpointer_RunWritesState(t *testing.T) {
	repo := &memoryRepo{}
	src := newCounterSource()
	s := NewSerializer(repo, src, logger.Noop())

	c, err := NewCheckpointer("@every 1h", time.UTC, s, logger.Noop())
	if err != nil {
		t.Fatalf("NewCheckpointer returned error: %v", err)
	}
	src.bump()
	c.Run()

	got, n := repo.last()
	if n != 1 || got.TotalStarts != 1 {
		t.Errorf("expected one checkpoint write with totalStarts 1, got %d writes (%+v)", n, got)
	}
}

func TestCheckpointer_RunAfterCloseWritesNothing(t *testing.T) {
	repo := &memoryRepo{}
	s := NewSerializer(repo, newCounterSource(), logger.Noop())

	c, err := NewCheckpointer("@every 1h", time.UTC, s, logger.Noop())
	if err != nil {
		t.Fatalf("NewCheckpointer returned error: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	c.Run()

	if _, n := repo.last(); n != 0 {
		t.Errorf("expected no checkpoint write after Close, got %d", n)
	}
}
