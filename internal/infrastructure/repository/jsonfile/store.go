// Package jsonfile stores the raffle aggregate as a single JSON document.
package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/VladKovDev/raffle-bot/internal/domain/raffle"
	"github.com/VladKovDev/raffle-bot/internal/domain/repository"
	"github.com/goccy/go-json"
)

var _ repository.StateRepository = (*Store)(nil)

// Store persists the aggregate at path. Writes go to a temp file that is
// renamed over path, so a failed write never damages the stored version.
type Store struct {
	path string
	lock *fileLock
	mu   sync.Mutex
	now  func() time.Time
}

// Open locks path for this process and returns a Store for it.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	lock, err := newFileLock(path + ".lock")
	if err != nil {
		return nil, err
	}
	if err := lock.tryLock(); err != nil {
		lock.file.Close()
		return nil, err
	}

	return &Store{path: path, lock: lock, now: time.Now}, nil
}

// Path is the cleaned location of the state file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the aggregate. A missing file yields a fresh state. Bytes that
// do not decode are copied aside before a KindCorruptState error is
// returned, so the next Persist cannot silently destroy them.
func (s *Store) Load(ctx context.Context) (*raffle.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return raffle.NewState(), nil
		}
		return nil, &raffle.Error{Kind: raffle.KindIO, Op: "load", Err: err}
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return raffle.NewState(), nil
	}

	var state raffle.State
	if err := json.Unmarshal(raw, &state); err != nil {
		backup := s.path + ".corrupt-" + strconv.FormatInt(s.now().UnixMilli(), 10)
		if werr := os.WriteFile(backup, raw, 0644); werr != nil {
			err = errors.Join(err, fmt.Errorf("failed to back up corrupt file: %w", werr))
		} else {
			err = fmt.Errorf("%w (original bytes saved to %s)", err, backup)
		}
		return nil, &raffle.Error{Kind: raffle.KindCorruptState, Op: "load", Err: err}
	}
	state.Normalize()
	return &state, nil
}

// Persist replaces the stored document with state.
func (s *Store) Persist(ctx context.Context, state raffle.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return &raffle.Error{Kind: raffle.KindIO, Op: "persist", Err: fmt.Errorf("failed to marshal state: %w", err)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := atomicWriteFile(s.path, raw, 0644); err != nil {
		return &raffle.Error{Kind: raffle.KindIO, Op: "persist", Err: err}
	}
	return nil
}

// Close releases the process lock.
func (s *Store) Close() error {
	if s == nil || s.lock == nil {
		return nil
	}
	return s.lock.release()
}
