package jsonfile

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

var ErrLocked = errors.New("state file is locked by another process")

// fileLock is an advisory flock held for the lifetime of a Store.
type fileLock struct {
	file *os.File
}

func newFileLock(path string) (*fileLock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file for locking: %w", err)
	}
	return &fileLock{file: file}, nil
}

// tryLock acquires an exclusive lock without blocking.
func (fl *fileLock) tryLock() error {
	if err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return ErrLocked
		}
		return fmt.Errorf("failed to try lock file: %w", err)
	}
	return nil
}

// release unlocks and closes the lock file.
func (fl *fileLock) release() error {
	if err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN); err != nil {
		fl.file.Close()
		return fmt.Errorf("failed to unlock file: %w", err)
	}
	return fl.file.Close()
}
