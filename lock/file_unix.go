//go:build unix

package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// FileLock takes an flock(2) exclusive lock on <dir>/<key>.lock. It works
// across processes sharing a filesystem. The ttl is ignored: the kernel
// drops the lock when the holder exits.
type FileLock struct {
	dir  string
	poll time.Duration

	mu    sync.Mutex
	files map[string]*os.File
}

func NewFileLock(dir string) (*FileLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	return &FileLock{
		dir:   dir,
		poll:  25 * time.Millisecond,
		files: make(map[string]*os.File),
	}, nil
}

func (l *FileLock) path(key string) string {
	return filepath.Join(l.dir, key+".lock")
}

func (l *FileLock) Lock(ctx context.Context, key string, ttl time.Duration) error {
	for {
		ok, err := l.TryLock(ctx, key, ttl)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("lock %q: %w", key, ctx.Err())
		case <-time.After(l.poll):
		}
	}
}

func (l *FileLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f, err := os.OpenFile(l.path(key), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return false, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return false, nil
		}
		return false, fmt.Errorf("flock %q: %w", key, err)
	}

	l.mu.Lock()
	l.files[key] = f
	l.mu.Unlock()
	return true, nil
}

func (l *FileLock) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	f, ok := l.files[key]
	delete(l.files, key)
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("unlock %q: %w", key, ErrNotHeld)
	}
	defer f.Close()
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		return fmt.Errorf("funlock %q: %w", key, err)
	}
	return nil
}

func (l *FileLock) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, f := range l.files {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		delete(l.files, key)
	}
	return nil
}
