// Package lock provides the cross-process exclusive lock that serializes
// ledger transactions.
package lock

import (
	"context"
	"errors"
	"time"
)

var ErrNotHeld = errors.New("lock not held")

// DistributedLock is held for the whole load-mutate-save window of a ledger
// transaction. Implementations must be safe for use by one holder per key at
// a time within a process; callers serialize with their own mutex.
type DistributedLock interface {
	// Lock blocks until the lock is acquired or ctx is done.
	Lock(ctx context.Context, key string, ttl time.Duration) error
	// TryLock returns immediately; false means someone else holds it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Close() error
}

// NopLock is used when a single process owns the ledger.
type NopLock struct{}

func NewNopLock() *NopLock { return &NopLock{} }

func (NopLock) Lock(ctx context.Context, key string, ttl time.Duration) error { return nil }

func (NopLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (NopLock) Unlock(ctx context.Context, key string) error { return nil }

func (NopLock) Close() error { return nil }
