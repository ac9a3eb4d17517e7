//go:build !unix

package lock

import (
	"context"
	"errors"
	"time"
)

var errNoFlock = errors.New("file locks need a unix platform; use the redis or none lock type")

type FileLock struct{}

func NewFileLock(dir string) (*FileLock, error) { return nil, errNoFlock }

func (*FileLock) Lock(ctx context.Context, key string, ttl time.Duration) error { return errNoFlock }

func (*FileLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, errNoFlock
}

func (*FileLock) Unlock(ctx context.Context, key string) error { return errNoFlock }

func (*FileLock) Close() error { return nil }
