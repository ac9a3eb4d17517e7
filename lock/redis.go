package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// RedisLock is a SET NX lock with a per-acquisition token so only the holder
// can release it.
type RedisLock struct {
	client *redis.Client
	prefix string
	poll   time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

func NewRedisLock(client *redis.Client, prefix string) *RedisLock {
	return &RedisLock{
		client: client,
		prefix: prefix,
		poll:   50 * time.Millisecond,
		tokens: make(map[string]string),
	}
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (r *RedisLock) Lock(ctx context.Context, key string, ttl time.Duration) error {
	for {
		ok, err := r.TryLock(ctx, key, ttl)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("lock %q: %w", key, ctx.Err())
		case <-time.After(r.poll):
		}
	}
}

func (r *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := newToken()
	ok, err := r.client.SetNX(ctx, r.prefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %q: %w", key, err)
	}
	if ok {
		r.mu.Lock()
		r.tokens[key] = token
		r.mu.Unlock()
	}
	return ok, nil
}

func (r *RedisLock) Unlock(ctx context.Context, key string) error {
	r.mu.Lock()
	token, held := r.tokens[key]
	delete(r.tokens, key)
	r.mu.Unlock()
	if !held {
		return fmt.Errorf("unlock %q: %w", key, ErrNotHeld)
	}

	n, err := r.client.Eval(ctx, unlockScript, []string{r.prefix + key}, token).Int64()
	if err != nil {
		return fmt.Errorf("redis unlock %q: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("unlock %q: expired before release: %w", key, ErrNotHeld)
	}
	return nil
}

func (r *RedisLock) Close() error {
	return r.client.Close()
}
