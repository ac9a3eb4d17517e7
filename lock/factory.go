package lock

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Options struct {
	Type   string // "file", "redis" or "none"
	Dir    string
	Prefix string
	Redis  *redis.Client
}

// New builds the lock named by o.Type.
func New(o Options) (DistributedLock, error) {
	switch o.Type {
	case "", "none":
		return NewNopLock(), nil
	case "file":
		if o.Dir == "" {
			return nil, fmt.Errorf("file lock requires a directory")
		}
		return NewFileLock(o.Dir)
	case "redis":
		if o.Redis == nil {
			return nil, fmt.Errorf("redis lock requires a redis client")
		}
		prefix := o.Prefix
		if prefix == "" {
			prefix = "finsight:lock:"
		}
		return NewRedisLock(o.Redis, prefix), nil
	default:
		return nil, fmt.Errorf("unknown lock type %q", o.Type)
	}
}
