package sim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shreyanshxt/FinSight/broker"
)

// ErrCorruptState means the persisted ledger could not be decoded.
var ErrCorruptState = errors.New("corrupt ledger state")

// Store persists the ledger document. Load reports found=false when nothing
// has been saved yet. Quarantine moves an unreadable document aside and
// returns where it went.
type Store interface {
	Load(ctx context.Context) (snap broker.Snapshot, found bool, err error)
	Save(ctx context.Context, snap broker.Snapshot) error
	Quarantine(ctx context.Context) (string, error)
}

func decodeSnapshot(data []byte) (broker.Snapshot, error) {
	var snap broker.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return broker.Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return snap, nil
}

// FileStore keeps the ledger as one JSON document and replaces it
// atomically on save.
type FileStore struct {
	path string
	now  func() time.Time
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{path: path, now: time.Now}, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (broker.Snapshot, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return broker.Snapshot{}, false, nil
		}
		return broker.Snapshot{}, false, fmt.Errorf("read ledger: %w", err)
	}
	snap, err := decodeSnapshot(data)
	if err != nil {
		return broker.Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *FileStore) Save(ctx context.Context, snap broker.Snapshot) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	if err := json.NewEncoder(tmp).Encode(snap); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("flush ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

func (s *FileStore) Quarantine(ctx context.Context) (string, error) {
	dst := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
	if err := os.Rename(s.path, dst); err != nil {
		return "", fmt.Errorf("quarantine ledger: %w", err)
	}
	return dst, nil
}

// RedisStore keeps the ledger document under a single key so several
// processes can share it together with a RedisLock.
type RedisStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = "finsight:ledger"
	}
	return &RedisStore{client: client, key: key, now: time.Now}
}

func (s *RedisStore) Load(ctx context.Context) (broker.Snapshot, bool, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return broker.Snapshot{}, false, nil
		}
		return broker.Snapshot{}, false, fmt.Errorf("redis get %q: %w", s.key, err)
	}
	snap, err := decodeSnapshot(data)
	if err != nil {
		return broker.Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *RedisStore) Save(ctx context.Context, snap broker.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Quarantine(ctx context.Context) (string, error) {
	dst := fmt.Sprintf("%s:corrupt-%d", s.key, s.now().Unix())
	if err := s.client.Rename(ctx, s.key, dst).Err(); err != nil {
		return "", fmt.Errorf("redis rename %q: %w", s.key, err)
	}
	return dst, nil
}

// MemoryStore holds the encoded document in process.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(ctx context.Context) (broker.Snapshot, bool, error) {
	s.mu.Lock()
	data := s.data
	s.mu.Unlock()
	if data == nil {
		return broker.Snapshot{}, false, nil
	}
	snap, err := decodeSnapshot(data)
	if err != nil {
		return broker.Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *MemoryStore) Save(ctx context.Context, snap broker.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Quarantine(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
	return "memory", nil
}

// Raw returns the encoded document as last saved.
func (s *MemoryStore) Raw() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}

// SetRaw replaces the stored document verbatim.
func (s *MemoryStore) SetRaw(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
}
