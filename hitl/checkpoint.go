package hitl

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// CheckpointStore persists pending interrupts by tenant and chat
type CheckpointStore interface {
	Save(ctx context.Context, tenantID, chatID string, cp *Checkpoint) error
	// Load returns ErrInterruptNotFound if the chat has no pending interrupt
	Load(ctx context.Context, tenantID, chatID string) (*Checkpoint, error)
	// Take atomically loads and removes the checkpoint,
	// only one of the concurrent callers gets it
	Take(ctx context.Context, tenantID, chatID string) (*Checkpoint, error)
	Delete(ctx context.Context, tenantID, chatID string) error
}

type memoryCheckpoints struct {
	lock  sync.RWMutex
	items map[string]*Checkpoint
}

// NewMemoryCheckpointStore returns the in-process store
func NewMemoryCheckpointStore() CheckpointStore {
	return &memoryCheckpoints{
		items: make(map[string]*Checkpoint),
	}
}

func (s *memoryCheckpoints) Save(_ context.Context, tenantID, chatID string, cp *Checkpoint) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.items[path.Join(tenantID, chatID)] = cp
	return nil
}

func (s *memoryCheckpoints) Load(_ context.Context, tenantID, chatID string) (*Checkpoint, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	cp := s.items[path.Join(tenantID, chatID)]
	if cp == nil {
		return nil, errors.WithStack(ErrInterruptNotFound)
	}
	return cp, nil
}

func (s *memoryCheckpoints) Take(_ context.Context, tenantID, chatID string) (*Checkpoint, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	key := path.Join(tenantID, chatID)
	cp := s.items[key]
	if cp == nil {
		return nil, errors.WithStack(ErrInterruptNotFound)
	}
	delete(s.items, key)
	return cp, nil
}

func (s *memoryCheckpoints) Delete(_ context.Context, tenantID, chatID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.items, path.Join(tenantID, chatID))
	return nil
}

// RedisCheckpointStore keeps the checkpoints at
// `/<prefix>/auk/<tenantID>/interrupts/<chatID>`
type RedisCheckpointStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCheckpointStore returns the Redis store,
// the checkpoints expire after ttl if it is not zero
func NewRedisCheckpointStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCheckpointStore {
	return &RedisCheckpointStore{
		client: client,
		prefix: "/" + path.Join(prefix, "auk"),
		ttl:    ttl,
	}
}

// Key returns the Redis key of the checkpoint
func (s *RedisCheckpointStore) Key(tenantID, chatID string) string {
	return path.Join(s.prefix, tenantID, "interrupts", chatID)
}

func (s *RedisCheckpointStore) Save(ctx context.Context, tenantID, chatID string, cp *Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return errors.Wrap(err, "failed to marshal checkpoint")
	}
	if err = s.client.Set(ctx, s.Key(tenantID, chatID), data, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to store checkpoint in Redis")
	}
	return nil
}

func (s *RedisCheckpointStore) Load(ctx context.Context, tenantID, chatID string) (*Checkpoint, error) {
	data, err := s.client.Get(ctx, s.Key(tenantID, chatID)).Bytes()
	return s.decode(data, err)
}

// Take uses GETDEL, so a checkpoint is resumed once across the replicas
func (s *RedisCheckpointStore) Take(ctx context.Context, tenantID, chatID string) (*Checkpoint, error) {
	data, err := s.client.GetDel(ctx, s.Key(tenantID, chatID)).Bytes()
	return s.decode(data, err)
}

func (s *RedisCheckpointStore) decode(data []byte, err error) (*Checkpoint, error) {
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.WithStack(ErrInterruptNotFound)
		}
		return nil, errors.Wrap(err, "failed to get checkpoint from Redis")
	}
	cp := new(Checkpoint)
	if err = json.Unmarshal(data, cp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal checkpoint")
	}
	if cp.Interrupt == nil {
		return nil, errors.WithStack(ErrInterruptNotFound)
	}
	return cp, nil
}

func (s *RedisCheckpointStore) Delete(ctx context.Context, tenantID, chatID string) error {
	if err := s.client.Del(ctx, s.Key(tenantID, chatID)).Err(); err != nil {
		return errors.Wrap(err, "failed to delete checkpoint from Redis")
	}
	return nil
}
