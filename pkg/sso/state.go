package sso

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// StateTTL is how long a pending login may take
const StateTTL = 10 * time.Minute

// StateStore remembers the state values of logins that have been started
// but not completed. Each state can be consumed once.
type StateStore interface {
	Save(ctx context.Context, state string) error
	// Consume reports whether state was pending and removes it
	Consume(ctx context.Context, state string) (bool, error)
}

// ErrStateExists is returned when saving a state that is already pending
var ErrStateExists = errors.New("oauth state already pending")

// RedisStateStore keeps pending states in Redis so any replica can finish a login
type RedisStateStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStateStore creates a Redis-backed state store
func NewRedisStateStore(client *redis.Client, prefix string) *RedisStateStore {
	if prefix == "" {
		prefix = "roster:oauth_state:"
	}
	return &RedisStateStore{client: client, prefix: prefix, ttl: StateTTL}
}

// Save records state as pending
func (s *RedisStateStore) Save(ctx context.Context, state string) error {
	ok, err := s.client.SetNX(ctx, s.prefix+state, "1", s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		return ErrStateExists
	}
	return nil
}

// Consume atomically reads and deletes state
func (s *RedisStateStore) Consume(ctx context.Context, state string) (bool, error) {
	if state == "" {
		return false, nil
	}
	_, err := s.client.GetDel(ctx, s.prefix+state).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis getdel failed: %w", err)
	}
	return true, nil
}

// MemoryStateStore keeps pending states in process. It only works when a
// single replica serves both legs of the login.
type MemoryStateStore struct {
	mu    sync.Mutex
	cache *lru.LRU[string, struct{}]
}

// NewMemoryStateStore creates an in-process state store holding at most size states
func NewMemoryStateStore(size int, ttl time.Duration) *MemoryStateStore {
	if size <= 0 {
		size = 10000
	}
	if ttl <= 0 {
		ttl = StateTTL
	}
	return &MemoryStateStore{cache: lru.NewLRU[string, struct{}](size, nil, ttl)}
}

// Save records state as pending
func (s *MemoryStateStore) Save(_ context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cache.Get(state); ok {
		return ErrStateExists
	}
	s.cache.Add(state, struct{}{})
	return nil
}

// Consume reads and deletes state
func (s *MemoryStateStore) Consume(_ context.Context, state string) (bool, error) {
	if state == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cache.Get(state); !ok {
		return false, nil
	}
	s.cache.Remove(state)
	return true, nil
}
