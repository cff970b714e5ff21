package apikeys

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/roster/pkg/auth"
)

// MemoryRepository is an in-process Repository for tests and local runs
type MemoryRepository struct {
	mu     sync.RWMutex
	keys   map[int64]auth.APIKey
	nextID int64
}

// NewMemoryRepository creates an empty MemoryRepository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{keys: make(map[int64]auth.APIKey), nextID: 1}
}

// Insert stores a key and fills in its id
func (r *MemoryRepository) Insert(_ context.Context, key *auth.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key.ID = r.nextID
	r.nextID++
	r.keys[key.ID] = *key
	return nil
}

// ListAll returns every stored key ordered by id
func (r *MemoryRepository) ListAll(_ context.Context) ([]auth.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]auth.APIKey, 0, len(r.keys))
	for _, k := range r.keys {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })
	return keys, nil
}

// Delete removes a key by id, if present
func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keys, id)
	return nil
}

// TouchLastUsed records when a key was last presented
func (r *MemoryRepository) TouchLastUsed(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return nil
	}
	k.LastUsedAt = &at
	r.keys[id] = k
	return nil
}

// Get returns a stored key by id
func (r *MemoryRepository) Get(id int64) (auth.APIKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[id]
	return k, ok
}
