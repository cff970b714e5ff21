package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/platinummonkey/roster/pkg/auth"
)

// MemberLookup resolves a member id to its directory record
type MemberLookup interface {
	GetByID(ctx context.Context, id int64) (*auth.Member, error)
}

// MemoryRepository is an in-process Repository for tests and local runs
type MemoryRepository struct {
	mu       sync.RWMutex
	members  MemberLookup
	sessions map[string]auth.Session
	nextID   int64
}

// NewMemoryRepository creates an empty MemoryRepository that joins sessions
// to members through lookup
func NewMemoryRepository(lookup MemberLookup) *MemoryRepository {
	return &MemoryRepository{
		members:  lookup,
		sessions: make(map[string]auth.Session),
		nextID:   1,
	}
}

// Insert stores a session and fills in its id
func (r *MemoryRepository) Insert(_ context.Context, s *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = r.nextID
	r.nextID++
	r.sessions[s.TokenHash] = *s
	return nil
}

// FindMemberByTokenHash joins a live session to its member
func (r *MemoryRepository) FindMemberByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*auth.Member, error) {
	r.mu.RLock()
	s, ok := r.sessions[tokenHash]
	r.mu.RUnlock()
	if !ok || !s.IsValidAt(now) {
		return nil, ErrSessionNotFound
	}

	m, err := r.members.GetByID(ctx, s.MemberID)
	if err != nil {
		// Matches the inner join: a session without a member is not found
		return nil, ErrSessionNotFound
	}
	return m, nil
}

// DeleteByTokenHash removes the session with the given digest, if any
func (r *MemoryRepository) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, tokenHash)
	return nil
}

// DeleteExpired removes sessions with expiry at or before now
func (r *MemoryRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for hash, s := range r.sessions {
		if !s.IsValidAt(now) {
			delete(r.sessions, hash)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
