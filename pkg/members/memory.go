package members

import (
	"context"
	"sync"
	"time"

	"github.com/platinummonkey/roster/pkg/auth"
)

// MemoryRepository is an in-process Repository for tests and local runs
type MemoryRepository struct {
	mu      sync.RWMutex
	members map[int64]auth.Member
	nextID  int64
}

// NewMemoryRepository creates an empty MemoryRepository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{members: make(map[int64]auth.Member), nextID: 1}
}

// Put stores m as-is, keeping its id
func (r *MemoryRepository) Put(m auth.Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[m.ID] = m
	if m.ID >= r.nextID {
		r.nextID = m.ID + 1
	}
}

// GetByID retrieves a member by id
func (r *MemoryRepository) GetByID(_ context.Context, id int64) (*auth.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[id]
	if !ok {
		return nil, ErrMemberNotFound
	}
	return &m, nil
}

// GetByGitHubUser retrieves a member by GitHub username
func (r *MemoryRepository) GetByGitHubUser(_ context.Context, username string) (*auth.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		if m.GitHubUser != nil && *m.GitHubUser == username {
			found := m
			return &found, nil
		}
	}
	return nil, ErrMemberNotFound
}

// Create inserts a member, enforcing unique email and GitHub username
func (r *MemoryRepository) Create(_ context.Context, m *auth.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.members {
		if existing.Email == m.Email {
			return ErrDuplicateMember
		}
		if m.GitHubUser != nil && existing.GitHubUser != nil && *existing.GitHubUser == *m.GitHubUser {
			return ErrDuplicateMember
		}
	}
	now := time.Now()
	m.ID = r.nextID
	m.CreatedAt = now
	m.UpdatedAt = now
	r.nextID++
	r.members[m.ID] = *m
	return nil
}
