package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/roster/pkg/auth"
)

const (
	// TokenLength is the number of characters in a raw session token
	TokenLength = 64
	// Lifetime is how long a session stays valid after creation
	Lifetime = 30 * 24 * time.Hour
	// CookieName is the cookie carrying the raw session token
	CookieName = "session_token"
)

// ErrSessionNotFound is returned by a Repository when no live session matches
var ErrSessionNotFound = errors.New("session not found")

// Repository is the persistence boundary for sessions
type Repository interface {
	Insert(ctx context.Context, s *auth.Session) error
	// FindMemberByTokenHash returns the member owning a session whose digest
	// matches and whose expiry is after now
	FindMemberByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*auth.Member, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Store creates and validates sessions
type Store struct {
	repo   Repository
	logger logrus.FieldLogger
	now    func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a new session store
func NewStore(repo Repository, logger logrus.FieldLogger, opts ...Option) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Store{
		repo:   repo,
		logger: logger.WithField("component", "sessions"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession starts a session for memberID and returns the raw token.
// The token is not recoverable afterwards.
func (s *Store) CreateSession(ctx context.Context, memberID int64) (string, error) {
	token, err := auth.GenerateSecret(TokenLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	now := s.now()
	session := &auth.Session{
		MemberID:  memberID,
		TokenHash: auth.Digest(token),
		CreatedAt: now,
		ExpiresAt: now.Add(Lifetime),
	}
	if err := s.repo.Insert(ctx, session); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"member_id":  memberID,
		"session_id": session.ID,
		"expires_at": session.ExpiresAt,
	}).Debug("session created")

	return token, nil
}

// ValidateSession resolves a raw token to the owning member. An unknown or
// expired token yields the anonymous principal and no error; err is only set
// when storage fails.
func (s *Store) ValidateSession(ctx context.Context, token string) (auth.Principal, error) {
	if token == "" {
		return auth.Anonymous(), nil
	}

	member, err := s.repo.FindMemberByTokenHash(ctx, auth.Digest(token), s.now())
	if errors.Is(err, ErrSessionNotFound) {
		return auth.Anonymous(), nil
	}
	if err != nil {
		return auth.Anonymous(), fmt.Errorf("failed to validate session: %w", err)
	}

	return auth.HumanPrincipal(*member), nil
}

// DeleteSessionByToken ends the session for token. Deleting an unknown token
// is not an error.
func (s *Store) DeleteSessionByToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.repo.DeleteByTokenHash(ctx, auth.Digest(token)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.logger.Debug("session deleted")
	return nil
}

// CleanupExpiredSessions removes every session whose expiry has passed and
// returns how many were removed
func (s *Store) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	removed, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired sessions: %w", err)
	}
	return removed, nil
}
