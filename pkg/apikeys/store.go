package apikeys

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/roster/pkg/async"
	"github.com/platinummonkey/roster/pkg/auth"
)

const (
	// Prefix marks a credential as an API key
	Prefix = "root_"
	// SecretLength is the number of random characters after the prefix
	SecretLength = 48
	// touchTimeout bounds the background last-used update
	touchTimeout = 5 * time.Second
)

// Repository is the persistence boundary for API keys
type Repository interface {
	Insert(ctx context.Context, key *auth.APIKey) error
	ListAll(ctx context.Context) ([]auth.APIKey, error)
	Delete(ctx context.Context, id int64) error
	TouchLastUsed(ctx context.Context, id int64, at time.Time) error
}

// Store creates and validates API keys
type Store struct {
	repo   Repository
	runner *async.Runner
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

// WithRunner sets the runner used for last-used updates
func WithRunner(runner *async.Runner) Option {
	return func(s *Store) {
		s.runner = runner
	}
}

// NewStore creates a new API key store
func NewStore(repo Repository, logger logrus.FieldLogger, opts ...Option) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Store{
		repo:   repo,
		logger: logger.WithField("component", "apikeys"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = async.NewRunner(logger)
	}
	return s
}

// CreateAPIKey issues a key named name on behalf of createdBy and returns the
// raw key. It is shown once and cannot be recovered from storage.
func (s *Store) CreateAPIKey(ctx context.Context, name string, createdBy int64) (string, *auth.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, fmt.Errorf("api key name is required")
	}

	secret, err := auth.GenerateSecret(SecretLength)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate api key: %w", err)
	}
	rawKey := Prefix + secret

	hash, err := auth.SaltedHash(rawKey)
	if err != nil {
		return "", nil, err
	}

	key := &auth.APIKey{
		Name:      name,
		KeyHash:   hash,
		CreatedBy: &createdBy,
		CreatedAt: s.now(),
	}
	if err := s.repo.Insert(ctx, key); err != nil {
		return "", nil, fmt.Errorf("failed to create api key: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"api_key_id": key.ID,
		"name":       name,
		"created_by": createdBy,
	}).Info("api key created")

	return rawKey, key, nil
}

// ValidateAPIKey resolves a raw key to a bot principal. Keys without the
// prefix are rejected without touching storage. An unknown key yields the
// anonymous principal and no error.
func (s *Store) ValidateAPIKey(ctx context.Context, rawKey string) (auth.Principal, error) {
	if !strings.HasPrefix(rawKey, Prefix) {
		return auth.Anonymous(), nil
	}

	keys, err := s.repo.ListAll(ctx)
	if err != nil {
		return auth.Anonymous(), fmt.Errorf("failed to load api keys: %w", err)
	}

	for _, key := range keys {
		if !auth.VerifySaltedHash(rawKey, key.KeyHash) {
			continue
		}

		id := key.ID
		usedAt := s.now()
		s.runner.Go(context.WithoutCancel(ctx), touchTimeout, "update api key last used", func(ctx context.Context) error {
			return s.repo.TouchLastUsed(ctx, id, usedAt)
		})

		return auth.BotPrincipal(auth.BotIdentity{
			APIKeyID:  key.ID,
			Name:      key.Name,
			CreatedAt: key.CreatedAt,
		}), nil
	}

	return auth.Anonymous(), nil
}

// ListAPIKeys returns every key's metadata. Hashes are never serialized.
func (s *Store) ListAPIKeys(ctx context.Context) ([]auth.APIKey, error) {
	keys, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	return keys, nil
}

// DeleteAPIKey revokes a key. Deleting an unknown id is not an error.
func (s *Store) DeleteAPIKey(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	s.logger.WithField("api_key_id", id).Info("api key deleted")
	return nil
}

// Wait drains pending last-used updates
func (s *Store) Wait(ctx context.Context) error {
	return s.runner.Wait(ctx)
}
