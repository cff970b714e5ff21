package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/roster/pkg/auth"
)

// Repository is the persistence boundary for the member directory
type Repository interface {
	GetByID(ctx context.Context, id int64) (*auth.Member, error)
	GetByGitHubUser(ctx context.Context, username string) (*auth.Member, error)
	Create(ctx context.Context, m *auth.Member) error
}

// Directory provisions and looks up members
type Directory struct {
	repo   Repository
	logger logrus.FieldLogger
}

// NewDirectory creates a new Directory
func NewDirectory(repo Repository, logger logrus.FieldLogger) *Directory {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Directory{
		repo:   repo,
		logger: logger.WithField("component", "members"),
	}
}

// GetByID retrieves a member by id
func (d *Directory) GetByID(ctx context.Context, id int64) (*auth.Member, error) {
	return d.repo.GetByID(ctx, id)
}

// FindOrCreateByGitHub returns the member linked to the GitHub username,
// creating a Member-role record on first login. created reports whether a
// new row was inserted.
func (d *Directory) FindOrCreateByGitHub(ctx context.Context, identity auth.ExternalIdentity) (member *auth.Member, created bool, err error) {
	if identity.Username == "" {
		return nil, false, fmt.Errorf("github username is required")
	}

	member, err = d.repo.GetByGitHubUser(ctx, identity.Username)
	if err == nil {
		return member, false, nil
	}
	if !errors.Is(err, ErrMemberNotFound) {
		return nil, false, err
	}

	username := identity.Username
	member = &auth.Member{
		Name:       identity.Name,
		Email:      identity.Email,
		GitHubUser: &username,
		Role:       auth.RoleMember,
	}
	if err := d.repo.Create(ctx, member); err != nil {
		if !errors.Is(err, ErrDuplicateMember) {
			return nil, false, err
		}
		// Lost a race with a concurrent first login for the same user
		existing, getErr := d.repo.GetByGitHubUser(ctx, identity.Username)
		if getErr != nil {
			return nil, false, fmt.Errorf("failed to provision member %s: %w", identity.Username, err)
		}
		return existing, false, nil
	}

	d.logger.WithFields(logrus.Fields{
		"member_id":   member.ID,
		"github_user": identity.Username,
	}).Info("provisioned member on first login")

	return member, true, nil
}
