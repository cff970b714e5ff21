package sso

import (
	"context"
	"time"

	"github.com/platinummonkey/roster/pkg/auth"
)

const (
	// DefaultOrgName is the GitHub organization whose members may log in
	DefaultOrgName = "amfoss"
	// DefaultHTTPTimeout bounds each call to GitHub
	DefaultHTTPTimeout = 10 * time.Second
	// DefaultAPIBaseURL is the GitHub REST API root
	DefaultAPIBaseURL = "https://api.github.com"
)

// Scopes requested during authorization
var Scopes = []string{"read:user", "user:email", "read:org"}

// IdentityProvider runs the external login flow
type IdentityProvider interface {
	// AuthorizationURL returns where to send the browser and the state value
	// that must come back on the callback
	AuthorizationURL() (authURL, state string, err error)

	// CompleteOAuthFlow exchanges an authorization code for a verified identity
	CompleteOAuthFlow(ctx context.Context, code string) (auth.ExternalIdentity, error)
}

// GitHubConfig configures the GitHub provider. AuthURL, TokenURL and
// APIBaseURL default to github.com and only need setting for tests or
// GitHub Enterprise.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	OrgName      string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
	HTTPTimeout  time.Duration
	UserAgent    string
}

// ValidateConfig checks required values and fills in defaults
func (c *GitHubConfig) ValidateConfig() error {
	if c.ClientID == "" {
		return &auth.ConfigError{Key: "GITHUB_CLIENT_ID"}
	}
	if c.ClientSecret == "" {
		return &auth.ConfigError{Key: "GITHUB_CLIENT_SECRET"}
	}
	if c.RedirectURL == "" {
		return &auth.ConfigError{Key: "GITHUB_REDIRECT_URL"}
	}

	if c.OrgName == "" {
		c.OrgName = DefaultOrgName
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = "roster-backend"
	}
	return nil
}
