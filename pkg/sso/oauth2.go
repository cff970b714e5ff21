package sso

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/platinummonkey/roster/pkg/auth"
)

var githubTracer = otel.Tracer("roster/sso/github")

// Flow steps, reported in ExternalServiceError.Step and span names
const (
	StepExchange      = "exchange"
	StepUser          = "user"
	StepEmails        = "emails"
	StepOrgMembership = "org_membership"
)

type githubUser struct {
	ID    int64   `json:"id"`
	Login string  `json:"login"`
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubProvider logs users in with GitHub OAuth and restricts access to
// members of one organization
type GitHubProvider struct {
	config       GitHubConfig
	oauth2Config *oauth2.Config
	httpClient   *http.Client
	logger       logrus.FieldLogger
}

// NewGitHubProvider creates a GitHub provider. httpClient may be nil; it is
// the base transport for every call to GitHub.
func NewGitHubProvider(config GitHubConfig, httpClient *http.Client, logger logrus.FieldLogger) (*GitHubProvider, error) {
	if err := config.ValidateConfig(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	endpoint := github.Endpoint
	if config.AuthURL != "" {
		endpoint.AuthURL = config.AuthURL
	}
	if config.TokenURL != "" {
		endpoint.TokenURL = config.TokenURL
	}

	return &GitHubProvider{
		config: config,
		oauth2Config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  config.RedirectURL,
			Scopes:       Scopes,
		},
		httpClient: httpClient,
		logger:     logger.WithField("component", "sso.github"),
	}, nil
}

// OrgName returns the organization logins are restricted to
func (p *GitHubProvider) OrgName() string {
	return p.config.OrgName
}

// AuthorizationURL builds the GitHub authorize URL with a fresh state value
func (p *GitHubProvider) AuthorizationURL() (string, string, error) {
	state, err := newState()
	if err != nil {
		return "", "", err
	}
	return p.oauth2Config.AuthCodeURL(state), state, nil
}

func newState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CompleteOAuthFlow exchanges code for a token, loads the user's profile and
// verified primary email, and checks organization membership. It returns
// *auth.OrgMembershipDeniedError when GitHub says the user is not a member
// and *auth.ExternalServiceError for any other failure. Nothing is persisted.
func (p *GitHubProvider) CompleteOAuthFlow(ctx context.Context, code string) (auth.ExternalIdentity, error) {
	ctx, span := githubTracer.Start(ctx, "github.CompleteOAuthFlow",
		trace.WithAttributes(attribute.String("github.org", p.config.OrgName)))
	defer span.End()

	identity, err := p.completeOAuthFlow(ctx, code)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "oauth flow failed")
		return auth.ExternalIdentity{}, err
	}

	span.SetAttributes(attribute.String("github.login", identity.Username))
	span.SetStatus(codes.Ok, "")
	return identity, nil
}

func (p *GitHubProvider) completeOAuthFlow(ctx context.Context, code string) (auth.ExternalIdentity, error) {
	if code == "" {
		return auth.ExternalIdentity{}, &auth.ExternalServiceError{Step: StepExchange, Err: errors.New("missing authorization code")}
	}

	token, err := p.exchange(ctx, code)
	if err != nil {
		return auth.ExternalIdentity{}, err
	}

	client := p.apiClient(token)

	identity, err := p.fetchUser(ctx, client)
	if err != nil {
		return auth.ExternalIdentity{}, err
	}

	isMember, err := p.checkOrgMembership(ctx, client, identity.Username)
	if err != nil {
		return auth.ExternalIdentity{}, err
	}
	if !isMember {
		p.logger.WithFields(logrus.Fields{
			"github_user": identity.Username,
			"org":         p.config.OrgName,
		}).Info("login rejected: not an organization member")
		return auth.ExternalIdentity{}, &auth.OrgMembershipDeniedError{Org: p.config.OrgName, Username: identity.Username}
	}

	return identity, nil
}

func (p *GitHubProvider) exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, span := githubTracer.Start(ctx, "github."+StepExchange)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, p.config.HTTPTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		extErr := &auth.ExternalServiceError{Step: StepExchange, Err: err}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			extErr.StatusCode = retrieveErr.Response.StatusCode
		}
		span.RecordError(extErr)
		span.SetStatus(codes.Error, "token exchange failed")
		return nil, extErr
	}
	return token, nil
}

// apiClient authenticates with the access token and never follows redirects,
// so the membership check sees GitHub's raw status
func (p *GitHubProvider) apiClient(token *oauth2.Token) *http.Client {
	base := p.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(token),
			Base:   base,
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (p *GitHubProvider) get(ctx context.Context, client *http.Client, step, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(p.config.APIBaseURL, "/")+path, nil)
	if err != nil {
		return nil, &auth.ExternalServiceError{Step: step, Err: err}
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", p.config.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &auth.ExternalServiceError{Step: step, Err: err}
	}
	return resp, nil
}

func (p *GitHubProvider) getJSON(ctx context.Context, client *http.Client, step, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, p.config.HTTPTimeout)
	defer cancel()

	resp, err := p.get(ctx, client, step, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &auth.ExternalServiceError{
			Step:       step,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &auth.ExternalServiceError{Step: step, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func (p *GitHubProvider) fetchUser(ctx context.Context, client *http.Client) (auth.ExternalIdentity, error) {
	ctx, span := githubTracer.Start(ctx, "github."+StepUser)
	defer span.End()

	var user githubUser
	if err := p.getJSON(ctx, client, StepUser, "/user", &user); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch user")
		return auth.ExternalIdentity{}, err
	}
	if user.Login == "" {
		err := &auth.ExternalServiceError{Step: StepUser, Err: errors.New("response has no login")}
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed user")
		return auth.ExternalIdentity{}, err
	}

	identity := auth.ExternalIdentity{
		ExternalID: user.ID,
		Username:   user.Login,
		Name:       "Unknown",
	}
	if user.Name != nil && *user.Name != "" {
		identity.Name = *user.Name
	}

	if user.Email != nil && *user.Email != "" {
		identity.Email = *user.Email
		return identity, nil
	}

	email, err := p.fetchPrimaryEmail(ctx, client)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve email")
		return auth.ExternalIdentity{}, err
	}
	identity.Email = email
	return identity, nil
}

func (p *GitHubProvider) fetchPrimaryEmail(ctx context.Context, client *http.Client) (string, error) {
	ctx, span := githubTracer.Start(ctx, "github."+StepEmails)
	defer span.End()

	var emails []githubEmail
	if err := p.getJSON(ctx, client, StepEmails, "/user/emails", &emails); err != nil {
		return "", err
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", &auth.ExternalServiceError{Step: StepEmails, Err: errors.New("no verified primary email found")}
}

// checkOrgMembership asks GitHub whether login belongs to the organization.
// 204 means yes and 404 means no. Any other status, including the 302 GitHub
// sends when the requester cannot see the member list, is indeterminate.
func (p *GitHubProvider) checkOrgMembership(ctx context.Context, client *http.Client, login string) (bool, error) {
	ctx, span := githubTracer.Start(ctx, "github."+StepOrgMembership,
		trace.WithAttributes(attribute.String("github.login", login)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, p.config.HTTPTimeout)
	defer cancel()

	path := fmt.Sprintf("/orgs/%s/members/%s", url.PathEscape(p.config.OrgName), url.PathEscape(login))
	resp, err := p.get(ctx, client, StepOrgMembership, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "membership request failed")
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	switch resp.StatusCode {
	case http.StatusNoContent:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		err := &auth.ExternalServiceError{Step: StepOrgMembership, StatusCode: resp.StatusCode}
		span.RecordError(err)
		span.SetStatus(codes.Error, "indeterminate membership status")
		return false, err
	}
}
