package sso

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/roster/pkg/auth"
	"github.com/platinummonkey/roster/pkg/contextkeys"
	"github.com/platinummonkey/roster/pkg/httputil"
	"github.com/platinummonkey/roster/pkg/middleware"
	"github.com/platinummonkey/roster/pkg/observability"
	"github.com/platinummonkey/roster/pkg/sessions"
)

// StateCookieName carries the pending-login state between login and callback
const StateCookieName = "oauth_state"

// Login outcomes reported to metrics
const (
	outcomeSuccess      = "success"
	outcomeInvalidState = "invalid_state"
	outcomeOAuthError   = "oauth_error"
	outcomeNotMember    = "not_member"
	outcomeError        = "error"
)

// MemberProvisioner maps a verified GitHub identity to a directory member
type MemberProvisioner interface {
	FindOrCreateByGitHub(ctx context.Context, identity auth.ExternalIdentity) (*auth.Member, bool, error)
}

// SessionIssuer creates and revokes sessions
type SessionIssuer interface {
	CreateSession(ctx context.Context, memberID int64) (string, error)
	DeleteSessionByToken(ctx context.Context, token string) error
}

// CookieConfig controls the attributes of the cookies set by the handlers
type CookieConfig struct {
	// Domain of the session cookie; empty means host-only
	Domain string
	// Secure is false only in development
	Secure bool
	// FrontendURL is where the browser lands after a successful login
	FrontendURL string
}

// Handlers serves the GitHub login flow
type Handlers struct {
	provider IdentityProvider
	states   StateStore
	members  MemberProvisioner
	sessions SessionIssuer
	cookies  CookieConfig
	audit    *auth.AuditLogger
	metrics  *observability.Metrics
	logger   logrus.FieldLogger
}

// NewHandlers creates the login handlers. metrics may be nil.
func NewHandlers(
	provider IdentityProvider,
	states StateStore,
	members MemberProvisioner,
	sessions SessionIssuer,
	cookies CookieConfig,
	metrics *observability.Metrics,
	logger logrus.FieldLogger,
) *Handlers {
	return &Handlers{
		provider: provider,
		states:   states,
		members:  members,
		sessions: sessions,
		cookies:  cookies,
		audit:    auth.NewAuditLogger(logger),
		metrics:  metrics,
		logger:   logger.WithField("component", "sso"),
	}
}

// RegisterRoutes registers the login routes. The router must already run
// the identity resolver so logout can see the caller's session.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/github", h.initiateLogin).Methods(http.MethodGet)
	router.HandleFunc("/auth/github/callback", h.handleCallback).Methods(http.MethodGet)
	router.Handle("/auth/logout",
		middleware.RequireGuard(auth.GuardAuthenticated, h.metrics)(http.HandlerFunc(h.logout)),
	).Methods(http.MethodPost)
}

// initiateLogin handles GET /auth/github
func (h *Handlers) initiateLogin(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.GetLogger(r.Context(), h.logger)

	authURL, state, err := h.provider.AuthorizationURL()
	if err != nil {
		logger.WithError(err).Error("failed to build authorization URL")
		httputil.WriteInternalError(w)
		return
	}

	if err := h.states.Save(r.Context(), state); err != nil {
		logger.WithError(err).Error("failed to save login state")
		httputil.WriteInternalError(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/auth/github",
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(StateTTL.Seconds()),
	})

	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleCallback handles GET /auth/github/callback
func (h *Handlers) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextkeys.GetLogger(ctx, h.logger)
	query := r.URL.Query()

	// The state cookie is single use whatever happens next
	http.SetCookie(w, &http.Cookie{Name: StateCookieName, Path: "/auth/github", MaxAge: -1})

	if !h.verifyState(r, query.Get("state")) {
		h.metrics.RecordOAuthLogin(outcomeInvalidState)
		h.audit.LogFromRequest(r, auth.Anonymous(), auth.ActionLoginFailure, "", auth.StatusDenied, errors.New("invalid state"))
		httputil.WriteBadRequest(w, "invalid or expired login state")
		return
	}

	code := query.Get("code")
	if code == "" {
		h.metrics.RecordOAuthLogin(outcomeOAuthError)
		httputil.WriteBadRequest(w, "missing authorization code")
		return
	}

	identity, err := h.provider.CompleteOAuthFlow(ctx, code)
	if err != nil {
		h.audit.LogFromRequest(r, auth.Anonymous(), auth.ActionLoginFailure, "", auth.StatusFailure, err)
		if auth.IsOrgMembershipDenied(err) {
			h.metrics.RecordOAuthLogin(outcomeNotMember)
			httputil.WriteForbidden(w, err.Error())
			return
		}
		h.metrics.RecordOAuthLogin(outcomeOAuthError)
		logger.WithError(err).Warn("GitHub login failed")
		httputil.WriteUnauthorized(w, oauthFailureMessage(err))
		return
	}

	member, created, err := h.members.FindOrCreateByGitHub(ctx, identity)
	if err != nil {
		h.metrics.RecordOAuthLogin(outcomeError)
		logger.WithError(err).WithField("github_user", identity.Username).Error("failed to provision member")
		httputil.WriteInternalError(w)
		return
	}
	principal := auth.HumanPrincipal(*member)
	if created {
		h.audit.LogFromRequest(r, principal, auth.ActionMemberCreated, strconv.FormatInt(member.ID, 10), auth.StatusSuccess, nil)
	}

	token, err := h.sessions.CreateSession(ctx, member.ID)
	if err != nil {
		h.metrics.RecordOAuthLogin(outcomeError)
		logger.WithError(err).WithField("member_id", member.ID).Error("failed to create session")
		httputil.WriteInternalError(w)
		return
	}

	http.SetCookie(w, h.sessionCookie(token, int(sessions.Lifetime.Seconds())))
	h.metrics.RecordOAuthLogin(outcomeSuccess)
	h.audit.LogFromRequest(r, principal, auth.ActionLoginSuccess, strconv.FormatInt(member.ID, 10), auth.StatusSuccess, nil)

	http.Redirect(w, r, h.cookies.FrontendURL, http.StatusFound)
}

// verifyState requires the query state to match the cookie and to still be
// pending in the store. Consuming it makes every state single use.
func (h *Handlers) verifyState(r *http.Request, state string) bool {
	if state == "" {
		return false
	}
	cookie, err := r.Cookie(StateCookieName)
	if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		return false
	}

	ok, err := h.states.Consume(r.Context(), state)
	if err != nil {
		contextkeys.GetLogger(r.Context(), h.logger).WithError(err).Error("failed to consume login state")
		return false
	}
	return ok
}

// logout handles POST /auth/logout
func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := middleware.PrincipalFromContext(ctx)

	if token := contextkeys.GetSessionToken(ctx); token != "" {
		if err := h.sessions.DeleteSessionByToken(ctx, token); err != nil {
			contextkeys.GetLogger(ctx, h.logger).WithError(err).Error("failed to delete session")
			httputil.WriteInternalError(w)
			return
		}
	}

	http.SetCookie(w, h.sessionCookie("", -1))
	h.audit.LogFromRequest(r, principal, auth.ActionLogout, "", auth.StatusSuccess, nil)
	httputil.WriteNoContent(w)
}

func (h *Handlers) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sessions.CookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.cookies.Domain,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

// oauthFailureMessage names the failed step only. Provider responses stay in
// the logs.
func oauthFailureMessage(err error) string {
	var extErr *auth.ExternalServiceError
	if errors.As(err, &extErr) && extErr.Step != "" {
		return fmt.Sprintf("OAuth failed at %s", extErr.Step)
	}
	return "OAuth failed"
}
