package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/roster/pkg/apikeys"
	"github.com/platinummonkey/roster/pkg/auth"
	"github.com/platinummonkey/roster/pkg/contextkeys"
	"github.com/platinummonkey/roster/pkg/httputil"
	"github.com/platinummonkey/roster/pkg/observability"
	"github.com/platinummonkey/roster/pkg/sessions"
)

// Resolution schemes reported to metrics
const (
	SchemeCookieSession = "cookie_session"
	SchemeHeaderSession = "header_session"
	SchemeAPIKey        = "api_key"
	SchemeAnonymous     = "anonymous"
	SchemeThrottled     = "throttled"
)

// SessionValidator turns a raw session token into a principal
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (auth.Principal, error)
}

// APIKeyValidator turns a raw API key into a principal
type APIKeyValidator interface {
	ValidateAPIKey(ctx context.Context, rawKey string) (auth.Principal, error)
}

// Credentials are the raw values a request presented
type Credentials struct {
	Cookie        string // value of the session_token cookie
	Authorization string // value of the Authorization header
	Peer          string // caller address, keys the API key attempt limit
}

// CredentialsFromRequest extracts the session cookie and Authorization header
func CredentialsFromRequest(r *http.Request) Credentials {
	var creds Credentials
	if c, err := r.Cookie(sessions.CookieName); err == nil {
		creds.Cookie = c.Value
	}
	creds.Authorization = r.Header.Get("Authorization")
	return creds
}

// Resolver maps request credentials to a principal. Guards decide what an
// anonymous principal may do; the resolver itself only turns away callers
// over the API key attempt limit.
type Resolver struct {
	sessions    SessionValidator
	keys        APIKeyValidator
	keyAttempts AttemptLimiter
	trustProxy  bool
	metrics     *observability.Metrics
	logger      logrus.FieldLogger
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithKeyAttemptLimit refuses to check API keys for a caller address once it
// has presented too many keys that matched nothing. Limiter errors fail open.
func WithKeyAttemptLimit(limiter AttemptLimiter) ResolverOption {
	return func(res *Resolver) {
		res.keyAttempts = limiter
	}
}

// WithTrustedProxy takes the caller address from X-Forwarded-For and
// X-Real-IP instead of the connection
func WithTrustedProxy(trust bool) ResolverOption {
	return func(res *Resolver) {
		res.trustProxy = trust
	}
}

// NewResolver creates a resolver. metrics may be nil.
func NewResolver(sessions SessionValidator, keys APIKeyValidator, metrics *observability.Metrics, logger logrus.FieldLogger, opts ...ResolverOption) *Resolver {
	res := &Resolver{
		sessions: sessions,
		keys:     keys,
		metrics:  metrics,
		logger:   logger.WithField("component", "identity_resolver"),
	}
	for _, opt := range opts {
		opt(res)
	}
	return res
}

type resolution struct {
	principal    auth.Principal
	scheme       string
	sessionToken string
	throttled    bool
}

// Resolve tries, in order: the session cookie, the Authorization header as a
// session token, then the header as an API key. The first match wins.
func (res *Resolver) Resolve(ctx context.Context, creds Credentials) auth.Principal {
	return res.resolve(ctx, creds).principal
}

func (res *Resolver) resolve(ctx context.Context, creds Credentials) resolution {
	if creds.Cookie != "" {
		if p, ok := res.trySession(ctx, creds.Cookie, SchemeCookieSession); ok {
			return resolution{principal: p, scheme: SchemeCookieSession, sessionToken: creds.Cookie}
		}
	}

	token := BearerToken(creds.Authorization)
	if token != "" {
		if p, ok := res.trySession(ctx, token, SchemeHeaderSession); ok {
			return resolution{principal: p, scheme: SchemeHeaderSession, sessionToken: token}
		}
		if strings.HasPrefix(token, apikeys.Prefix) {
			if res.keyAttemptsExhausted(ctx, creds.Peer) {
				return resolution{principal: auth.Anonymous(), scheme: SchemeThrottled, throttled: true}
			}
			if p, ok := res.tryAPIKey(ctx, token); ok {
				return resolution{principal: p, scheme: SchemeAPIKey}
			}
			res.recordKeyMiss(ctx, creds.Peer)
		}
	}

	return resolution{principal: auth.Anonymous(), scheme: SchemeAnonymous}
}

func (res *Resolver) trySession(ctx context.Context, token, scheme string) (auth.Principal, bool) {
	if res.sessions == nil {
		return auth.Anonymous(), false
	}
	p, err := res.sessions.ValidateSession(ctx, token)
	if err != nil {
		res.logger.WithError(err).WithField("scheme", scheme).Warn("session validation failed, treating credential as rejected")
		return auth.Anonymous(), false
	}
	return p, p.IsAuthenticated()
}

func (res *Resolver) tryAPIKey(ctx context.Context, rawKey string) (auth.Principal, bool) {
	if res.keys == nil {
		return auth.Anonymous(), false
	}
	p, err := res.keys.ValidateAPIKey(ctx, rawKey)
	if err != nil {
		res.logger.WithError(err).Warn("API key validation failed, treating credential as rejected")
		return auth.Anonymous(), false
	}
	return p, p.IsAuthenticated()
}

func (res *Resolver) keyAttemptsExhausted(ctx context.Context, peer string) bool {
	if res.keyAttempts == nil {
		return false
	}
	exhausted, err := res.keyAttempts.Exhausted(ctx, "peer:"+peer)
	if err != nil {
		res.logger.WithError(err).Warn("API key attempt limiter unavailable, checking key")
		return false
	}
	if exhausted {
		res.logger.WithField("peer", peer).Warn("too many unmatched API keys, skipping check")
	}
	return exhausted
}

func (res *Resolver) recordKeyMiss(ctx context.Context, peer string) {
	if res.keyAttempts == nil {
		return
	}
	if _, err := res.keyAttempts.Allow(ctx, "peer:"+peer); err != nil {
		res.logger.WithError(err).Warn("failed to record unmatched API key")
	}
}

// Handler stores the resolved principal in the request context
func (res *Resolver) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		creds := CredentialsFromRequest(r)
		creds.Peer = auth.RequestIP(r, res.trustProxy)
		result := res.resolve(ctx, creds)
		res.metrics.RecordResolution(result.scheme)

		if result.throttled {
			cfg := res.keyAttempts.Config()
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", cfg.WindowDuration.Seconds()))
			httputil.WriteTooManyRequests(w, "too many invalid API keys")
			return
		}

		ctx = contextkeys.WithPrincipal(ctx, result.principal)
		if result.sessionToken != "" {
			ctx = contextkeys.WithSessionToken(ctx, result.sessionToken)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFromContext returns the principal resolved for the request, or
// the anonymous principal when the resolver did not run
func PrincipalFromContext(ctx context.Context) auth.Principal {
	return contextkeys.GetPrincipal(ctx)
}

// BearerToken strips an optional "Bearer " prefix from an Authorization value
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) >= 7 && strings.EqualFold(header[:7], "bearer ") {
		header = strings.TrimSpace(header[7:])
	}
	return header
}
