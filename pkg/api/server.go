package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/roster/pkg/auth"
	"github.com/platinummonkey/roster/pkg/httputil"
	"github.com/platinummonkey/roster/pkg/middleware"
	"github.com/platinummonkey/roster/pkg/observability"
	"github.com/platinummonkey/roster/pkg/sso"
)

// SessionStore validates, issues and revokes sessions
type SessionStore interface {
	middleware.SessionValidator
	sso.SessionIssuer
}

// BotKeyStore manages the API keys bots authenticate with
type BotKeyStore interface {
	middleware.APIKeyValidator
	CreateAPIKey(ctx context.Context, name string, createdBy int64) (string, *auth.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]auth.APIKey, error)
	DeleteAPIKey(ctx context.Context, id int64) error
}

// Config controls the HTTP surface
type Config struct {
	// AllowedOrigins may make credentialed cross-origin requests
	AllowedOrigins []string
	// BotEmailDomain is used for the synthetic email of bots in /auth/me
	BotEmailDomain string
	// ServiceName names the otelhttp server spans
	ServiceName string
	// TrustProxy takes client addresses from forwarding headers when
	// throttling. Only safe behind a proxy that overwrites them.
	TrustProxy bool
}

// Dependencies are the collaborators the routes are served by
type Dependencies struct {
	Sessions SessionStore
	APIKeys  BotKeyStore
	Members  sso.MemberProvisioner
	Provider sso.IdentityProvider
	States   sso.StateStore
	Cookies  sso.CookieConfig

	// RateLimit is optional; nil disables per-principal limits
	RateLimit *middleware.RateLimitMiddleware
	// KeyAttempts is optional; it caps unmatched API keys per client address
	KeyAttempts middleware.AttemptLimiter
	// Health is optional; nil serves a static liveness answer on both probes
	Health *observability.HealthChecker

	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
	Logger   logrus.FieldLogger
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	config  Config
	deps    Dependencies
	audit   *auth.AuditLogger
	logger  logrus.FieldLogger
}

// NewServer creates a new API server
func NewServer(config Config, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if config.BotEmailDomain == "" {
		config.BotEmailDomain = auth.DefaultBotEmailDomain
	}
	if config.ServiceName == "" {
		config.ServiceName = "roster"
	}

	s := &Server{
		router: mux.NewRouter(),
		config: config,
		deps:   deps,
		audit:  auth.NewAuditLogger(deps.Logger),
		logger: deps.Logger.WithField("component", "api"),
	}

	s.setupRoutes()

	var h http.Handler = s.router
	h = httputil.CORSMiddleware(config.AllowedOrigins)(h)
	h = httputil.LoggingMiddleware(deps.Logger)(h)
	h = observability.RecoveryMiddleware(deps.Logger)(h)
	h = httputil.RequestIDMiddleware(deps.Logger)(h)
	s.handler = otelhttp.NewHandler(h, config.ServiceName)

	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Probes and scrape endpoint sit outside identity resolution and limits
	s.router.HandleFunc("/healthz", s.liveness).Methods(http.MethodGet)
	s.router.HandleFunc("/readyz", s.readiness).Methods(http.MethodGet)
	if s.deps.Gatherer != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.deps.Gatherer)).Methods(http.MethodGet)
	}

	app := s.router.NewRoute().Subrouter()
	app.Use(observability.HTTPMetricsMiddleware(s.deps.Metrics))
	resolverOpts := []middleware.ResolverOption{middleware.WithTrustedProxy(s.config.TrustProxy)}
	if s.deps.KeyAttempts != nil {
		resolverOpts = append(resolverOpts, middleware.WithKeyAttemptLimit(s.deps.KeyAttempts))
	}
	app.Use(middleware.NewResolver(s.deps.Sessions, s.deps.APIKeys, s.deps.Metrics, s.deps.Logger, resolverOpts...).Handler)
	if s.deps.RateLimit != nil {
		app.Use(s.deps.RateLimit.TrustProxyHeaders(s.config.TrustProxy).Handler)
	}

	sso.NewHandlers(
		s.deps.Provider,
		s.deps.States,
		s.deps.Members,
		s.deps.Sessions,
		s.deps.Cookies,
		s.deps.Metrics,
		s.deps.Logger,
	).RegisterRoutes(app)

	app.Handle("/auth/me", s.guarded(auth.GuardAuthenticated, s.me)).Methods(http.MethodGet)

	app.Handle("/admin/bots", s.guarded(auth.GuardAdmin, s.createBot)).Methods(http.MethodPost)
	app.Handle("/admin/bots", s.guarded(auth.GuardAdmin, s.listBots)).Methods(http.MethodGet)
	app.Handle("/admin/bots/{id:[0-9]+}", s.guarded(auth.GuardAdmin, s.deleteBot)).Methods(http.MethodDelete)
}

func (s *Server) guarded(g auth.Guard, fn http.HandlerFunc) http.Handler {
	return middleware.RequireGuard(g, s.deps.Metrics)(fn)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the route table, mainly for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) liveness(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		_ = httputil.WriteSuccess(w, map[string]string{"status": observability.StatusHealthy})
		return
	}
	s.deps.Health.Liveness(w, r)
}

func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		_ = httputil.WriteSuccess(w, map[string]string{"status": observability.StatusHealthy})
		return
	}
	s.deps.Health.Readiness(w, r)
}
