package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/roster/pkg/apikeys"
	"github.com/platinummonkey/roster/pkg/auth"
	"github.com/platinummonkey/roster/pkg/contextkeys"
	"github.com/platinummonkey/roster/pkg/members"
	"github.com/platinummonkey/roster/pkg/observability"
	"github.com/platinummonkey/roster/pkg/sessions"
)

type fakeSessions struct {
	tokens map[string]auth.Principal
	err    error
	calls  []string
}

func (f *fakeSessions) ValidateSession(_ context.Context, token string) (auth.Principal, error) {
	f.calls = append(f.calls, token)
	if f.err != nil {
		return auth.Anonymous(), f.err
	}
	return f.tokens[token], nil
}

type fakeKeys struct {
	keys  map[string]auth.Principal
	err   error
	calls []string
}

func (f *fakeKeys) ValidateAPIKey(_ context.Context, raw string) (auth.Principal, error) {
	f.calls = append(f.calls, raw)
	if f.err != nil {
		return auth.Anonymous(), f.err
	}
	return f.keys[raw], nil
}

var (
	alice = auth.HumanPrincipal(auth.Member{ID: 1, Name: "Alice", Role: auth.RoleAdmin})
	bob   = auth.HumanPrincipal(auth.Member{ID: 2, Name: "Bob", Role: auth.RoleMember})
	bot   = auth.BotPrincipal(auth.BotIdentity{APIKeyID: 7, Name: "deploy-bot"})
)

func newTestResolver(t *testing.T) (*Resolver, *fakeSessions, *fakeKeys) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	s := &fakeSessions{tokens: map[string]auth.Principal{"alice-token": alice, "bob-token": bob}}
	k := &fakeKeys{keys: map[string]auth.Principal{"root_botkey": bot}}
	return NewResolver(s, k, nil, logger), s, k
}

func TestResolveOrder(t *testing.T) {
	tests := []struct {
		name   string
		creds  Credentials
		want   auth.Principal
		scheme string
	}{
		{"no credentials", Credentials{}, auth.Anonymous(), SchemeAnonymous},
		{"cookie session", Credentials{Cookie: "alice-token"}, alice, SchemeCookieSession},
		{"cookie wins over header", Credentials{Cookie: "alice-token", Authorization: "root_botkey"}, alice, SchemeCookieSession},
		{"invalid cookie falls through to header", Credentials{Cookie: "stale", Authorization: "Bearer bob-token"}, bob, SchemeHeaderSession},
		{"header session without prefix", Credentials{Authorization: "bob-token"}, bob, SchemeHeaderSession},
		{"header api key", Credentials{Authorization: "root_botkey"}, bot, SchemeAPIKey},
		{"bearer api key", Credentials{Authorization: "Bearer root_botkey"}, bot, SchemeAPIKey},
		{"unknown header", Credentials{Authorization: "Bearer nope"}, auth.Anonymous(), SchemeAnonymous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver, _, _ := newTestResolver(t)
			got := resolver.resolve(context.Background(), tt.creds)
			assert.Equal(t, tt.want, got.principal)
			assert.Equal(t, tt.scheme, got.scheme)
			assert.Equal(t, tt.want, resolver.Resolve(context.Background(), tt.creds))
		})
	}
}

func TestResolveCookieSkipsHeader(t *testing.T) {
	resolver, s, k := newTestResolver(t)
	resolver.Resolve(context.Background(), Credentials{Cookie: "alice-token", Authorization: "root_botkey"})
	assert.Equal(t, []string{"alice-token"}, s.calls)
	assert.Empty(t, k.calls)
}

func TestResolveValidatorErrorsAreRejections(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := &fakeSessions{err: errors.New("connection reset")}
	k := &fakeKeys{err: errors.New("connection reset")}
	resolver := NewResolver(s, k, nil, logger)

	p := resolver.Resolve(context.Background(), Credentials{Cookie: "x", Authorization: "root_y"})
	assert.False(t, p.IsAuthenticated())
	assert.Len(t, hook.Entries, 3)
}

func TestResolverHandler(t *testing.T) {
	logger, _ := test.NewNullLogger()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	s := &fakeSessions{tokens: map[string]auth.Principal{"alice-token": alice}}
	k := &fakeKeys{keys: map[string]auth.Principal{"root_botkey": bot}}
	resolver := NewResolver(s, k, metrics, logger)

	var seen auth.Principal
	var seenToken string
	handler := resolver.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFromContext(r.Context())
		seenToken = contextkeys.GetSessionToken(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: sessions.CookieName, Value: "alice-token"})
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, alice, seen)
	assert.Equal(t, "alice-token", seenToken)

	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "root_botkey")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, bot, seen)
	assert.Empty(t, seenToken)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, seen.IsAuthenticated())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuthResolutionsTotal.WithLabelValues(SchemeCookieSession)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuthResolutionsTotal.WithLabelValues(SchemeAPIKey)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuthResolutionsTotal.WithLabelValues(SchemeAnonymous)))
}

func TestPrincipalFromContextDefaultsToAnonymous(t *testing.T) {
	p := PrincipalFromContext(context.Background())
	assert.False(t, p.IsAuthenticated())
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer abc"))
	assert.Equal(t, "abc", BearerToken("  abc "))
	assert.Equal(t, "", BearerToken(""))
	assert.Equal(t, "", BearerToken("Bearer "))
	assert.Equal(t, "Bearerabc", BearerToken("Bearerabc"))
}

// Real stores end to end: a session and an API key each resolve to the right
// principal, and deleting them drops the caller back to anonymous.
func TestResolveWithStores(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()

	directory := members.NewMemoryRepository()
	directory.Put(auth.Member{ID: 42, Name: "Carol", Email: "carol@example.com", Role: auth.RoleMember})

	sessionStore := sessions.NewStore(sessions.NewMemoryRepository(directory), logger)
	keyStore := apikeys.NewStore(apikeys.NewMemoryRepository(), logger)
	resolver := NewResolver(sessionStore, keyStore, nil, logger)

	token, err := sessionStore.CreateSession(ctx, 42)
	require.NoError(t, err)
	rawKey, key, err := keyStore.CreateAPIKey(ctx, "ci-bot", 42)
	require.NoError(t, err)

	p := resolver.Resolve(ctx, Credentials{Cookie: token})
	id, _ := p.MemberID()
	assert.Equal(t, int64(42), id)

	p = resolver.Resolve(ctx, Credentials{Authorization: "Bearer " + token})
	assert.True(t, p.HasRole(auth.RoleMember))

	p = resolver.Resolve(ctx, Credentials{Authorization: rawKey})
	id, _ = p.MemberID()
	assert.Equal(t, -key.ID, id)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, keyStore.Wait(waitCtx))

	require.NoError(t, sessionStore.DeleteSessionByToken(ctx, token))
	require.NoError(t, keyStore.DeleteAPIKey(ctx, key.ID))
	assert.False(t, resolver.Resolve(ctx, Credentials{Cookie: token}).IsAuthenticated())
	assert.False(t, resolver.Resolve(ctx, Credentials{Authorization: rawKey}).IsAuthenticated())
}

func TestResolverLimitsUnmatchedKeys(t *testing.T) {
	logger, _ := test.NewNullLogger()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	k := &fakeKeys{keys: map[string]auth.Principal{"root_botkey": bot}}
	attempts := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute})
	resolver := NewResolver(&fakeSessions{}, k, metrics, logger, WithKeyAttemptLimit(attempts))

	handler := resolver.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	send := func(key, remote, forwarded string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.RemoteAddr = remote + ":4000"
		req.Header.Set("Authorization", "Bearer "+key)
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	// A matched key does not spend the budget
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusNoContent, send("root_botkey", "192.0.2.7", "").Code)
	}
	assert.Len(t, k.calls, 5)
	k.calls = nil

	throttled := 0
	for i := 0; i < 20; i++ {
		rr := send("root_guess", "192.0.2.7", fmt.Sprintf("203.0.113.%d", i))
		if rr.Code == http.StatusTooManyRequests {
			throttled++
			assert.Equal(t, "60", rr.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, 18, throttled)
	assert.Len(t, k.calls, 2)
	assert.Equal(t, 18.0, testutil.ToFloat64(metrics.AuthResolutionsTotal.WithLabelValues(SchemeThrottled)))

	// Values that cannot be keys never reach the store or the limit
	assert.Equal(t, http.StatusNoContent, send("not-a-key", "192.0.2.7", "").Code)
	assert.Len(t, k.calls, 2)

	assert.Equal(t, http.StatusNoContent, send("root_botkey", "192.0.2.8", "").Code)
	assert.Len(t, k.calls, 3)
}

func TestResolverKeyAttemptsBehindTrustedProxy(t *testing.T) {
	logger, _ := test.NewNullLogger()
	k := &fakeKeys{}
	attempts := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	resolver := NewResolver(nil, k, nil, logger, WithKeyAttemptLimit(attempts), WithTrustedProxy(true))

	handler := resolver.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		req.Header.Set("Authorization", "root_guess")
		req.Header.Set("X-Forwarded-For", forwarded)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusNoContent, send("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.1"))
	assert.Equal(t, http.StatusNoContent, send("198.51.100.2"))
}

type downAttempts struct{ errLimiter }

func (downAttempts) Exhausted(context.Context, string) (bool, error) {
	return false, errors.New("down")
}

func TestResolverKeyAttemptLimitFailsOpen(t *testing.T) {
	logger, _ := test.NewNullLogger()
	k := &fakeKeys{keys: map[string]auth.Principal{"root_botkey": bot}}
	resolver := NewResolver(nil, k, nil, logger, WithKeyAttemptLimit(downAttempts{}))

	p := resolver.Resolve(context.Background(), Credentials{Authorization: "root_botkey", Peer: "192.0.2.1"})
	assert.Equal(t, bot, p)
}
