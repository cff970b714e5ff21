package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/roster/pkg/auth"
	"github.com/platinummonkey/roster/pkg/httputil"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// AnonymousRateLimitConfig applies to requests without a credential. It
// covers the login and callback endpoints.
func AnonymousRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 100,
		WindowDuration:    time.Minute,
		BurstSize:         10,
	}
}

// MemberRateLimitConfig applies to human principals
func MemberRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 1000,
		WindowDuration:    time.Minute,
		BurstSize:         50,
	}
}

// BotRateLimitConfig applies to API key principals
func BotRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 5000,
		WindowDuration:    time.Minute,
		BurstSize:         100,
	}
}

// KeyScanRateLimitConfig bounds how many unmatched API keys one network
// address may present. Every unmatched key costs a bcrypt comparison against
// each stored key.
func KeyScanRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 20,
		WindowDuration:    time.Minute,
		BurstSize:         5,
	}
}

// Limiter decides whether a request identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Config() *RateLimitConfig
}

// AttemptLimiter is a Limiter that can also be checked without spending
// budget. Allow records an attempt, Exhausted asks whether any are left.
type AttemptLimiter interface {
	Limiter
	Exhausted(ctx context.Context, key string) (bool, error)
}

// RateLimiter is an in-process token bucket limiter
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*bucket
	mu      sync.Mutex
	now     func() time.Time
}

type bucket struct {
	tokens     int
	lastUpdate time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = AnonymousRateLimitConfig()
	}
	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Config returns the limiter's configuration
func (rl *RateLimiter) Config() *RateLimitConfig {
	return rl.config
}

func (rl *RateLimiter) capacity() int {
	return rl.config.RequestsPerWindow + rl.config.BurstSize
}

// Allow takes a token from key's bucket
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b := rl.refill(key)
	if b.tokens > 0 {
		b.tokens--
		return true, nil
	}
	return false, nil
}

// Exhausted reports whether key's bucket is empty without taking a token
func (rl *RateLimiter) Exhausted(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if _, exists := rl.buckets[key]; !exists {
		return false, nil
	}
	return rl.refill(key).tokens <= 0, nil
}

// refill must be called with mu held
func (rl *RateLimiter) refill(key string) *bucket {
	now := rl.now()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{tokens: rl.capacity(), lastUpdate: now}
		rl.buckets[key] = b
	}

	elapsed := now.Sub(b.lastUpdate)
	refill := int(elapsed.Seconds() * float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds())
	if refill > 0 {
		b.tokens += refill
		if b.tokens > rl.capacity() {
			b.tokens = rl.capacity()
		}
		b.lastUpdate = now
	}
	return b
}

// Remaining returns the number of remaining tokens for a key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[key]
	if !exists {
		return rl.capacity()
	}
	return b.tokens
}

// Cleanup removes buckets idle for more than two windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastUpdate) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanup runs Cleanup once per window until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimitMiddleware limits requests per principal, using a separate
// limiter for members, bots and anonymous callers
type RateLimitMiddleware struct {
	member     Limiter
	bot        Limiter
	anonymous  Limiter
	trustProxy bool
	logger     logrus.FieldLogger
}

// NewRateLimitMiddleware creates a rate limit middleware. Limiter errors fail
// open and are logged.
func NewRateLimitMiddleware(member, bot, anonymous Limiter, logger logrus.FieldLogger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		member:    member,
		bot:       bot,
		anonymous: anonymous,
		logger:    logger.WithField("component", "rate_limit"),
	}
}

// TrustProxyHeaders keys anonymous callers on X-Forwarded-For and X-Real-IP
// instead of the connection's address. Only enable it behind a proxy that
// overwrites those headers.
func (m *RateLimitMiddleware) TrustProxyHeaders(trust bool) *RateLimitMiddleware {
	m.trustProxy = trust
	return m
}

// Handler must run after the identity resolver
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter, key := m.limiterFor(r)

		allowed, err := limiter.Allow(r.Context(), key)
		if err != nil {
			m.logger.WithError(err).WithField("key", key).Warn("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		cfg := limiter.Config()
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.RequestsPerWindow))
		if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", cfg.WindowDuration.Seconds()))
			httputil.WriteTooManyRequests(w, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) limiterFor(r *http.Request) (Limiter, string) {
	p := PrincipalFromContext(r.Context())
	switch p.Kind() {
	case auth.PrincipalHuman:
		return m.member, p.String()
	case auth.PrincipalBot:
		return m.bot, p.String()
	default:
		return m.anonymous, "ip:" + auth.RequestIP(r, m.trustProxy)
	}
}
