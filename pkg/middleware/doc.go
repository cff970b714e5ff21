// Package middleware resolves the caller's identity and enforces guards and
// rate limits on HTTP handlers.
//
// The Resolver runs on every request. It stores an auth.Principal in the
// request context, anonymous when no credential matched:
//
//	resolver := middleware.NewResolver(sessionStore, apiKeyStore, metrics, logger,
//		middleware.WithKeyAttemptLimit(middleware.NewRateLimiter(middleware.KeyScanRateLimitConfig())))
//	router.Use(resolver.Handler)
//
// Checking an API key compares it against every stored key, so a caller
// address that keeps presenting unknown keys is answered 429 before the
// comparison runs.
//
// Guards reject afterwards, 401 for anonymous callers and 403 otherwise:
//
//	admin := router.PathPrefix("/admin").Subrouter()
//	admin.Use(middleware.RequireGuard(auth.GuardAdmin, metrics))
//
// Rate limits are per principal, or per client IP for anonymous callers.
// Client IPs come from the connection unless forwarding headers are trusted. The
// Redis limiter shares counters between replicas; RateLimiter is in-process.
package middleware
