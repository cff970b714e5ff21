// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here so their
// producers and consumers are discoverable in one place.
//
// USAGE PATTERN:
//
//	ctx = contextkeys.WithPrincipal(ctx, principal)
//	principal := contextkeys.GetPrincipal(ctx)
package contextkeys

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/roster/pkg/auth"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains auth.Principal
	// Set by: middleware.Resolver (pkg/middleware/identity.go)
	// Required by: guards, /auth/me, admin handlers
	PrincipalKey Key = "principal"

	// SessionTokenKey contains the raw session token the principal was resolved from
	// Set by: middleware.Resolver
	// Used by: logout
	SessionTokenKey Key = "session_token"

	// RequestIDKey contains request ID string (UUID)
	// Set by: api request ID middleware
	// Used by: logger, audit trail
	RequestIDKey Key = "request_id"

	// LoggerKey contains logrus.FieldLogger with request fields attached
	// Set by: api request ID middleware
	// Used by: handlers that log with request context
	LoggerKey Key = "logger"
)

// WithPrincipal adds the resolved principal to the context
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// GetPrincipal returns the principal in ctx, or the anonymous principal
func GetPrincipal(ctx context.Context) auth.Principal {
	if p, ok := ctx.Value(PrincipalKey).(auth.Principal); ok {
		return p
	}
	return auth.Anonymous()
}

// WithSessionToken records the session token that authenticated the request
func WithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, SessionTokenKey, token)
}

// GetSessionToken returns the session token recorded in ctx
func GetSessionToken(ctx context.Context) string {
	if token, ok := ctx.Value(SessionTokenKey).(string); ok {
		return token
	}
	return ""
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithLogger adds a request-scoped logger to the context
func WithLogger(ctx context.Context, logger logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetLogger returns the request-scoped logger, falling back to fallback
func GetLogger(ctx context.Context, fallback logrus.FieldLogger) logrus.FieldLogger {
	if logger, ok := ctx.Value(LoggerKey).(logrus.FieldLogger); ok {
		return logger
	}
	if fallback == nil {
		return logrus.StandardLogger()
	}
	return fallback
}
