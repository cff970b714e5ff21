// Package config loads service configuration from the environment.
//
// Required: ROOT_SECRET, ROOT_DB_URL, ROOT_PORT, GITHUB_CLIENT_ID,
// GITHUB_CLIENT_SECRET and GITHUB_REDIRECT_URL. A missing value fails
// LoadConfig with an *auth.ConfigError naming the variable.
//
// Optional: ROOT_ENV (development), ROOT_HOST, ROOT_HOSTNAME,
// ROOT_FRONTEND_URL, ROOT_ALLOWED_ORIGINS, ROOT_REDIS_URL, ROOT_DB_MAX_CONNS,
// ROOT_DB_MIN_CONNS, ROOT_CLEANUP_SCHEDULE (standard cron, hourly),
// ROOT_LOG_LEVEL, ROOT_LOG_FORMAT, ROOT_OTEL_* , GITHUB_ORG_NAME (amfoss) and
// GITHUB_HTTP_TIMEOUT (10s).
package config
