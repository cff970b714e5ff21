package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/roster/pkg/auth"
	"github.com/platinummonkey/roster/pkg/sso"
)

// Deployment environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all application configuration
type Config struct {
	// Env is "development" or "production"
	Env string
	// Secret is the shared request-signing secret; required but not used by
	// any authentication decision
	Secret string

	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	GitHub        sso.GitHubConfig
	Jobs          JobsConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	Hostname        string // session cookie Domain; empty means host-only
	FrontendURL     string // redirect target after login
	AllowedOrigins  []string
	TrustProxy      bool // take client addresses from X-Forwarded-For
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds Postgres settings
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis settings. An empty URL selects the in-memory
// login state store and rate limiter.
type RedisConfig struct {
	URL string
}

// JobsConfig holds background job schedules
type JobsConfig struct {
	CleanupSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
	OTelSampleRatio    float64
}

// IsDevelopment reports whether cookies may be sent without Secure
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	env := getEnv("ROOT_ENV", EnvDevelopment)

	cfg := &Config{
		Env:    env,
		Secret: os.Getenv("ROOT_SECRET"),
		Server: loadServerConfig(),
		Database: DatabaseConfig{
			URL:      os.Getenv("ROOT_DB_URL"),
			MaxConns: getEnvInt("ROOT_DB_MAX_CONNS", 10),
			MinConns: getEnvInt("ROOT_DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			URL: os.Getenv("ROOT_REDIS_URL"),
		},
		GitHub: sso.GitHubConfig{
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("GITHUB_REDIRECT_URL"),
			OrgName:      getEnv("GITHUB_ORG_NAME", sso.DefaultOrgName),
			HTTPTimeout:  getEnvDuration("GITHUB_HTTP_TIMEOUT", sso.DefaultHTTPTimeout),
		},
		Jobs: JobsConfig{
			CleanupSchedule: getEnv("ROOT_CLEANUP_SCHEDULE", "0 * * * *"),
		},
		Observability: loadObservabilityConfig(env),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	frontend := getEnv("ROOT_FRONTEND_URL", "http://localhost:3000")
	return ServerConfig{
		Host:            getEnv("ROOT_HOST", "0.0.0.0"),
		Port:            os.Getenv("ROOT_PORT"),
		Hostname:        os.Getenv("ROOT_HOSTNAME"),
		FrontendURL:     frontend,
		AllowedOrigins:  getEnvList("ROOT_ALLOWED_ORIGINS", []string{originOf(frontend)}),
		TrustProxy:      getEnvBool("ROOT_TRUST_PROXY", false),
		ReadTimeout:     getEnvDuration("ROOT_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("ROOT_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("ROOT_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("ROOT_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadObservabilityConfig(env string) ObservabilityConfig {
	// Production ships JSON; development reads text on a terminal
	level, format := "debug", "text"
	if env == EnvProduction {
		level, format = "info", "json"
	}

	return ObservabilityConfig{
		LogLevel:           getEnv("ROOT_LOG_LEVEL", level),
		LogFormat:          getEnv("ROOT_LOG_FORMAT", format),
		OTelEnabled:        getEnvBool("ROOT_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("ROOT_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("ROOT_OTEL_SERVICE_NAME", "roster"),
		OTelServiceVersion: getEnv("ROOT_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("ROOT_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("ROOT_OTEL_SAMPLE_RATIO", 1.0),
	}
}

// Validate checks required values. Missing ones are reported as
// *auth.ConfigError naming the environment variable.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		return &auth.ConfigError{Key: "ROOT_ENV", Reason: fmt.Sprintf("must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)}
	}
	if c.Secret == "" {
		return &auth.ConfigError{Key: "ROOT_SECRET"}
	}
	if c.Database.URL == "" {
		return &auth.ConfigError{Key: "ROOT_DB_URL"}
	}
	if c.Database.MaxConns <= 0 {
		return &auth.ConfigError{Key: "ROOT_DB_MAX_CONNS", Reason: "must be positive"}
	}
	if c.Server.Port == "" {
		return &auth.ConfigError{Key: "ROOT_PORT"}
	}
	if _, err := url.ParseRequestURI(c.Server.FrontendURL); err != nil {
		return &auth.ConfigError{Key: "ROOT_FRONTEND_URL", Reason: err.Error()}
	}
	if err := c.GitHub.ValidateConfig(); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.Jobs.CleanupSchedule); err != nil {
		return &auth.ConfigError{Key: "ROOT_CLEANUP_SCHEDULE", Reason: err.Error()}
	}
	if c.Observability.OTelEnabled && c.Observability.OTelEndpoint == "" {
		return &auth.ConfigError{Key: "ROOT_OTEL_ENDPOINT", Reason: "required when OpenTelemetry is enabled"}
	}
	if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
		return &auth.ConfigError{Key: "ROOT_OTEL_SAMPLE_RATIO", Reason: "must be between 0 and 1"}
	}
	return nil
}

// originOf strips the path from a URL, leaving scheme://host
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
