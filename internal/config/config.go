package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	JWTClockSkew       time.Duration
	CORSAllowedOrigins []string

	CatalogCacheTTL    time.Duration
	PricingParallelism int
	PricingLocation    *time.Location
	RequestTimeout     time.Duration
	BodyLimitBytes     int64

	RateLimitMax    int
	RateLimitWindow time.Duration
	RateLimitStore  string

	AuditEnabled      bool
	AuditQueue        string
	WorkerConcurrency int

	DBMaxConns         int
	DBBreakerMinReq    int
	DBBreakerFailRatio float64
	DBBreakerOpenFor   time.Duration
	LockTTL            time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	origins := splitAndTrim(k.String("CORS_ALLOWED_ORIGINS"))
	if len(origins) == 0 {
		origins = splitAndTrim(k.String("FRONTEND_URL"))
	}

	loc, err := parseLocation(k.String("PRICING_TIMEZONE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          firstNonEmpty(k.String("JWT_SECRET_KEY"), k.String("JWT_SECRET")),
		JWTIssuer:          strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience:        strings.TrimSpace(k.String("JWT_AUDIENCE")),
		JWTClockSkew:       parseDuration(k.String("JWT_CLOCK_SKEW"), "30s"),
		CORSAllowedOrigins: origins,
		CatalogCacheTTL:    parseDuration(k.String("CATALOG_CACHE_TTL"), "0s"),
		PricingParallelism: parseInt(k.String("PRICING_PARALLELISM"), 1),
		PricingLocation:    loc,
		RequestTimeout:     parseDuration(k.String("REQUEST_TIMEOUT"), "10s"),
		BodyLimitBytes:     int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		RateLimitMax:       parseInt(k.String("RATE_LIMIT_MAX"), 60),
		RateLimitWindow:    parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitStore:     strings.ToLower(valueOrDefault(k.String("RATE_LIMIT_STORE"), "sliding")),
		AuditEnabled:       parseBool(k.String("AUDIT_ENABLED"), true),
		AuditQueue:         valueOrDefault(k.String("AUDIT_QUEUE"), "audit"),
		WorkerConcurrency:  parseInt(k.String("WORKER_CONCURRENCY"), 4),
		DBMaxConns:         parseInt(k.String("DB_MAX_CONNS"), 0),
		DBBreakerMinReq:    parseInt(k.String("DB_BREAKER_MIN_REQUESTS"), 20),
		DBBreakerFailRatio: parseFloat(k.String("DB_BREAKER_FAILURE_RATIO"), 0.5),
		DBBreakerOpenFor:   parseDuration(k.String("DB_BREAKER_OPEN_FOR"), "15s"),
		LockTTL:            parseDuration(k.String("LOCK_TTL"), "2m"),
	}

	if cfg.PricingParallelism < 1 {
		cfg.PricingParallelism = 1
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET_KEY is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without leaking them.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]*string, len(env))
	for key, value := range env {
		if prev, ok := os.LookupEnv(key); ok {
			original[key] = &prev
		} else {
			original[key] = nil
		}
		if err := setEnvVar(key, &value); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key string, value *string) error {
	if value == nil || *value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, *value)
}

func restoreEnv(values map[string]*string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("PRICING_TIMEZONE: %w", err)
	}
	return loc, nil
}
