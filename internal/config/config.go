package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider/backend selection values.
const (
	BackendAppwrite = "appwrite"
	BackendLocal    = "local"
)

type Config struct {
	Server    ServerConfig
	Appwrite  AppwriteConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Retry     RetryConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
}

// AppwriteConfig configures the hosted BaaS. Required when either backend
// below is "appwrite".
type AppwriteConfig struct {
	Endpoint   string
	ProjectID  string
	APIKey     string
	DatabaseID string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type AuthConfig struct {
	// IdentityBackend selects where identities live: the hosted BaaS or the
	// self-hosted Postgres provider. DocumentBackend selects profile storage
	// independently, since the migration moved the two at different times.
	IdentityBackend string
	DocumentBackend string

	JWTSecret       string // local provider only
	SessionExpiry   time.Duration
	ClientCookieAge time.Duration
	CleanupInterval time.Duration
	ProfileCacheTTL time.Duration

	OAuthSuccessURL string
	OAuthFailureURL string
}

type RateLimitConfig struct {
	MaxAttempts   int
	Window        time.Duration
	BlockDuration time.Duration
	ClientIdleTTL time.Duration
}

type RetryConfig struct {
	MaxRetries uint64
	BaseDelay  time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: splitAndTrim(getEnv("TRUSTED_PROXIES", "")),
		},
		Appwrite: AppwriteConfig{
			Endpoint:   getEnv("APPWRITE_ENDPOINT", "https://cloud.appwrite.io/v1"),
			ProjectID:  getEnv("APPWRITE_PROJECT_ID", ""),
			APIKey:     getEnv("APPWRITE_API_KEY", ""),
			DatabaseID: getEnv("APPWRITE_DATABASE_ID", "boltforge"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "boltforge"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxConns:        int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:        int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
		},
		Auth: AuthConfig{
			IdentityBackend: getEnv("IDENTITY_BACKEND", BackendAppwrite),
			DocumentBackend: getEnv("DOCUMENT_BACKEND", BackendAppwrite),
			JWTSecret:       getEnv("JWT_SECRET", ""),
			SessionExpiry:   getEnvAsDuration("SESSION_EXPIRY", 7*24*time.Hour),
			ClientCookieAge: getEnvAsDuration("CLIENT_COOKIE_AGE", 30*24*time.Hour),
			CleanupInterval: getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
			ProfileCacheTTL: getEnvAsDuration("PROFILE_CACHE_TTL", 5*time.Minute),
			OAuthSuccessURL: getEnv("OAUTH_SUCCESS_URL", "http://localhost:5173/"),
			OAuthFailureURL: getEnv("OAUTH_FAILURE_URL", "http://localhost:5173/?error=oauth_failed"),
		},
		RateLimit: RateLimitConfig{
			MaxAttempts:   getEnvAsInt("RATE_LIMIT_MAX_ATTEMPTS", 5),
			Window:        getEnvAsDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
			BlockDuration: getEnvAsDuration("RATE_LIMIT_BLOCK_DURATION", 15*time.Minute),
			ClientIdleTTL: getEnvAsDuration("RATE_LIMIT_CLIENT_IDLE_TTL", 1*time.Hour),
		},
		Retry: RetryConfig{
			MaxRetries: uint64(getEnvAsInt("RETRY_MAX_RETRIES", 3)),
			BaseDelay:  getEnvAsDuration("RETRY_BASE_DELAY", 1*time.Second),
		},
	}

	if err := cfg.validate(env); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate(env string) error {
	switch c.Auth.IdentityBackend {
	case BackendAppwrite, BackendLocal:
	default:
		return fmt.Errorf("IDENTITY_BACKEND must be %q or %q", BackendAppwrite, BackendLocal)
	}
	switch c.Auth.DocumentBackend {
	case BackendAppwrite, BackendLocal:
	default:
		return fmt.Errorf("DOCUMENT_BACKEND must be %q or %q", BackendAppwrite, BackendLocal)
	}

	usesAppwrite := c.Auth.IdentityBackend == BackendAppwrite || c.Auth.DocumentBackend == BackendAppwrite
	if usesAppwrite && c.Appwrite.ProjectID == "" {
		return fmt.Errorf("APPWRITE_PROJECT_ID is required for the appwrite backend")
	}
	if c.Auth.DocumentBackend == BackendAppwrite && c.Appwrite.APIKey == "" {
		return fmt.Errorf("APPWRITE_API_KEY is required for the appwrite document backend")
	}

	usesDatabase := c.Auth.IdentityBackend == BackendLocal || c.Auth.DocumentBackend == BackendLocal
	if usesDatabase && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required for the local backend")
	}

	if c.Auth.IdentityBackend == BackendLocal {
		if err := validateJWTSecret(c.Auth.JWTSecret, env); err != nil {
			return err
		}
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for the local
// provider's signing secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}
	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return splitAndTrim(getEnv("ALLOWED_ORIGINS", ""))
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
