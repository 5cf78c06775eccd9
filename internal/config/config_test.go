package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APPWRITE_PROJECT_ID", "boltforge-test")
	t.Setenv("APPWRITE_API_KEY", "standard_key_abc123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, BackendAppwrite, cfg.Auth.IdentityBackend)
	assert.Equal(t, BackendAppwrite, cfg.Auth.DocumentBackend)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.SessionExpiry)
	assert.Equal(t, 5, cfg.RateLimit.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.BlockDuration)
	assert.Equal(t, uint64(3), cfg.Retry.MaxRetries)
	assert.Equal(t, 1*time.Second, cfg.Retry.BaseDelay)
}

func TestLoad_AppwriteProjectRequired(t *testing.T) {
	t.Setenv("APPWRITE_PROJECT_ID", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APPWRITE_PROJECT_ID")
}

func TestLoad_LocalBackendRequiresSecret(t *testing.T) {
	t.Setenv("IDENTITY_BACKEND", "local")
	t.Setenv("DOCUMENT_BACKEND", "local")
	t.Setenv("DB_PASSWORD", "test_password")
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_LocalBackend(t *testing.T) {
	t.Setenv("IDENTITY_BACKEND", "local")
	t.Setenv("DOCUMENT_BACKEND", "local")
	t.Setenv("DB_PASSWORD", "test_password")
	t.Setenv("JWT_SECRET", "local-dev-secret-16chars-min")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, cfg.Auth.IdentityBackend)
	assert.Equal(t, "host=localhost port=5432 user=postgres password=test_password dbname=boltforge sslmode=disable", cfg.Database.DSN())
}

func TestLoad_RejectsWeakSecret(t *testing.T) {
	t.Setenv("IDENTITY_BACKEND", "local")
	t.Setenv("DOCUMENT_BACKEND", "local")
	t.Setenv("DB_PASSWORD", "test_password")
	t.Setenv("JWT_SECRET", "changeme")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_UnknownBackendRejected(t *testing.T) {
	t.Setenv("IDENTITY_BACKEND", "firebase")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IDENTITY_BACKEND")
}

func TestValidateJWTSecret_ProductionMinLength(t *testing.T) {
	err := validateJWTSecret("exactly-sixteen!", "production")
	require.Error(t, err)

	err = validateJWTSecret("a-thirty-two-character-secret-!!", "production")
	assert.NoError(t, err)
}

func TestParseAllowedOrigins_Development(t *testing.T) {
	origins := parseAllowedOrigins("development")
	assert.Contains(t, origins, "http://localhost:5173")
}

func TestParseAllowedOrigins_Production(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://boltforge.dev, https://app.boltforge.dev")

	origins := parseAllowedOrigins("production")
	assert.Equal(t, []string{"https://boltforge.dev", "https://app.boltforge.dev"}, origins)
}
