package integration

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boltforge/authgate/internal/auth"
	"github.com/boltforge/authgate/internal/identity"
	"github.com/boltforge/authgate/internal/models"
	"github.com/boltforge/authgate/internal/repositories"
)

func TestLocalProvider_SessionLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	accounts := repositories.NewAccountRepository(testDB.DB)
	revoked := repositories.NewRevocationRepository(testDB.DB)
	tokens := auth.NewTokenManager("integration-test-secret-32chars!", time.Hour)
	provider := identity.NewLocalProvider(accounts, revoked, tokens, logger)

	t.Run("full lifecycle", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))

		userID, err := provider.CreateAccount(ctx, "dev@example.com", "Str0ng!Passw0rd", "Dev One")
		require.NoError(t, err)
		require.NotEmpty(t, userID)

		token, user, err := provider.CreateSession(ctx, "dev@example.com", "Str0ng!Passw0rd")
		require.NoError(t, err)
		assert.Equal(t, userID, user.UserID)
		assert.Equal(t, "Dev One", user.DisplayName)

		whoami, err := provider.WhoAmI(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, userID, whoami.UserID)

		require.NoError(t, provider.DeleteSession(ctx, token))

		_, err = provider.WhoAmI(ctx, token)
		require.Error(t, err)
		assert.Equal(t, models.ErrKindUnauthenticated, models.KindOf(err),
			"a revoked token must not validate")
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))

		_, err := provider.CreateAccount(ctx, "dev@example.com", "Str0ng!Passw0rd", "Dev One")
		require.NoError(t, err)

		_, err = provider.CreateAccount(ctx, "dev@example.com", "0ther!Passw0rd", "Imposter")
		require.Error(t, err)
		assert.Equal(t, models.ErrKindConflict, models.KindOf(err))
	})

	t.Run("wrong password is a credential rejection", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))

		_, err := provider.CreateAccount(ctx, "dev@example.com", "Str0ng!Passw0rd", "Dev One")
		require.NoError(t, err)

		_, _, err = provider.CreateSession(ctx, "dev@example.com", "wrong-password")
		require.Error(t, err)
		assert.Equal(t, models.ErrKindCredentials, models.KindOf(err))
	})

	t.Run("unknown email is indistinguishable from wrong password", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))

		_, _, err := provider.CreateSession(ctx, "nobody@example.com", "whatever")
		require.Error(t, err)
		assert.Equal(t, models.ErrKindCredentials, models.KindOf(err))
	})
}
