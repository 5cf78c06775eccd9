package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boltforge/authgate/internal/docstore"
	"github.com/boltforge/authgate/internal/models"
)

type profileDoc struct {
	UserID   string `json:"user_id"`
	UserType string `json:"user_type"`
	FullName string `json:"full_name"`
	Bio      string `json:"bio,omitempty"`
}

func TestPostgresStore_ProfileLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	store := docstore.NewPostgresStore(testDB.DB)

	t.Run("create and query by user id", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))

		doc, err := store.Create(ctx, docstore.CollectionProfiles,
			profileDoc{UserID: "user-1", UserType: "developer", FullName: "Dev One"},
			docstore.Permissions{OwnerID: "user-1", PublicRead: true},
		)
		require.NoError(t, err)
		assert.NotEmpty(t, doc.ID)

		docs, err := store.Query(ctx, docstore.CollectionProfiles,
			[]docstore.Filter{docstore.Equal("user_id", "user-1")})
		require.NoError(t, err)
		require.Len(t, docs, 1)

		var got profileDoc
		require.NoError(t, docs[0].Decode(&got))
		assert.Equal(t, "Dev One", got.FullName)
	})

	t.Run("duplicate profile for one user conflicts", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))

		_, err := store.Create(ctx, docstore.CollectionProfiles,
			profileDoc{UserID: "user-1", UserType: "developer", FullName: "First"},
			docstore.Permissions{OwnerID: "user-1"},
		)
		require.NoError(t, err)

		_, err = store.Create(ctx, docstore.CollectionProfiles,
			profileDoc{UserID: "user-1", UserType: "developer", FullName: "Second"},
			docstore.Permissions{OwnerID: "user-1"},
		)
		require.Error(t, err)
		assert.Equal(t, models.ErrKindConflict, models.KindOf(err),
			"the losing bootstrap must see a conflict it can resolve by re-reading")

		docs, err := store.Query(ctx, docstore.CollectionProfiles,
			[]docstore.Filter{docstore.Equal("user_id", "user-1")})
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})

	t.Run("same user id in another collection does not conflict", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))

		_, err := store.Create(ctx, docstore.CollectionProfiles,
			profileDoc{UserID: "user-1", FullName: "Dev One"},
			docstore.Permissions{OwnerID: "user-1"},
		)
		require.NoError(t, err)

		_, err = store.Create(ctx, "notifications",
			map[string]any{"user_id": "user-1", "message": "welcome"},
			docstore.Permissions{OwnerID: "user-1"},
		)
		assert.NoError(t, err, "uniqueness is scoped to the profiles collection")
	})

	t.Run("patch update merges fields", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))

		doc, err := store.Create(ctx, docstore.CollectionProfiles,
			profileDoc{UserID: "user-1", UserType: "developer", FullName: "Dev One"},
			docstore.Permissions{OwnerID: "user-1"},
		)
		require.NoError(t, err)

		updated, err := store.Update(ctx, docstore.CollectionProfiles, doc.ID,
			map[string]any{"bio": "Go developer"})
		require.NoError(t, err)

		var got profileDoc
		require.NoError(t, updated.Decode(&got))
		assert.Equal(t, "Go developer", got.Bio)
		assert.Equal(t, "Dev One", got.FullName, "untouched fields survive the patch")
	})
}
