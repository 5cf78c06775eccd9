package repositories

import (
	"context"
	"time"

	"github.com/boltforge/authgate/internal/database"
)

// RevocationRepository tracks signed-out session tokens by JTI until their
// natural expiry, for the local identity provider.
type RevocationRepository struct {
	db *database.DB
}

func NewRevocationRepository(db *database.DB) *RevocationRepository {
	return &RevocationRepository{db: db}
}

func (r *RevocationRepository) Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	query := `
		INSERT INTO revoked_sessions (jti, user_id, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (jti) DO NOTHING
	`

	_, err := r.db.Pool.Exec(ctx, query, jti, userID, expiresAt, time.Now())
	return database.MapPostgresError(err)
}

func (r *RevocationRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM revoked_sessions WHERE jti = $1)`

	var revoked bool
	if err := r.db.Pool.QueryRow(ctx, query, jti).Scan(&revoked); err != nil {
		return false, database.MapPostgresError(err)
	}
	return revoked, nil
}

// CleanupExpired removes revocation records whose tokens have expired anyway.
func (r *RevocationRepository) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM revoked_sessions WHERE expires_at < $1`, time.Now())
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
