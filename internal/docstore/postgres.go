package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/boltforge/authgate/internal/database"
	"github.com/boltforge/authgate/internal/models"
	"github.com/google/uuid"
)

// PostgresStore implements Store on a single jsonb-backed documents table.
// It is the storage path for self-hosted deployments; a partial unique index
// on profiles.user_id makes the create-if-missing profile bootstrap race-safe.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Query(ctx context.Context, collection string, filters []Filter) ([]Document, error) {
	match := make(map[string]any, len(filters))
	for _, f := range filters {
		match[f.Attribute] = f.Value
	}
	matchJSON, err := json.Marshal(match)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filters: %w", err)
	}

	query := `
		SELECT id, data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND data @> $2::jsonb
		ORDER BY created_at
	`

	rows, err := s.db.Pool.Query(ctx, query, collection, string(matchJSON))
	if err != nil {
		return nil, s.wrap(err, "query documents")
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var doc Document
		var data []byte
		if err := rows.Scan(&doc.ID, &data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, s.wrap(err, "scan document")
		}
		doc.Collection = collection
		doc.Data = json.RawMessage(data)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(err, "iterate documents")
	}
	return docs, nil
}

func (s *PostgresStore) Create(ctx context.Context, collection string, data any, perms Permissions) (*Document, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	doc := Document{
		ID:         uuid.New().String(),
		Collection: collection,
		Data:       payload,
	}
	now := time.Now()

	query := `
		INSERT INTO documents (id, collection, data, owner_id, public_read, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING created_at, updated_at
	`

	err = s.db.Pool.QueryRow(ctx, query,
		doc.ID, collection, string(payload), perms.OwnerID, perms.PublicRead, now,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, s.wrap(err, "create document")
	}
	return &doc, nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, patch map[string]any) (*Document, error) {
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}

	query := `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at = $4
		WHERE collection = $1 AND id = $2
		RETURNING data, created_at, updated_at
	`

	doc := Document{ID: id, Collection: collection}
	var data []byte
	err = s.db.Pool.QueryRow(ctx, query, collection, id, string(patchJSON), time.Now()).
		Scan(&data, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, s.wrap(err, "update document")
	}
	doc.Data = json.RawMessage(data)
	return &doc, nil
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

// wrap translates a Postgres failure into the shared error taxonomy.
func (s *PostgresStore) wrap(err error, op string) error {
	mapped := database.MapPostgresError(err)
	switch {
	case errors.Is(mapped, models.ErrConflict):
		return models.NewProviderError(models.ErrKindConflict, 0, op, mapped)
	case errors.Is(mapped, models.ErrNotFound):
		return models.NewProviderError(models.ErrKindValidation, 0, op, mapped)
	}
	return fmt.Errorf("%s: %w", op, mapped)
}
