// Package docstore abstracts the document collaborator: JSON documents in
// named collections with owner-scoped permissions. Two implementations exist,
// the hosted BaaS Databases API and a Postgres-backed store for self-hosted
// deployments.
package docstore

import (
	"context"
	"encoding/json"
	"time"
)

// Collection names used by the gateway.
const (
	CollectionProfiles = "profiles"
)

// Filter is an equality constraint on a document attribute.
type Filter struct {
	Attribute string
	Value     any
}

// Equal builds an equality filter.
func Equal(attribute string, value any) Filter {
	return Filter{Attribute: attribute, Value: value}
}

// Permissions describes who may read and write a document. Writes are always
// owner-only; reads are either public or owner-only.
type Permissions struct {
	OwnerID    string
	PublicRead bool
}

// Document is one stored record. Data holds the collection-specific payload.
type Document struct {
	ID         string
	Collection string
	Data       json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Decode unmarshals the document payload into out.
func (d *Document) Decode(out any) error {
	return json.Unmarshal(d.Data, out)
}

// Store is the document collaborator surface.
type Store interface {
	// Query returns documents in collection matching every filter.
	Query(ctx context.Context, collection string, filters []Filter) ([]Document, error)

	// Create stores a new document. A uniqueness violation surfaces as a
	// conflict-kind error so idempotent upserts can treat it as satisfied.
	Create(ctx context.Context, collection string, data any, perms Permissions) (*Document, error)

	// Update applies a partial patch to an existing document.
	Update(ctx context.Context, collection, id string, patch map[string]any) (*Document, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
}
