package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/boltforge/authgate/internal/cache"
	"github.com/boltforge/authgate/internal/docstore"
	"github.com/boltforge/authgate/internal/models"
)

// profileDocument is the wire shape of a profile in the document store.
// Field names follow the original collection schema.
type profileDocument struct {
	ID              string  `json:"$id,omitempty"`
	UserID          string  `json:"user_id"`
	UserType        string  `json:"user_type"`
	FullName        string  `json:"full_name"`
	Bio             string  `json:"bio,omitempty"`
	Location        string  `json:"location,omitempty"`
	Website         string  `json:"website,omitempty"`
	Phone           string  `json:"phone,omitempty"`
	CompanyName     string  `json:"company_name,omitempty"`
	CompanyIndustry string  `json:"company_industry,omitempty"`
	HourlyRate      float64 `json:"hourly_rate,omitempty"`
	TotalProjects   int     `json:"total_projects,omitempty"`
	SuccessRate     float64 `json:"success_rate,omitempty"`
	AverageRating   float64 `json:"average_rating,omitempty"`
	IsVerified      bool    `json:"is_verified,omitempty"`
}

// ProfileRepository is a typed view over the profiles collection, with a
// short-lived read cache in front of the document store.
type ProfileRepository struct {
	store  docstore.Store
	cache  *cache.Cache[*models.Profile]
	logger *slog.Logger
}

func NewProfileRepository(store docstore.Store, ttl time.Duration, logger *slog.Logger) *ProfileRepository {
	return &ProfileRepository{
		store:  store,
		cache:  cache.New[*models.Profile](ttl),
		logger: logger,
	}
}

// Cache exposes the underlying cache for the background sweeper.
func (r *ProfileRepository) Cache() *cache.Cache[*models.Profile] {
	return r.cache
}

// GetByUserID returns the profile owned by userID, or models.ErrNotFound.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	if p, ok := r.cache.Get(cacheKey(userID)); ok {
		return p, nil
	}

	docs, err := r.store.Query(ctx, docstore.CollectionProfiles,
		[]docstore.Filter{docstore.Equal("user_id", userID)})
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	if len(docs) == 0 {
		return nil, models.ErrNotFound
	}
	if len(docs) > 1 {
		// One profile per user is an invariant; log and take the oldest.
		r.logger.Warn("multiple profiles for user", slog.String("user_id", userID), slog.Int("count", len(docs)))
	}

	profile, err := documentToProfile(&docs[0])
	if err != nil {
		return nil, err
	}
	r.cache.Set(cacheKey(userID), profile)
	return profile, nil
}

// Create stores a new profile with owner-scoped permissions: public read,
// owner-only write, as the marketplace requires.
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	doc, err := r.store.Create(ctx, docstore.CollectionProfiles,
		profileToDocument(profile),
		docstore.Permissions{OwnerID: profile.UserID, PublicRead: true})
	if err != nil {
		return nil, err
	}

	created, err := documentToProfile(doc)
	if err != nil {
		return nil, err
	}
	r.cache.Set(cacheKey(created.UserID), created)
	return created, nil
}

// Update applies a partial patch to the profile document and invalidates the
// cached copy.
func (r *ProfileRepository) Update(ctx context.Context, profile *models.Profile, patch map[string]any) (*models.Profile, error) {
	doc, err := r.store.Update(ctx, docstore.CollectionProfiles, profile.ID, patch)
	if err != nil {
		return nil, err
	}

	updated, err := documentToProfile(doc)
	if err != nil {
		return nil, err
	}
	r.cache.Set(cacheKey(updated.UserID), updated)
	return updated, nil
}

func cacheKey(userID string) string {
	return "profile:" + userID
}

func profileToDocument(p *models.Profile) *profileDocument {
	return &profileDocument{
		UserID:          p.UserID,
		UserType:        string(p.UserType),
		FullName:        p.FullName,
		Bio:             p.Bio,
		Location:        p.Location,
		Website:         p.Website,
		Phone:           p.Phone,
		CompanyName:     p.CompanyName,
		CompanyIndustry: p.CompanyIndustry,
		HourlyRate:      p.HourlyRate,
		TotalProjects:   p.TotalProjects,
		SuccessRate:     p.SuccessRate,
		AverageRating:   p.AverageRating,
		IsVerified:      p.IsVerified,
	}
}

func documentToProfile(doc *docstore.Document) (*models.Profile, error) {
	var pd profileDocument
	if err := doc.Decode(&pd); err != nil {
		return nil, fmt.Errorf("failed to decode profile document: %w", err)
	}

	return &models.Profile{
		ID:              doc.ID,
		UserID:          pd.UserID,
		UserType:        models.UserType(pd.UserType),
		FullName:        pd.FullName,
		Bio:             pd.Bio,
		Location:        pd.Location,
		Website:         pd.Website,
		Phone:           pd.Phone,
		CompanyName:     pd.CompanyName,
		CompanyIndustry: pd.CompanyIndustry,
		HourlyRate:      pd.HourlyRate,
		TotalProjects:   pd.TotalProjects,
		SuccessRate:     pd.SuccessRate,
		AverageRating:   pd.AverageRating,
		IsVerified:      pd.IsVerified,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}, nil
}
