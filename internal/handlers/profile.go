package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/boltforge/authgate/internal/auth"
	"github.com/boltforge/authgate/internal/models"
	"github.com/boltforge/authgate/internal/session"
	pkghttp "github.com/boltforge/authgate/pkg/http"
)

// ProfileHandler serves the signed-in user's marketplace profile.
type ProfileHandler struct {
	sessions *session.Registry
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(sessions *session.Registry) *ProfileHandler {
	return &ProfileHandler{sessions: sessions}
}

// UpdateProfileRequest is the PATCH body. Pointers distinguish "not sent"
// from "set to zero value"; only present fields reach the document store.
type UpdateProfileRequest struct {
	FullName        *string  `json:"full_name,omitempty" validate:"omitempty,min=1,max=100"`
	Bio             *string  `json:"bio,omitempty" validate:"omitempty,max=1000"`
	Location        *string  `json:"location,omitempty" validate:"omitempty,max=100"`
	Website         *string  `json:"website,omitempty" validate:"omitempty,url,max=200"`
	Phone           *string  `json:"phone,omitempty" validate:"omitempty,max=32"`
	CompanyName     *string  `json:"company_name,omitempty" validate:"omitempty,max=100"`
	CompanyIndustry *string  `json:"company_industry,omitempty" validate:"omitempty,max=100"`
	HourlyRate      *float64 `json:"hourly_rate,omitempty" validate:"omitempty,gte=0,lte=10000"`
}

// Get returns the signed-in user's profile
// @Summary Get current profile
// @Produce json
// @Success 200 {object} models.Profile
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /profile [get]
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	clientID, ok := auth.GetClientCookie(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	state := h.sessions.Get(clientID).State()
	if !state.User.Authenticated() {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}
	if state.Profile == nil {
		pkghttp.WriteNotFound(w, "Profile not found")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, state.Profile)
}

// Update applies a partial update to the signed-in user's profile
// @Summary Update current profile
// @Accept json
// @Param request body UpdateProfileRequest true "Profile patch"
// @Produce json
// @Success 200 {object} models.Profile
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /profile [patch]
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	clientID, ok := auth.GetClientCookie(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	patch := buildPatch(req)
	if len(patch) == 0 {
		pkghttp.WriteBadRequest(w, "No fields to update")
		return
	}

	mgr := h.sessions.Get(clientID)
	if err := mgr.UpdateProfile(r.Context(), patch); err != nil {
		switch models.KindOf(err) {
		case models.ErrKindUnauthenticated:
			pkghttp.WriteUnauthorized(w, "unauthorized")
		case models.ErrKindValidation:
			pkghttp.WriteBadRequest(w, describeMessage(err))
		case models.ErrKindNetwork:
			pkghttp.WriteServiceUnavailable(w, "Profile service is unreachable. Please try again.")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, mgr.State().Profile)
}

// buildPatch converts the set fields of req into document patch keys.
func buildPatch(req UpdateProfileRequest) map[string]any {
	patch := make(map[string]any)
	if req.FullName != nil {
		patch["full_name"] = *req.FullName
	}
	if req.Bio != nil {
		patch["bio"] = *req.Bio
	}
	if req.Location != nil {
		patch["location"] = *req.Location
	}
	if req.Website != nil {
		patch["website"] = *req.Website
	}
	if req.Phone != nil {
		patch["phone"] = *req.Phone
	}
	if req.CompanyName != nil {
		patch["company_name"] = *req.CompanyName
	}
	if req.CompanyIndustry != nil {
		patch["company_industry"] = *req.CompanyIndustry
	}
	if req.HourlyRate != nil {
		patch["hourly_rate"] = *req.HourlyRate
	}
	return patch
}
