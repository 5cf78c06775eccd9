package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/boltforge/authgate/internal/auth"
	"github.com/boltforge/authgate/internal/models"
	"github.com/boltforge/authgate/internal/ratelimit"
	"github.com/boltforge/authgate/internal/session"
	pkghttp "github.com/boltforge/authgate/pkg/http"
	pkglogger "github.com/boltforge/authgate/pkg/logger"
)

// AuthHandler terminates the browser-facing auth endpoints. Each browser
// client is pinned to its own session manager via the client cookie; the
// sign-in rate limiter is keyed by client IP instead, so clearing cookies
// does not reset a lockout.
type AuthHandler struct {
	sessions *session.Registry
	limits   *ratelimit.Registry
	audit    *pkglogger.AuditLogger
	ipConfig *pkghttp.IPConfig
	cookies  auth.CookieConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(sessions *session.Registry, limits *ratelimit.Registry, audit *pkglogger.AuditLogger, ipConfig *pkghttp.IPConfig, cookies auth.CookieConfig) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		limits:   limits,
		audit:    audit,
		ipConfig: ipConfig,
		cookies:  cookies,
	}
}

// Request DTOs

// SignInRequest represents the request body for sign-in
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignUpRequest represents the request body for sign-up
type SignUpRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	FullName    string `json:"full_name" validate:"required,min=1,max=100"`
	UserType    string `json:"user_type" validate:"required,oneof=developer company"`
	CompanyName string `json:"company_name,omitempty" validate:"omitempty,max=100"`
	Location    string `json:"location,omitempty" validate:"omitempty,max=100"`
	Phone       string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// resolveManager returns the session manager for the requesting browser
// client, minting the client cookie on first contact.
func (h *AuthHandler) resolveManager(w http.ResponseWriter, r *http.Request) *session.Manager {
	clientID, ok := auth.GetClientCookie(r)
	if !ok || uuid.Validate(clientID) != nil {
		clientID = uuid.NewString()
		auth.SetClientCookie(w, clientID, h.cookies)
	}
	return h.sessions.Get(clientID)
}

// SignIn handles password sign-in
// @Summary Sign in with email and password
// @Accept json
// @Param request body SignInRequest true "Sign-in request"
// @Produce json
// @Success 200 {object} models.AuthState
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 429 {object} pkghttp.ErrorResponse
// @Router /auth/signin [post]
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	// The lockout gate comes before any provider call. A blocked client
	// never reaches the identity provider, and the rejected request does
	// not extend the lockout.
	clientIP := pkghttp.ExtractClientIP(r, h.ipConfig)
	limiter := h.limits.Get(clientIP)
	if !limiter.CanAttempt() {
		remaining := limiter.RemainingTime()
		h.audit.LogRateLimitHit(clientIP, remaining)
		pkghttp.WriteRateLimited(w, "Too many failed sign-in attempts. Please try again later.", pkghttp.RateLimitInfo{
			RetryAfterSeconds: remaining,
			AttemptsRemaining: 0,
		})
		return
	}

	mgr := h.resolveManager(w, r)
	err := mgr.SignIn(r.Context(), models.Credentials{
		Identifier: req.Email,
		Password:   req.Password,
	})
	if err != nil {
		switch models.KindOf(err) {
		case models.ErrKindCredentials, models.ErrKindUnauthenticated:
			// Only rejected credentials count toward the lockout. Outages
			// and server faults are not the client's doing.
			if !limiter.RecordAttempt() {
				remaining := limiter.RemainingTime()
				h.audit.LogRateLimitHit(clientIP, remaining)
				pkghttp.WriteRateLimited(w, "Too many failed sign-in attempts. Please try again later.", pkghttp.RateLimitInfo{
					RetryAfterSeconds: remaining,
					AttemptsRemaining: 0,
				})
				return
			}
			pkghttp.WriteUnauthorized(w, "Invalid email or password.")
		case models.ErrKindNetwork:
			pkghttp.WriteServiceUnavailable(w, "Authentication service is unreachable. Please try again.")
		case models.ErrKindValidation:
			pkghttp.WriteBadRequest(w, describeMessage(err))
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	limiter.Reset()
	pkghttp.WriteJSON(w, http.StatusOK, mgr.State())
}

// SignUp handles account registration
// @Summary Register a new account
// @Accept json
// @Param request body SignUpRequest true "Sign-up request"
// @Produce json
// @Success 201 {object} models.AuthState
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Router /auth/signup [post]
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)

	mgr := h.resolveManager(w, r)
	err := mgr.SignUp(r.Context(), models.Registration{
		Email:       req.Email,
		Password:    req.Password,
		FullName:    req.FullName,
		UserType:    models.UserType(req.UserType),
		CompanyName: strings.TrimSpace(req.CompanyName),
		Location:    strings.TrimSpace(req.Location),
		Phone:       strings.TrimSpace(req.Phone),
	})
	if err != nil {
		switch models.KindOf(err) {
		case models.ErrKindConflict:
			pkghttp.WriteConflict(w, "An account with this email already exists.")
		case models.ErrKindValidation:
			pkghttp.WriteBadRequest(w, describeMessage(err))
		case models.ErrKindNetwork:
			pkghttp.WriteServiceUnavailable(w, "Authentication service is unreachable. Please try again.")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, mgr.State())
}

// SignOut handles sign-out
// @Summary Sign out the current session
// @Produce json
// @Success 200 {object} models.AuthState
// @Router /auth/signout [post]
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	clientID, ok := auth.GetClientCookie(r)
	if !ok {
		// Signing out without a session is a no-op, not an error.
		pkghttp.WriteJSON(w, http.StatusOK, models.AuthState{IsInitialized: true})
		return
	}

	mgr := h.sessions.Get(clientID)
	mgr.SignOut(r.Context())
	state := mgr.State()

	h.sessions.Drop(clientID)
	auth.ClearClientCookie(w, h.cookies)

	pkghttp.WriteJSON(w, http.StatusOK, state)
}

// Session returns the client's current auth state, resolving any existing
// provider session on the client's first contact with the gateway.
// @Summary Get current session state
// @Produce json
// @Success 200 {object} models.AuthState
// @Router /auth/session [get]
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	mgr := h.resolveManager(w, r)
	if !mgr.State().IsInitialized {
		mgr.Initialize(r.Context())
	}
	pkghttp.WriteJSON(w, http.StatusOK, mgr.State())
}

// Refresh re-resolves the session against the provider, for manual recovery
// from an error state.
// @Summary Re-check the session with the identity provider
// @Produce json
// @Success 200 {object} models.AuthState
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	mgr := h.resolveManager(w, r)
	mgr.Refresh(r.Context())
	pkghttp.WriteJSON(w, http.StatusOK, mgr.State())
}

// ClearError drops the sticky error from the client's auth state.
// @Summary Clear the current auth error
// @Produce json
// @Success 200 {object} models.AuthState
// @Router /auth/error [delete]
func (h *AuthHandler) ClearError(w http.ResponseWriter, r *http.Request) {
	mgr := h.resolveManager(w, r)
	mgr.ClearError()
	pkghttp.WriteJSON(w, http.StatusOK, mgr.State())
}

// OAuth redirects the browser into a third-party sign-in flow.
// @Summary Begin an OAuth sign-in flow
// @Param provider path string true "OAuth provider" Enums(github, google, gitlab)
// @Success 302
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /auth/oauth/{provider} [get]
func (h *AuthHandler) OAuth(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	mgr := h.resolveManager(w, r)
	redirectURL, err := mgr.BeginOAuth(provider)
	if err != nil {
		pkghttp.WriteBadRequest(w, describeMessage(err))
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// describeMessage returns the user-facing message for err.
func describeMessage(err error) string {
	if desc := models.DescribeError(err); desc != nil {
		return desc.Message
	}
	return "Internal server error"
}
