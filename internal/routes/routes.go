package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/boltforge/authgate/internal/handlers"
	"github.com/boltforge/authgate/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	profileHandler *handlers.ProfileHandler,
) {
	authRateLimit := middleware.DefaultAuthRateLimit()

	// Credential endpoints get the tight per-IP request throttle on top of
	// the sign-in lockout enforced inside the handler.
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(authRateLimit))

		r.Post("/auth/signin", authHandler.SignIn)
		r.Post("/auth/signup", authHandler.SignUp)
	})

	router.Post("/auth/signout", authHandler.SignOut)
	router.Get("/auth/session", authHandler.Session)
	router.Post("/auth/refresh", authHandler.Refresh)
	router.Delete("/auth/error", authHandler.ClearError)
	router.Get("/auth/oauth/{provider}", authHandler.OAuth)

	router.Get("/profile", profileHandler.Get)
	router.Patch("/profile", profileHandler.Update)
}
