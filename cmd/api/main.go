package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/boltforge/authgate/internal/auth"
	"github.com/boltforge/authgate/internal/background"
	"github.com/boltforge/authgate/internal/config"
	"github.com/boltforge/authgate/internal/database"
	"github.com/boltforge/authgate/internal/docstore"
	"github.com/boltforge/authgate/internal/handlers"
	"github.com/boltforge/authgate/internal/identity"
	middlewareCustom "github.com/boltforge/authgate/internal/middleware"
	"github.com/boltforge/authgate/internal/ratelimit"
	"github.com/boltforge/authgate/internal/repositories"
	"github.com/boltforge/authgate/internal/routes"
	"github.com/boltforge/authgate/internal/session"
	pkghttp "github.com/boltforge/authgate/pkg/http"
	pkglogger "github.com/boltforge/authgate/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("identity_backend", cfg.Auth.IdentityBackend),
		slog.String("document_backend", cfg.Auth.DocumentBackend),
	)

	// Postgres is only dialed when one of the backends is local
	var db *database.DB
	if cfg.Auth.IdentityBackend == config.BackendLocal || cfg.Auth.DocumentBackend == config.BackendLocal {
		db, err = database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
	}

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Identity provider
	var provider identity.Provider
	var revokeRepo *repositories.RevocationRepository
	switch cfg.Auth.IdentityBackend {
	case config.BackendLocal:
		accountRepo := repositories.NewAccountRepository(db)
		revokeRepo = repositories.NewRevocationRepository(db)
		tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionExpiry)
		provider = identity.NewLocalProvider(accountRepo, revokeRepo, tokenManager, logger)
	default:
		provider = identity.NewAppwriteProvider(identity.AppwriteConfig{
			Endpoint:  cfg.Appwrite.Endpoint,
			ProjectID: cfg.Appwrite.ProjectID,
		}, logger)
	}

	// Profile document store
	var store docstore.Store
	switch cfg.Auth.DocumentBackend {
	case config.BackendLocal:
		store = docstore.NewPostgresStore(db)
	default:
		store = docstore.NewAppwriteStore(docstore.AppwriteConfig{
			Endpoint:   cfg.Appwrite.Endpoint,
			ProjectID:  cfg.Appwrite.ProjectID,
			APIKey:     cfg.Appwrite.APIKey,
			DatabaseID: cfg.Appwrite.DatabaseID,
		}, logger)
	}

	profileRepo := repositories.NewProfileRepository(store, cfg.Auth.ProfileCacheTTL, logger)

	// One session manager per browser client, built on demand
	managerCfg := session.Config{
		Retry: session.RetryPolicy{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
		},
		OAuthSuccessURL: cfg.Auth.OAuthSuccessURL,
		OAuthFailureURL: cfg.Auth.OAuthFailureURL,
	}
	sessionRegistry := session.NewRegistry(func() *session.Manager {
		return session.NewManager(session.NewStore(), provider, profileRepo, managerCfg, logger, auditLogger)
	})

	limitRegistry := ratelimit.NewRegistry(ratelimit.Config{
		MaxAttempts:   cfg.RateLimit.MaxAttempts,
		Window:        cfg.RateLimit.Window,
		BlockDuration: cfg.RateLimit.BlockDuration,
	})

	// Initialize cleanup manager. revokeRepo is nil on the hosted backend,
	// which disables the revocation sweep.
	var revocationCleaner background.RevocationCleaner
	if revokeRepo != nil {
		revocationCleaner = revokeRepo
	}
	cleanupManager := background.NewCleanupManager(
		sessionRegistry,
		limitRegistry,
		profileRepo.Cache(),
		revocationCleaner,
		logger,
		cfg.Auth.CleanupInterval,
		cfg.Auth.ClientCookieAge,
		cfg.RateLimit.ClientIdleTTL,
	)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	cookieConfig := auth.CookieConfig{
		Secure:   cfg.Server.Env == "production",
		SameSite: "lax",
		MaxAge:   cfg.Auth.ClientCookieAge,
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(sessionRegistry, limitRegistry, auditLogger, ipConfig, cookieConfig)
	profileHandler := handlers.NewProfileHandler(sessionRegistry)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(middlewareCustom.RateLimitByIP(middlewareCustom.DefaultAPIRateLimit()))

	// Register routes
	routes.RegisterRoutes(router, authHandler, profileHandler)

	// Health check reports the backing stores this deployment actually uses
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.HealthCheck(ctx); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
				return
			}
		}
		if err := store.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","docstore":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
