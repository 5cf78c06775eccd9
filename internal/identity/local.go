package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/boltforge/authgate/internal/auth"
	"github.com/boltforge/authgate/internal/models"
	pkgauth "github.com/boltforge/authgate/pkg/auth"
)

// AccountRepository defines the storage surface the local provider needs.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
}

// RevocationRepository tracks invalidated session tokens by JTI.
type RevocationRepository interface {
	Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// LocalProvider is the self-hosted identity provider used by deployments
// that migrated off the hosted BaaS. Accounts live in Postgres, sessions are
// signed JWTs, and sign-out is backed by a revocation list.
type LocalProvider struct {
	accounts AccountRepository
	revoked  RevocationRepository
	tokens   *auth.TokenManager
	logger   *slog.Logger
}

// NewLocalProvider creates a LocalProvider.
func NewLocalProvider(accounts AccountRepository, revoked RevocationRepository, tokens *auth.TokenManager, logger *slog.Logger) *LocalProvider {
	return &LocalProvider{
		accounts: accounts,
		revoked:  revoked,
		tokens:   tokens,
		logger:   logger,
	}
}

func (p *LocalProvider) WhoAmI(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, models.NewProviderError(models.ErrKindUnauthenticated, 0, "no session", models.ErrNoActiveSession)
	}

	claims, err := p.tokens.ValidateToken(token)
	if err != nil {
		return nil, models.NewProviderError(models.ErrKindUnauthenticated, 0, "invalid session", err)
	}

	revoked, err := p.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		p.logger.Error("revocation check failed", slog.Any("error", err))
		return nil, models.NewProviderError(models.ErrKindServer, 0, "revocation check failed", err)
	}
	if revoked {
		return nil, models.NewProviderError(models.ErrKindUnauthenticated, 0, "session revoked", nil)
	}

	account, err := p.accounts.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewProviderError(models.ErrKindUnauthenticated, 0, "account no longer exists", err)
		}
		return nil, models.NewProviderError(models.ErrKindServer, 0, "account lookup failed", err)
	}

	return accountToSession(account), nil
}

func (p *LocalProvider) CreateSession(ctx context.Context, identifier, password string) (string, *models.Session, error) {
	account, err := p.accounts.GetByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Same error shape as a bad password, to prevent enumeration.
			return "", nil, models.NewProviderError(models.ErrKindCredentials, 0, "invalid credentials", nil)
		}
		return "", nil, models.NewProviderError(models.ErrKindServer, 0, "account lookup failed", err)
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		p.logger.Info("sign-in failed: invalid credentials")
		return "", nil, models.NewProviderError(models.ErrKindCredentials, 0, "invalid credentials", nil)
	}

	token, err := p.tokens.GenerateSessionToken(account.ID, account.Email, account.DisplayName)
	if err != nil {
		p.logger.Error("failed to generate session token", slog.String("user_id", account.ID), slog.Any("error", err))
		return "", nil, models.NewProviderError(models.ErrKindServer, 0, "token generation failed", err)
	}

	return token, accountToSession(account), nil
}

func (p *LocalProvider) CreateAccount(ctx context.Context, email, password, displayName string) (string, error) {
	if err := pkgauth.ValidatePassword(password); err != nil {
		return "", models.NewProviderError(models.ErrKindValidation, 0, err.Error(), err)
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return "", models.NewProviderError(models.ErrKindServer, 0, "password hashing failed", err)
	}

	account, err := p.accounts.Create(ctx, &models.Account{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return "", models.NewProviderError(models.ErrKindConflict, 0, "account already exists", err)
		}
		return "", models.NewProviderError(models.ErrKindServer, 0, "account creation failed", err)
	}

	p.logger.Info("account created", slog.String("user_id", account.ID))
	return account.ID, nil
}

func (p *LocalProvider) DeleteSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	claims, err := p.tokens.ValidateToken(token)
	if err != nil {
		// Already invalid; treat as deleted.
		return nil
	}

	if err := p.revoked.Revoke(ctx, claims.ID, claims.UserID, claims.ExpiresAt.Time); err != nil {
		p.logger.Error("failed to revoke session", slog.String("jti", claims.ID), slog.Any("error", err))
		return models.NewProviderError(models.ErrKindServer, 0, "revocation failed", err)
	}
	return nil
}

func (p *LocalProvider) OAuthRedirectURL(provider, successURL, failureURL string) (string, error) {
	return "", models.NewProviderError(models.ErrKindOAuth, 0,
		"oauth sign-in requires the hosted identity provider", nil)
}

func accountToSession(a *models.Account) *models.Session {
	return &models.Session{
		UserID:      a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		CreatedAt:   a.CreatedAt,
	}
}
