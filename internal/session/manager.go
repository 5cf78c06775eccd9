package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/boltforge/authgate/internal/identity"
	"github.com/boltforge/authgate/internal/models"
	pkglogger "github.com/boltforge/authgate/pkg/logger"
)

// ProfileRepository is the profile surface the manager needs.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile, patch map[string]any) (*models.Profile, error)
}

// Config carries the manager's tunables.
type Config struct {
	Retry           RetryPolicy
	OAuthSuccessURL string
	OAuthFailureURL string
}

// Manager drives the session lifecycle for one browser client. Operations
// are serialized through a single mutex: the store never sees two operations
// interleave, so the last write of each operation wins cleanly.
type Manager struct {
	mu       sync.Mutex
	store    *Store
	provider identity.Provider
	profiles ProfileRepository
	cfg      Config
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger

	// token is the opaque provider session handle for this client. Not part
	// of AuthState; it never leaves the gateway.
	token string
}

// NewManager creates a Manager bound to store.
func NewManager(store *Store, provider identity.Provider, profiles ProfileRepository, cfg Config, logger *slog.Logger, audit *pkglogger.AuditLogger) *Manager {
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &Manager{
		store:    store,
		provider: provider,
		profiles: profiles,
		cfg:      cfg,
		logger:   logger,
		audit:    audit,
	}
}

// Store returns the manager's state store.
func (m *Manager) Store() *Store {
	return m.store
}

// State returns the current AuthState snapshot.
func (m *Manager) State() models.AuthState {
	return m.store.State()
}

// Initialize resolves any previously established session at client start.
// Failures are absorbed into AuthState rather than returned: there is no
// caller to react to them. IsInitialized is set exactly once, whatever the
// outcome, so the UI knows the first resolution attempt has finished.
func (m *Manager) Initialize(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resolveSession(ctx)
	m.store.markInitialized()
}

// Refresh re-runs session resolution for manual recovery from an error
// state. Unlike Initialize it never touches IsInitialized.
func (m *Manager) Refresh(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resolveSession(ctx)
}

// resolveSession asks the provider who the client is and reconciles the
// store with the answer. A network failure after exhausted retries must not
// sign the user out: the previous user and profile are preserved.
func (m *Manager) resolveSession(ctx context.Context) {
	m.store.update(func(st *models.AuthState) {
		st.IsLoading = true
		st.Err = nil
	})

	user, err := retryNetwork(ctx, m.cfg.Retry, func(ctx context.Context) (*models.Session, error) {
		return m.provider.WhoAmI(ctx, m.token)
	})
	if err != nil {
		switch models.KindOf(err) {
		case models.ErrKindUnauthenticated:
			// Expected terminal state, not an error.
			m.token = ""
			m.store.update(func(st *models.AuthState) {
				st.User = nil
				st.Profile = nil
				st.IsLoading = false
				st.Err = nil
			})
		case models.ErrKindNetwork:
			m.logger.Warn("session check failed after retries, retaining state", slog.Any("error", err))
			m.store.update(func(st *models.AuthState) {
				st.IsLoading = false
				st.Err = models.DescribeError(err)
			})
		default:
			m.logger.Error("session check failed", slog.Any("error", err))
			m.store.update(func(st *models.AuthState) {
				st.IsLoading = false
				st.Err = models.DescribeError(err)
			})
		}
		return
	}

	m.store.update(func(st *models.AuthState) {
		st.User = user
	})
	// Bootstrap failures are already recorded on the state; during
	// resolution there is no caller to propagate them to.
	_ = m.loadOrCreateProfile(ctx, user)
}

// loadOrCreateProfile guarantees the signed-in user has a reachable profile:
// fetch it, or create the minimal default when missing. A conflict on create
// means another bootstrap won the race; the existing document is fetched and
// used, so the one-profile-per-user invariant holds either way. Failures set
// the state error but never clear an already established user.
func (m *Manager) loadOrCreateProfile(ctx context.Context, user *models.Session) error {
	// Defensive re-check that the session is still live before a possible write.
	if _, err := retryNetwork(ctx, m.cfg.Retry, func(ctx context.Context) (*models.Session, error) {
		return m.provider.WhoAmI(ctx, m.token)
	}); err != nil {
		return m.failProfileLoad(err)
	}

	profile, err := m.profiles.GetByUserID(ctx, user.UserID)
	if err == nil {
		m.store.update(func(st *models.AuthState) {
			st.Profile = profile
			st.IsLoading = false
		})
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return m.failProfileLoad(err)
	}

	created, err := m.profiles.Create(ctx, models.DefaultProfile(user.UserID, user.DisplayName))
	if err != nil {
		if models.KindOf(err) == models.ErrKindConflict {
			existing, getErr := m.profiles.GetByUserID(ctx, user.UserID)
			if getErr != nil {
				return m.failProfileLoad(getErr)
			}
			created = existing
		} else {
			return m.failProfileLoad(err)
		}
	} else {
		m.logger.Info("profile auto-created", slog.String("user_id", user.UserID))
	}

	m.store.update(func(st *models.AuthState) {
		st.Profile = created
		st.IsLoading = false
	})
	return nil
}

func (m *Manager) failProfileLoad(err error) error {
	m.logger.Error("profile load failed", slog.Any("error", err))
	m.store.update(func(st *models.AuthState) {
		st.Err = models.DescribeError(err)
		st.IsLoading = false
	})
	return err
}

// SignIn exchanges credentials for a session. The create-session call is
// never retried: a credential rejection has to surface immediately so the
// caller can record the attempt against the rate limiter.
func (m *Manager) SignIn(ctx context.Context, creds models.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store.update(func(st *models.AuthState) {
		st.IsLoading = true
		st.Err = nil
	})

	// Best-effort clear of any stale prior session.
	if m.token != "" {
		if err := m.provider.DeleteSession(ctx, m.token); err != nil {
			m.logger.Warn("could not delete stale session", slog.Any("error", err))
		}
		m.token = ""
	}

	token, user, err := m.provider.CreateSession(ctx, creds.Identifier, creds.Password)
	if err != nil {
		m.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "sign_in_failed",
			FailureReason: string(models.KindOf(err)),
		})
		m.store.update(func(st *models.AuthState) {
			st.Err = models.DescribeError(err)
			st.IsLoading = false
		})
		return err
	}

	m.token = token
	m.store.update(func(st *models.AuthState) {
		st.User = user
	})

	m.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "sign_in_success",
		UserID:    user.UserID,
		Success:   true,
	})

	return m.loadOrCreateProfile(ctx, user)
}

// SignUp registers a new account, establishes its first session and creates
// the profile from the registration payload.
func (m *Manager) SignUp(ctx context.Context, reg models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store.update(func(st *models.AuthState) {
		st.IsLoading = true
		st.Err = nil
	})

	if _, err := m.provider.CreateAccount(ctx, reg.Email, reg.Password, reg.FullName); err != nil {
		return m.failAction("sign_up_failed", err)
	}

	if m.token != "" {
		if err := m.provider.DeleteSession(ctx, m.token); err != nil {
			m.logger.Warn("could not delete stale session", slog.Any("error", err))
		}
		m.token = ""
	}

	token, user, err := m.provider.CreateSession(ctx, reg.Email, reg.Password)
	if err != nil {
		return m.failAction("sign_up_failed", err)
	}
	m.token = token
	m.store.update(func(st *models.AuthState) {
		st.User = user
	})

	profile := &models.Profile{
		UserID:      user.UserID,
		UserType:    reg.UserType,
		FullName:    reg.FullName,
		CompanyName: reg.CompanyName,
		Location:    reg.Location,
		Phone:       reg.Phone,
	}
	if profile.FullName == "" {
		profile.FullName = "New User"
	}
	if profile.UserType == "" {
		profile.UserType = models.UserTypeDeveloper
	}

	created, err := m.profiles.Create(ctx, profile)
	if err != nil {
		if models.KindOf(err) == models.ErrKindConflict {
			created, err = m.profiles.GetByUserID(ctx, user.UserID)
		}
		if err != nil {
			return m.failAction("sign_up_failed", err)
		}
	}

	m.store.update(func(st *models.AuthState) {
		st.Profile = created
		st.IsLoading = false
		st.Err = nil
	})

	m.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "sign_up_success",
		UserID:    user.UserID,
		Success:   true,
	})
	return nil
}

// SignOut tears the session down. It never fails from the caller's point of
// view: the remote delete is best-effort, and local state is always cleared
// so the client cannot be stranded looking signed in.
func (m *Manager) SignOut(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" {
		if err := m.provider.DeleteSession(ctx, m.token); err != nil {
			m.logger.Warn("remote sign-out failed, clearing local state anyway", slog.Any("error", err))
		}
	}
	m.token = ""

	m.store.update(func(st *models.AuthState) {
		st.User = nil
		st.Profile = nil
		st.IsLoading = false
		st.Err = nil
	})

	m.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "sign_out",
		Success:   true,
	})
}

// UpdateProfile applies a partial patch to the signed-in user's profile.
func (m *Manager) UpdateProfile(ctx context.Context, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.store.State()
	if !st.User.Authenticated() || st.Profile == nil {
		return models.ErrUnauthenticated
	}

	m.store.update(func(st *models.AuthState) {
		st.IsLoading = true
		st.Err = nil
	})

	updated, err := m.profiles.Update(ctx, st.Profile, patch)
	if err != nil {
		return m.failAction("profile_update_failed", err)
	}

	m.store.update(func(st *models.AuthState) {
		st.Profile = updated
		st.IsLoading = false
	})
	return nil
}

// BeginOAuth returns the redirect URL that starts a third-party sign-in
// flow. The flow resolves when the browser comes back and the client
// initializes again.
func (m *Manager) BeginOAuth(provider string) (string, error) {
	url, err := m.provider.OAuthRedirectURL(provider, m.cfg.OAuthSuccessURL, m.cfg.OAuthFailureURL)
	if err != nil {
		m.store.update(func(st *models.AuthState) {
			st.Err = models.DescribeError(err)
		})
		return "", err
	}
	return url, nil
}

// ClearError drops the current error without touching the rest of the state.
func (m *Manager) ClearError() {
	m.store.update(func(st *models.AuthState) {
		st.Err = nil
	})
}

// failAction records err on the state and returns it to the caller, so UI
// forms can react without depending on store-subscription timing.
func (m *Manager) failAction(event string, err error) error {
	m.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     event,
		FailureReason: string(models.KindOf(err)),
	})
	m.store.update(func(st *models.AuthState) {
		st.Err = models.DescribeError(err)
		st.IsLoading = false
	})
	return err
}
