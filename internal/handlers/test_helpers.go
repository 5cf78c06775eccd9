package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/boltforge/authgate/internal/auth"
	"github.com/boltforge/authgate/internal/models"
	"github.com/boltforge/authgate/internal/ratelimit"
	"github.com/boltforge/authgate/internal/session"
	pkghttp "github.com/boltforge/authgate/pkg/http"
	pkglogger "github.com/boltforge/authgate/pkg/logger"
)

// fakeIdentity is a scriptable identity provider shared by handler tests.
type fakeIdentity struct {
	mu sync.Mutex

	password string // accepted password; anything else is a credential reject
	user     *models.Session
	fail     error // when set, every call fails with this

	createSessionCalls int
}

func (f *fakeIdentity) WhoAmI(ctx context.Context, token string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	if token == "" {
		return nil, models.NewProviderError(models.ErrKindUnauthenticated, 0, "no session", models.ErrNoActiveSession)
	}
	return f.user, nil
}

func (f *fakeIdentity) CreateSession(ctx context.Context, identifier, password string) (string, *models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createSessionCalls++
	if f.fail != nil {
		return "", nil, f.fail
	}
	if password != f.password {
		return "", nil, models.NewProviderError(models.ErrKindCredentials, 401, "invalid credentials", nil)
	}
	return "tok-1", f.user, nil
}

func (f *fakeIdentity) CreateAccount(ctx context.Context, email, password, displayName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return "", f.fail
	}
	// The new account's password becomes the accepted one.
	f.password = password
	return f.user.UserID, nil
}

func (f *fakeIdentity) DeleteSession(ctx context.Context, token string) error {
	return nil
}

func (f *fakeIdentity) OAuthRedirectURL(provider, successURL, failureURL string) (string, error) {
	if provider != "github" && provider != "google" && provider != "gitlab" {
		return "", models.NewProviderError(models.ErrKindOAuth, 0, "unsupported oauth provider", nil)
	}
	return "https://provider.example.com/oauth/" + provider, nil
}

// fakeProfileRepo is an in-memory session.ProfileRepository.
type fakeProfileRepo struct {
	mu     sync.Mutex
	byUser map[string]*models.Profile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{byUser: make(map[string]*models.Profile)}
}

func (f *fakeProfileRepo) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byUser[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return p, nil
}

func (f *fakeProfileRepo) Create(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byUser[profile.UserID]; exists {
		return nil, models.NewProviderError(models.ErrKindConflict, 409, "document already exists", models.ErrConflict)
	}
	profile.ID = "doc-" + profile.UserID
	f.byUser[profile.UserID] = profile
	return profile, nil
}

func (f *fakeProfileRepo) Update(ctx context.Context, profile *models.Profile, patch map[string]any) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	updated := *profile
	if v, ok := patch["bio"].(string); ok {
		updated.Bio = v
	}
	if v, ok := patch["full_name"].(string); ok {
		updated.FullName = v
	}
	f.byUser[profile.UserID] = &updated
	return &updated, nil
}

// testEnv wires handlers against fakes with a controllable rate-limit clock.
type testEnv struct {
	identity *fakeIdentity
	profiles *fakeProfileRepo
	auth     *AuthHandler
	profile  *ProfileHandler

	clockMu sync.Mutex
	now     time.Time
}

func (e *testEnv) advance(d time.Duration) {
	e.clockMu.Lock()
	defer e.clockMu.Unlock()
	e.now = e.now.Add(d)
}

func newTestEnv() *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	audit := pkglogger.NewAuditLogger(logger)

	env := &testEnv{
		identity: &fakeIdentity{
			password: "correct-horse",
			user:     &models.Session{UserID: "user-1", Email: "dev@example.com", DisplayName: "Dev One"},
		},
		profiles: newFakeProfileRepo(),
		now:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	cfg := session.Config{
		Retry:           session.RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond},
		OAuthSuccessURL: "http://localhost:5173/",
		OAuthFailureURL: "http://localhost:5173/?error=oauth_failed",
	}
	sessions := session.NewRegistry(func() *session.Manager {
		return session.NewManager(session.NewStore(), env.identity, env.profiles, cfg, logger, audit)
	})

	limits := ratelimit.NewRegistryWithClock(ratelimit.DefaultConfig(), func() time.Time {
		env.clockMu.Lock()
		defer env.clockMu.Unlock()
		return env.now
	})

	cookies := auth.CookieConfig{SameSite: "lax", MaxAge: time.Hour}
	env.auth = NewAuthHandler(sessions, limits, audit, &pkghttp.IPConfig{}, cookies)
	env.profile = NewProfileHandler(sessions)
	return env
}

// doRequest runs handler and carries cookies forward from prior responses.
func doRequest(handler http.HandlerFunc, method, target, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.RemoteAddr = "203.0.113.10:52000"
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}
