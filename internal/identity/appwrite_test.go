package identity

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boltforge/authgate/internal/models"
)

func newTestProvider(t *testing.T, handler http.Handler) *AppwriteProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAppwriteProvider(AppwriteConfig{
		Endpoint:  srv.URL,
		ProjectID: "boltforge-test",
	}, logger)
}

func TestWhoAmI_EmptyTokenShortCircuits(t *testing.T) {
	called := false
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	_, err := provider.WhoAmI(context.Background(), "")

	require.Error(t, err)
	assert.Equal(t, models.ErrKindUnauthenticated, models.KindOf(err))
	assert.False(t, called, "an absent token must not produce a provider call")
}

func TestWhoAmI_ForwardsSessionHeader(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sess-token", r.Header.Get("X-Appwrite-Session"))
		assert.Equal(t, "boltforge-test", r.Header.Get("X-Appwrite-Project"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"$id":"user-1","email":"dev@example.com","name":"Dev One","$createdAt":"2026-08-01T12:00:00Z"}`))
	}))

	user, err := provider.WhoAmI(context.Background(), "sess-token")

	require.NoError(t, err)
	assert.Equal(t, "user-1", user.UserID)
	assert.Equal(t, "dev@example.com", user.Email)
	assert.Equal(t, "Dev One", user.DisplayName)
	assert.Equal(t, 2026, user.CreatedAt.Year())
}

func TestWhoAmI_ExpiredSessionIsUnauthenticated(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"User (role: guests) missing scope (account)","code":401,"type":"general_unauthorized_scope"}`))
	}))

	_, err := provider.WhoAmI(context.Background(), "stale-token")

	require.Error(t, err)
	assert.Equal(t, models.ErrKindUnauthenticated, models.KindOf(err))
}

func TestCreateSession_BadPasswordIsCredentialsKind(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid credentials","code":401,"type":"user_invalid_credentials"}`))
	}))

	_, _, err := provider.CreateSession(context.Background(), "dev@example.com", "wrong")

	require.Error(t, err)
	assert.Equal(t, models.ErrKindCredentials, models.KindOf(err))
}

func TestCreateSession_BadPasswordAs400IsStillCredentialsKind(t *testing.T) {
	// Newer API versions reject bad passwords with 400 and a typed payload.
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Invalid credentials","code":400,"type":"user_invalid_credentials"}`))
	}))

	_, _, err := provider.CreateSession(context.Background(), "dev@example.com", "wrong")

	require.Error(t, err)
	assert.Equal(t, models.ErrKindCredentials, models.KindOf(err))
}

func TestCreateSession_SuccessReturnsSecretAndUser(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/account/sessions/email":
			w.Write([]byte(`{"$id":"sess-1","userId":"user-1","secret":"sess-secret"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/account":
			assert.Equal(t, "sess-secret", r.Header.Get("X-Appwrite-Session"))
			w.Write([]byte(`{"$id":"user-1","email":"dev@example.com","name":"Dev One","$createdAt":"2026-08-01T12:00:00Z"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	token, user, err := provider.CreateSession(context.Background(), "dev@example.com", "pw")

	require.NoError(t, err)
	assert.Equal(t, "sess-secret", token)
	assert.Equal(t, "user-1", user.UserID)
}

func TestCreateAccount_DuplicateEmailIsConflictKind(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"A user with the same email already exists","code":409,"type":"user_already_exists"}`))
	}))

	_, err := provider.CreateAccount(context.Background(), "dev@example.com", "pw", "Dev One")

	require.Error(t, err)
	assert.Equal(t, models.ErrKindConflict, models.KindOf(err))
}

func TestCreateAccount_WeakPasswordIsValidationKind(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Password must be between 8 and 256 characters","code":400,"type":"general_argument_invalid"}`))
	}))

	_, err := provider.CreateAccount(context.Background(), "dev@example.com", "short", "Dev One")

	require.Error(t, err)
	assert.Equal(t, models.ErrKindValidation, models.KindOf(err))
}

func TestDeleteSession_AlreadyGoneIsNotAnError(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"missing scope","code":401,"type":"general_unauthorized_scope"}`))
	}))

	err := provider.DeleteSession(context.Background(), "stale-token")

	assert.NoError(t, err)
}

func TestDeleteSession_EmptyTokenIsNoOp(t *testing.T) {
	called := false
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	err := provider.DeleteSession(context.Background(), "")

	assert.NoError(t, err)
	assert.False(t, called)
}

func TestServerErrorIsServerKind(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := provider.WhoAmI(context.Background(), "tok")

	require.Error(t, err)
	assert.Equal(t, models.ErrKindServer, models.KindOf(err))
	assert.False(t, models.IsNetworkError(err), "a 5xx is not retry-eligible")
}

func TestUnreachableProviderIsNetworkKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := NewAppwriteProvider(AppwriteConfig{Endpoint: srv.URL, ProjectID: "p"}, logger)

	_, err := provider.WhoAmI(context.Background(), "tok")

	require.Error(t, err)
	assert.True(t, models.IsNetworkError(err))
}

func TestOAuthRedirectURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := NewAppwriteProvider(AppwriteConfig{
		Endpoint:  "https://cloud.appwrite.io/v1",
		ProjectID: "boltforge",
	}, logger)

	url, err := provider.OAuthRedirectURL("github", "https://app.example.com/", "https://app.example.com/?error=oauth_failed")

	require.NoError(t, err)
	assert.Contains(t, url, "/account/sessions/oauth2/github")
	assert.Contains(t, url, "project=boltforge")

	_, err = provider.OAuthRedirectURL("myspace", "s", "f")
	require.Error(t, err)
	assert.Equal(t, models.ErrKindOAuth, models.KindOf(err))
}
