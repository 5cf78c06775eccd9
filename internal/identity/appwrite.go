package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boltforge/authgate/internal/models"
	"github.com/google/uuid"
)

// AppwriteConfig holds connection settings for the hosted BaaS.
type AppwriteConfig struct {
	Endpoint  string // e.g. https://cloud.appwrite.io/v1
	ProjectID string
	Timeout   time.Duration
}

// AppwriteProvider implements Provider against the Appwrite Account API.
// The gateway acts on behalf of one browser client per session token,
// forwarded via the X-Appwrite-Session header.
type AppwriteProvider struct {
	cfg    AppwriteConfig
	client *http.Client
	logger *slog.Logger
}

// NewAppwriteProvider creates an AppwriteProvider.
func NewAppwriteProvider(cfg AppwriteConfig, logger *slog.Logger) *AppwriteProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &AppwriteProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// appwriteUser mirrors the subset of the Appwrite account object we consume.
type appwriteUser struct {
	ID        string `json:"$id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"$createdAt"`
}

// appwriteSession mirrors the subset of the Appwrite session object.
type appwriteSession struct {
	ID     string `json:"$id"`
	UserID string `json:"userId"`
	Secret string `json:"secret"`
}

// appwriteError is the provider's error payload.
type appwriteError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

func (p *AppwriteProvider) WhoAmI(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, models.NewProviderError(models.ErrKindUnauthenticated, 0, "no session", models.ErrNoActiveSession)
	}

	var user appwriteUser
	if err := p.do(ctx, http.MethodGet, "/account", token, nil, &user); err != nil {
		return nil, err
	}
	return userToSession(&user), nil
}

func (p *AppwriteProvider) CreateSession(ctx context.Context, identifier, password string) (string, *models.Session, error) {
	body := map[string]string{"email": identifier, "password": password}

	var sess appwriteSession
	if err := p.do(ctx, http.MethodPost, "/account/sessions/email", "", body, &sess); err != nil {
		return "", nil, err
	}

	user, err := p.WhoAmI(ctx, sess.Secret)
	if err != nil {
		return "", nil, err
	}
	return sess.Secret, user, nil
}

func (p *AppwriteProvider) CreateAccount(ctx context.Context, email, password, displayName string) (string, error) {
	body := map[string]string{
		"userId":   uuid.New().String(),
		"email":    email,
		"password": password,
		"name":     displayName,
	}

	var user appwriteUser
	if err := p.do(ctx, http.MethodPost, "/account", "", body, &user); err != nil {
		return "", err
	}
	return user.ID, nil
}

func (p *AppwriteProvider) DeleteSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := p.do(ctx, http.MethodDelete, "/account/sessions/current", token, nil, nil)
	if err != nil && models.KindOf(err) == models.ErrKindUnauthenticated {
		// Nothing to delete; the session was already gone.
		return nil
	}
	return err
}

func (p *AppwriteProvider) OAuthRedirectURL(provider, successURL, failureURL string) (string, error) {
	switch provider {
	case "github", "google", "gitlab":
	default:
		return "", models.NewProviderError(models.ErrKindOAuth, 0,
			fmt.Sprintf("unsupported oauth provider %q", provider), nil)
	}

	q := url.Values{}
	q.Set("project", p.cfg.ProjectID)
	q.Set("success", successURL)
	q.Set("failure", failureURL)

	return fmt.Sprintf("%s/account/sessions/oauth2/%s?%s",
		strings.TrimRight(p.cfg.Endpoint, "/"), provider, q.Encode()), nil
}

// do issues one request against the Account API and decodes the response into
// out. Failures are returned as typed ProviderErrors.
func (p *AppwriteProvider) do(ctx context.Context, method, path, token string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return models.NewProviderError(models.ErrKindServer, 0, "encode request", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method,
		strings.TrimRight(p.cfg.Endpoint, "/")+path, reqBody)
	if err != nil {
		return models.NewProviderError(models.ErrKindServer, 0, "build request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Appwrite-Project", p.cfg.ProjectID)
	if token != "" {
		req.Header.Set("X-Appwrite-Session", token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return ClassifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return p.mapStatus(resp, path)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return models.NewProviderError(models.ErrKindServer, resp.StatusCode, "decode response", err)
	}
	return nil
}

// mapStatus converts a non-2xx Account API response into a ProviderError.
func (p *AppwriteProvider) mapStatus(resp *http.Response, path string) error {
	var payload appwriteError
	_ = json.NewDecoder(resp.Body).Decode(&payload)

	msg := payload.Message
	if msg == "" {
		msg = resp.Status
	}

	kind := models.ErrKindServer
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		kind = models.ErrKindUnauthenticated
		if strings.Contains(path, "/sessions/") && resp.Request.Method == http.MethodPost {
			kind = models.ErrKindCredentials
		}
	case resp.StatusCode == http.StatusConflict:
		kind = models.ErrKindConflict
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = models.ErrKindServer
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		kind = models.ErrKindValidation
		// Appwrite reports bad password sign-ins as 400/401 depending on the
		// endpoint version; the type field disambiguates.
		if payload.Type == "user_invalid_credentials" {
			kind = models.ErrKindCredentials
		}
	}

	p.logger.Debug("identity provider error",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.String("kind", string(kind)))

	return models.NewProviderError(kind, resp.StatusCode, msg, nil)
}

func userToSession(u *appwriteUser) *models.Session {
	createdAt, _ := time.Parse(time.RFC3339, u.CreatedAt)
	return &models.Session{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.Name,
		CreatedAt:   createdAt,
	}
}
