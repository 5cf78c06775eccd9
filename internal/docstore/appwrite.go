package docstore

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

	"github.com/boltforge/authgate/internal/identity"
	"github.com/boltforge/authgate/internal/models"
	"github.com/google/uuid"
)

// AppwriteConfig holds connection settings for the hosted Databases API.
// The gateway authenticates with a server API key and sets document
// permissions explicitly on behalf of the owning user.
type AppwriteConfig struct {
	Endpoint   string
	ProjectID  string
	APIKey     string
	DatabaseID string
	Timeout    time.Duration
}

// AppwriteStore implements Store against the Appwrite Databases API.
type AppwriteStore struct {
	cfg    AppwriteConfig
	client *http.Client
	logger *slog.Logger
}

// NewAppwriteStore creates an AppwriteStore.
func NewAppwriteStore(cfg AppwriteConfig, logger *slog.Logger) *AppwriteStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &AppwriteStore{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// appwriteDocument mirrors the envelope fields of a Databases document. The
// payload attributes arrive inline alongside the $-prefixed metadata.
type appwriteDocument struct {
	ID        string `json:"$id"`
	CreatedAt string `json:"$createdAt"`
	UpdatedAt string `json:"$updatedAt"`
}

type documentList struct {
	Total     int               `json:"total"`
	Documents []json.RawMessage `json:"documents"`
}

func (s *AppwriteStore) Query(ctx context.Context, collection string, filters []Filter) ([]Document, error) {
	q := url.Values{}
	for _, f := range filters {
		query, err := json.Marshal(map[string]any{
			"method":    "equal",
			"attribute": f.Attribute,
			"values":    []any{f.Value},
		})
		if err != nil {
			return nil, models.NewProviderError(models.ErrKindServer, 0, "encode query", err)
		}
		q.Add("queries[]", string(query))
	}

	path := fmt.Sprintf("/databases/%s/collections/%s/documents", s.cfg.DatabaseID, collection)
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var list documentList
	if err := s.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(list.Documents))
	for _, raw := range list.Documents {
		doc, err := parseDocument(collection, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

func (s *AppwriteStore) Create(ctx context.Context, collection string, data any, perms Permissions) (*Document, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, models.NewProviderError(models.ErrKindServer, 0, "encode document", err)
	}
	var attrs map[string]any
	if err := json.Unmarshal(payload, &attrs); err != nil {
		return nil, models.NewProviderError(models.ErrKindServer, 0, "encode document", err)
	}

	body := map[string]any{
		"documentId":  uuid.New().String(),
		"data":        attrs,
		"permissions": permissionStrings(perms),
	}

	path := fmt.Sprintf("/databases/%s/collections/%s/documents", s.cfg.DatabaseID, collection)

	var raw json.RawMessage
	if err := s.do(ctx, http.MethodPost, path, body, &raw); err != nil {
		return nil, err
	}
	return parseDocument(collection, raw)
}

func (s *AppwriteStore) Update(ctx context.Context, collection, id string, patch map[string]any) (*Document, error) {
	path := fmt.Sprintf("/databases/%s/collections/%s/documents/%s", s.cfg.DatabaseID, collection, id)
	body := map[string]any{"data": patch}

	var raw json.RawMessage
	if err := s.do(ctx, http.MethodPatch, path, body, &raw); err != nil {
		return nil, err
	}
	return parseDocument(collection, raw)
}

func (s *AppwriteStore) HealthCheck(ctx context.Context) error {
	return s.do(ctx, http.MethodGet, "/health", nil, nil)
}

// permissionStrings renders Permissions in the provider's grammar.
func permissionStrings(perms Permissions) []string {
	read := `read("any")`
	if !perms.PublicRead {
		read = fmt.Sprintf(`read("user:%s")`, perms.OwnerID)
	}
	return []string{
		read,
		fmt.Sprintf(`update("user:%s")`, perms.OwnerID),
		fmt.Sprintf(`delete("user:%s")`, perms.OwnerID),
	}
}

func parseDocument(collection string, raw json.RawMessage) (*Document, error) {
	var meta appwriteDocument
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, models.NewProviderError(models.ErrKindServer, 0, "decode document", err)
	}
	createdAt, _ := time.Parse(time.RFC3339, meta.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, meta.UpdatedAt)
	return &Document{
		ID:         meta.ID,
		Collection: collection,
		Data:       raw,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}

func (s *AppwriteStore) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return models.NewProviderError(models.ErrKindServer, 0, "encode request", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method,
		strings.TrimRight(s.cfg.Endpoint, "/")+path, reqBody)
	if err != nil {
		return models.NewProviderError(models.ErrKindServer, 0, "build request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Appwrite-Project", s.cfg.ProjectID)
	req.Header.Set("X-Appwrite-Key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return identity.ClassifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return s.mapStatus(resp, path)
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

func (s *AppwriteStore) mapStatus(resp *http.Response, path string) error {
	var payload struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)

	msg := payload.Message
	if msg == "" {
		msg = resp.Status
	}

	kind := models.ErrKindServer
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		kind = models.ErrKindUnauthenticated
	case resp.StatusCode == http.StatusConflict:
		kind = models.ErrKindConflict
	case resp.StatusCode == http.StatusNotFound:
		return models.NewProviderError(models.ErrKindValidation, resp.StatusCode, msg, models.ErrNotFound)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		kind = models.ErrKindValidation
	}

	s.logger.Debug("document store error",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.String("kind", string(kind)))

	return models.NewProviderError(kind, resp.StatusCode, msg, nil)
}
