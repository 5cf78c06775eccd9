// Package identity abstracts the external identity provider behind a narrow
// surface: session introspection, password sessions, account creation, and
// OAuth redirect construction. Adapters translate provider failures into
// typed models.ProviderError values so callers branch on error kind rather
// than message text.
package identity

import (
	"context"
	"errors"
	"net"
	"net/url"
	"syscall"

	"github.com/boltforge/authgate/internal/models"
)

// Provider is the identity collaborator. Session-scoped calls take the opaque
// session token the gateway holds for the browser client; an empty token means
// no session was ever established.
type Provider interface {
	// WhoAmI resolves the session token into the current identity, or fails
	// with an unauthenticated-kind error when the session is expired, revoked
	// or absent.
	WhoAmI(ctx context.Context, token string) (*models.Session, error)

	// CreateSession exchanges credentials for a new session and its token.
	// Credential rejections surface as a credentials-kind error.
	CreateSession(ctx context.Context, identifier, password string) (string, *models.Session, error)

	// CreateAccount registers a new identity and returns its id. The account
	// has no session until CreateSession is called.
	CreateAccount(ctx context.Context, email, password, displayName string) (string, error)

	// DeleteSession invalidates the session token. Deleting an absent or
	// already-invalid session is not a failure.
	DeleteSession(ctx context.Context, token string) error

	// OAuthRedirectURL builds the URL that starts a third-party sign-in flow.
	// Resolution happens when the browser returns to successURL or failureURL.
	OAuthRedirectURL(provider, successURL, failureURL string) (string, error)
}

// ClassifyTransportError maps a raw HTTP-client failure onto the error
// taxonomy. Anything that looks like connectivity (DNS, refused connection,
// timeout, cancelled dial) is network-kind and therefore retry-eligible.
func ClassifyTransportError(err error) *models.ProviderError {
	if err == nil {
		return nil
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, context.DeadlineExceeded):
		return models.NewProviderError(models.ErrKindNetwork, 0, "request failed", err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// url.Error wraps every client-side failure of http.Client.Do,
		// including malformed request construction. The original system saw
		// these as generic fetch failures and treated them as transient.
		return models.NewProviderError(models.ErrKindNetwork, 0, "request failed", err)
	}

	return models.NewProviderError(models.ErrKindServer, 0, err.Error(), err)
}
