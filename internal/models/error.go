package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("resource already exists")
	ErrUnauthenticated   = errors.New("not authenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrBadRequest        = errors.New("bad request")
	ErrInternalServer    = errors.New("internal server error")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrNoActiveSession   = errors.New("no active session")
)

// ErrorKind classifies a collaborator failure. Retry and UI decisions are a
// pattern match on the kind, never on message text.
type ErrorKind string

const (
	// ErrKindNetwork is a connectivity-class failure. Retry-eligible; must
	// never clear an existing session.
	ErrKindNetwork ErrorKind = "network"
	// ErrKindUnauthenticated means no usable session exists. An expected
	// terminal state during bootstrap, not an error.
	ErrKindUnauthenticated ErrorKind = "unauthenticated"
	// ErrKindCredentials is an explicit credential rejection. Never retried.
	ErrKindCredentials ErrorKind = "credentials"
	// ErrKindConflict is a uniqueness violation, e.g. duplicate profile
	// creation. Treated as already-satisfied where idempotency applies.
	ErrKindConflict ErrorKind = "conflict"
	// ErrKindValidation is a payload rejection by the collaborator.
	ErrKindValidation ErrorKind = "validation"
	// ErrKindServer is a 5xx-class collaborator failure.
	ErrKindServer ErrorKind = "server"
	// ErrKindOAuth is a third-party redirect flow failure. Does not count
	// against password-based rate limiting.
	ErrKindOAuth ErrorKind = "oauth"
)

// ProviderError is the typed error returned by collaborator adapters.
type ProviderError struct {
	Kind    ErrorKind
	Status  int // HTTP status from the collaborator, 0 for transport failures
	Message string
	Cause   error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// NewProviderError builds a ProviderError wrapping cause.
func NewProviderError(kind ErrorKind, status int, message string, cause error) *ProviderError {
	return &ProviderError{Kind: kind, Status: status, Message: message, Cause: cause}
}

// KindOf extracts the classification from err. Unclassified errors report
// ErrKindServer: an unknown failure must not be retried as if transient.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	switch {
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrNoActiveSession):
		return ErrKindUnauthenticated
	case errors.Is(err, ErrConflict):
		return ErrKindConflict
	case errors.Is(err, ErrBadRequest):
		return ErrKindValidation
	}
	return ErrKindServer
}

// IsNetworkError reports whether err is classified as a connectivity failure.
func IsNetworkError(err error) bool {
	return err != nil && KindOf(err) == ErrKindNetwork
}

// DescribeError converts err into the descriptor stored on AuthState.
// Network failures get a distinguishable connection message rather than a
// credentials-shaped one.
func DescribeError(err error) *ErrorDescriptor {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	switch kind {
	case ErrKindNetwork:
		return &ErrorDescriptor{Kind: kind, Message: "Network connection error. Please check your internet connection."}
	case ErrKindCredentials:
		return &ErrorDescriptor{Kind: kind, Message: "Invalid email or password."}
	case ErrKindOAuth:
		return &ErrorDescriptor{Kind: kind, Message: "Third-party sign-in failed. Please try again."}
	}
	return &ErrorDescriptor{Kind: kind, Message: err.Error()}
}
