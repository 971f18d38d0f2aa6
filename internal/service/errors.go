package service

import (
	"errors"
	"fmt"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/security"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/tokenstore"
)

var (
	ErrInvalidInput = security.ErrInvalidInput
	// ErrAuthenticationFailed is the only credential or token failure callers
	// ever see. The concrete reason stays reachable through FailureReason and
	// errors.Is for internal branching, never through Error().
	ErrAuthenticationFailed   = errors.New("authentication failed")
	ErrStoreUnavailable       = tokenstore.ErrUnavailable
	ErrEmailAlreadyRegistered = errors.New("email already registered")
)

const (
	ReasonMissingCredentials = "missing_credentials"
	ReasonUnknownAccount     = "unknown_account"
	ReasonBadPassword        = "bad_password"
	ReasonUnconfirmedEmail   = "unconfirmed_email"
	ReasonMalformedToken     = "malformed_token"
	ReasonInvalidSignature   = "invalid_signature"
	ReasonExpiredToken       = "expired_token"
	ReasonWrongPurpose       = "wrong_purpose"
	ReasonTokenNotLive       = "token_not_live"
)

type AuthenticationError struct {
	Reason string
	cause  error
}

func (e *AuthenticationError) Error() string { return ErrAuthenticationFailed.Error() }

func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthenticationFailed }

func (e *AuthenticationError) Unwrap() error { return e.cause }

func authFailed(reason string, cause error) error {
	return &AuthenticationError{Reason: reason, cause: cause}
}

func decodeFailure(err error) error {
	switch {
	case errors.Is(err, security.ErrExpiredToken):
		return authFailed(ReasonExpiredToken, err)
	case errors.Is(err, security.ErrInvalidSignature):
		return authFailed(ReasonInvalidSignature, err)
	default:
		return authFailed(ReasonMalformedToken, err)
	}
}

func unavailable(op string, err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// FailureReason maps err to a low-cardinality label for metrics and logs.
func FailureReason(err error) string {
	if err == nil {
		return "none"
	}
	var authErr *AuthenticationError
	switch {
	case errors.As(err, &authErr):
		return authErr.Reason
	case errors.Is(err, ErrAuthenticationFailed):
		return "authentication_failed"
	case errors.Is(err, ErrStoreUnavailable):
		return "unavailable"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrEmailAlreadyRegistered):
		return "conflict"
	default:
		return "error"
	}
}
