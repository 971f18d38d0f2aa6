package authctl

import (
	"errors"
	"fmt"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/service"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/tokenstore"
)

var errNotReady = errors.New("dependencies not ready")

const (
	ExitFailure      = 1
	ExitUnauthorized = 2
	ExitUnavailable  = 3
)

// ExitError carries the process exit code and the message safe to print.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

type bootstrapError struct {
	err error
}

func (e *bootstrapError) Error() string { return "bootstrap: " + e.err.Error() }

func (e *bootstrapError) Unwrap() error { return e.err }

// ExitCode maps err to a process exit code; nil maps to zero.
func ExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, service.ErrAuthenticationFailed):
		return ExitUnauthorized
	case errors.Is(err, service.ErrStoreUnavailable):
		return ExitUnavailable
	default:
		return ExitFailure
	}
}

// userMessage never exposes why authentication failed or which backend call
// broke.
func userMessage(err error) string {
	var bootErr *bootstrapError
	switch {
	case errors.Is(err, service.ErrAuthenticationFailed):
		return "unauthorized"
	case errors.Is(err, service.ErrStoreUnavailable):
		return "temporarily unavailable"
	case errors.Is(err, service.ErrInvalidInput):
		return err.Error()
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		return service.ErrEmailAlreadyRegistered.Error()
	case errors.Is(err, tokenstore.ErrPurgeNotSupported):
		return tokenstore.ErrPurgeNotSupported.Error()
	case errors.Is(err, errNotReady):
		return errNotReady.Error()
	case errors.As(err, &bootErr):
		return bootErr.Error()
	default:
		return fmt.Sprintf("internal error (%s)", service.FailureReason(err))
	}
}
