package tokenstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnavailable wraps every backend failure, including deadline expiry
	// and cancellation of the caller's context.
	ErrUnavailable       = errors.New("token store unavailable")
	ErrPurgeNotSupported = errors.New("token store does not support purging")
)

// Store records which rendered tokens are still live. It holds no business
// logic: presence means usable, absence means never issued or already spent.
type Store interface {
	// Save is an idempotent insert.
	Save(ctx context.Context, token string) error
	Exists(ctx context.Context, token string) (bool, error)
	// Revoke is an idempotent delete.
	Revoke(ctx context.Context, token string) error
	// Consume atomically removes token and reports whether this call removed
	// it. Of any number of concurrent callers at most one observes true.
	Consume(ctx context.Context, token string) (bool, error)
}

// Purger removes entries created before cutoff and reports how many went.
type Purger interface {
	PurgeCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Key is the storage key for a rendered token. Raw tokens are never persisted.
func Key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

func checkContext(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return unavailable(op, err)
	}
	return nil
}
