package tokenstore

import (
	"context"
	"time"
)

// TimeoutStore bounds every operation of the wrapped store by a fixed
// deadline on top of whatever deadline the caller already carries.
type TimeoutStore struct {
	next    Store
	timeout time.Duration
}

func WithTimeout(next Store, timeout time.Duration) *TimeoutStore {
	return &TimeoutStore{next: next, timeout: timeout}
}

func (s *TimeoutStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *TimeoutStore) Save(ctx context.Context, token string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.next.Save(ctx, token)
}

func (s *TimeoutStore) Exists(ctx context.Context, token string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.next.Exists(ctx, token)
}

func (s *TimeoutStore) Revoke(ctx context.Context, token string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.next.Revoke(ctx, token)
}

func (s *TimeoutStore) Consume(ctx context.Context, token string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.next.Consume(ctx, token)
}

func (s *TimeoutStore) PurgeCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	purger, ok := s.next.(Purger)
	if !ok {
		return 0, ErrPurgeNotSupported
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return purger.PurgeCreatedBefore(ctx, cutoff)
}
