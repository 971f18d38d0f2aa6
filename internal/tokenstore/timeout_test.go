package tokenstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

type blockingStore struct{}

func (blockingStore) wait(ctx context.Context, op string) error {
	<-ctx.Done()
	return unavailable(op, ctx.Err())
}

func (b blockingStore) Save(ctx context.Context, _ string) error { return b.wait(ctx, "save") }
func (b blockingStore) Exists(ctx context.Context, _ string) (bool, error) {
	return false, b.wait(ctx, "exists")
}
func (b blockingStore) Revoke(ctx context.Context, _ string) error { return b.wait(ctx, "revoke") }
func (b blockingStore) Consume(ctx context.Context, _ string) (bool, error) {
	return false, b.wait(ctx, "consume")
}

func TestTimeoutStoreAppliesDeadline(t *testing.T) {
	s := WithTimeout(blockingStore{}, 20*time.Millisecond)
	start := time.Now()
	_, err := s.Consume(context.Background(), "tok")
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline-wrapped ErrUnavailable, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected prompt timeout, took %v", elapsed)
	}
}

func TestTimeoutStoreDelegates(t *testing.T) {
	inner := NewMemoryStore()
	s := WithTimeout(inner, time.Second)
	runStoreConformance(t, func(t *testing.T) Store { return WithTimeout(NewMemoryStore(), time.Second) })

	ctx := context.Background()
	if err := s.Save(ctx, "tok"); err != nil {
		t.Fatalf("save: %v", err)
	}
	removed, err := s.PurgeCreatedBefore(ctx, time.Now().Add(time.Minute))
	if err != nil || removed != 1 {
		t.Fatalf("expected purge to reach inner store, removed=%d err=%v", removed, err)
	}
}

func TestTimeoutStorePurgeUnsupported(t *testing.T) {
	s := WithTimeout(blockingStore{}, time.Second)
	if _, err := s.PurgeCreatedBefore(context.Background(), time.Now()); !errors.Is(err, ErrPurgeNotSupported) {
		t.Fatalf("expected ErrPurgeNotSupported, got %v", err)
	}
}
