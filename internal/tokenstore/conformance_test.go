package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func runStoreConformance(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("save_is_idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i := 0; i < 2; i++ {
			if err := s.Save(ctx, "tok-a"); err != nil {
				t.Fatalf("save %d: %v", i, err)
			}
		}
		ok, err := s.Exists(ctx, "tok-a")
		if err != nil || !ok {
			t.Fatalf("expected saved token to exist, ok=%v err=%v", ok, err)
		}
		removed, err := s.Consume(ctx, "tok-a")
		if err != nil || !removed {
			t.Fatalf("expected single entry to be consumed, removed=%v err=%v", removed, err)
		}
		if ok, _ := s.Exists(ctx, "tok-a"); ok {
			t.Fatal("expected duplicate save not to leave a second entry")
		}
	})

	t.Run("exists_reports_absence", func(t *testing.T) {
		s := newStore(t)
		ok, err := s.Exists(context.Background(), "never-saved")
		if err != nil || ok {
			t.Fatalf("expected absent token, ok=%v err=%v", ok, err)
		}
	})

	t.Run("revoke_is_idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Revoke(ctx, "never-saved"); err != nil {
			t.Fatalf("revoke absent: %v", err)
		}
		if err := s.Save(ctx, "tok-b"); err != nil {
			t.Fatalf("save: %v", err)
		}
		for i := 0; i < 2; i++ {
			if err := s.Revoke(ctx, "tok-b"); err != nil {
				t.Fatalf("revoke %d: %v", i, err)
			}
		}
		if ok, _ := s.Exists(ctx, "tok-b"); ok {
			t.Fatal("expected revoked token to be gone")
		}
	})

	t.Run("consume_succeeds_once", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Save(ctx, "tok-c"); err != nil {
			t.Fatalf("save: %v", err)
		}
		first, err := s.Consume(ctx, "tok-c")
		if err != nil || !first {
			t.Fatalf("expected first consume to win, got %v err=%v", first, err)
		}
		second, err := s.Consume(ctx, "tok-c")
		if err != nil || second {
			t.Fatalf("expected second consume to lose, got %v err=%v", second, err)
		}
	})

	t.Run("tokens_are_independent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, tok := range []string{"tok-d1", "tok-d2"} {
			if err := s.Save(ctx, tok); err != nil {
				t.Fatalf("save %s: %v", tok, err)
			}
		}
		if err := s.Revoke(ctx, "tok-d1"); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		if ok, _ := s.Exists(ctx, "tok-d2"); !ok {
			t.Fatal("expected unrelated token to survive revoke")
		}
	})

	t.Run("concurrent_consume_has_one_winner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		const rounds = 5
		const contenders = 8
		for r := 0; r < rounds; r++ {
			token := fmt.Sprintf("race-%d", r)
			if err := s.Save(ctx, token); err != nil {
				t.Fatalf("save: %v", err)
			}
			var wins atomic.Int32
			var wg sync.WaitGroup
			errs := make(chan error, contenders)
			for i := 0; i < contenders; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := s.Consume(ctx, token)
					if err != nil {
						errs <- err
						return
					}
					if ok {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Fatalf("consume: %v", err)
			}
			if got := wins.Load(); got != 1 {
				t.Fatalf("round %d: expected exactly one winner, got %d", r, got)
			}
		}
	})

	t.Run("canceled_context_is_unavailable", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := s.Consume(ctx, "tok-e"); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
		if err := s.Save(ctx, "tok-e"); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})
}
