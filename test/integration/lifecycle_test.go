package integration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/service"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/tokenstore"
)

func lifecycleBackends(t *testing.T) map[string]lifecycleOptions {
	return map[string]lifecycleOptions{
		"sql": {},
		"memory": {store: func(*gorm.DB) tokenstore.Store {
			return tokenstore.NewMemoryStore()
		}},
		"redis": {store: func(*gorm.DB) tokenstore.Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return tokenstore.NewRedisStore(client, "auth:it:", 800*time.Hour)
		}},
	}
}

func TestAccountLifecycleAcrossBackends(t *testing.T) {
	for name, opts := range lifecycleBackends(t) {
		t.Run(name, func(t *testing.T) {
			env := newLifecycleEnv(t, opts)
			ctx := context.Background()
			const email = "Lifecycle@Example.com"
			const password = "first-pass-123"

			account, err := env.auth.Register(ctx, email, password)
			if err != nil {
				t.Fatalf("register: %v", err)
			}
			if account.Email != "lifecycle@example.com" {
				t.Fatalf("expected normalized email, got %q", account.Email)
			}

			confirmToken := env.notifier.LastConfirmationToken()
			if confirmToken == "" {
				t.Fatal("expected confirmation token on register")
			}
			if err := env.auth.ConfirmEmail(ctx, confirmToken); err != nil {
				t.Fatalf("confirm email: %v", err)
			}
			if err := env.auth.ConfirmEmail(ctx, confirmToken); !errors.Is(err, service.ErrAuthenticationFailed) {
				t.Fatalf("confirmation token should be single use, got %v", err)
			}

			session, err := env.auth.Login(ctx, email, password, false)
			if err != nil {
				t.Fatalf("login: %v", err)
			}
			id, err := env.auth.ValidateToken(ctx, session.Token)
			if err != nil || id != account.ID {
				t.Fatalf("validate: id=%d err=%v", id, err)
			}
			if err := env.auth.ConfirmEmail(ctx, session.Token); !errors.Is(err, service.ErrAuthenticationFailed) {
				t.Fatalf("session token must not confirm email, got %v", err)
			}

			if err := env.auth.RequestPasswordReset(ctx, email); err != nil {
				t.Fatalf("request reset: %v", err)
			}
			resetToken := env.notifier.LastResetToken()
			if resetToken == "" {
				t.Fatal("expected reset token")
			}
			if _, err := env.auth.ValidateToken(ctx, resetToken); !errors.Is(err, service.ErrAuthenticationFailed) {
				t.Fatalf("reset token must not act as a session, got %v", err)
			}
			const newPassword = "second-pass-456"
			if err := env.auth.CompletePasswordReset(ctx, resetToken, newPassword); err != nil {
				t.Fatalf("complete reset: %v", err)
			}
			if err := env.auth.CompletePasswordReset(ctx, resetToken, "third-pass-789"); !errors.Is(err, service.ErrAuthenticationFailed) {
				t.Fatalf("reset token should be single use, got %v", err)
			}

			if _, err := env.auth.Login(ctx, email, password, false); !errors.Is(err, service.ErrAuthenticationFailed) {
				t.Fatalf("old password should fail, got %v", err)
			}
			if _, err := env.auth.Login(ctx, email, newPassword, true); err != nil {
				t.Fatalf("login with new password: %v", err)
			}

			// Existing sessions outlive a reset.
			if _, err := env.auth.ValidateToken(ctx, session.Token); err != nil {
				t.Fatalf("session should survive reset: %v", err)
			}
			if err := env.auth.Logout(ctx, session.Token); err != nil {
				t.Fatalf("logout: %v", err)
			}
			if err := env.auth.Logout(ctx, session.Token); err != nil {
				t.Fatalf("second logout should be a no-op: %v", err)
			}
			if _, err := env.auth.ValidateToken(ctx, session.Token); !errors.Is(err, service.ErrAuthenticationFailed) {
				t.Fatalf("revoked session should fail, got %v", err)
			}
		})
	}
}

func TestConcurrentResetRedemptionHasOneWinner(t *testing.T) {
	for name, opts := range lifecycleBackends(t) {
		t.Run(name, func(t *testing.T) {
			env := newLifecycleEnv(t, opts)
			ctx := context.Background()
			if _, err := env.auth.Register(ctx, "race@example.com", "race-pass-123"); err != nil {
				t.Fatalf("register: %v", err)
			}
			if err := env.auth.RequestPasswordReset(ctx, "race@example.com"); err != nil {
				t.Fatalf("request reset: %v", err)
			}
			token := env.notifier.LastResetToken()

			const attempts = 8
			var wins, rejected atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := env.auth.CompletePasswordReset(ctx, token, "winner-pass-456")
					switch {
					case err == nil:
						wins.Add(1)
					case errors.Is(err, service.ErrAuthenticationFailed):
						rejected.Add(1)
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()
			if wins.Load() != 1 || rejected.Load() != attempts-1 {
				t.Fatalf("expected one winner, got wins=%d rejected=%d", wins.Load(), rejected.Load())
			}
		})
	}
}

func TestUnknownEmailRequestsLeaveNoTrace(t *testing.T) {
	env := newLifecycleEnv(t, lifecycleOptions{})
	ctx := context.Background()

	if err := env.auth.RequestPasswordReset(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("unknown reset should look like success: %v", err)
	}
	if err := env.auth.RequestEmailConfirmation(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("unknown confirmation should look like success: %v", err)
	}
	if env.notifier.LastResetToken() != "" || env.notifier.LastConfirmationToken() != "" {
		t.Fatal("no notification should be sent for unknown accounts")
	}
	var count int64
	if err := env.db.Table("single_use_tokens").Count(&count).Error; err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no stored tokens, got %d", count)
	}
}

func TestUnconfirmedLoginRejectedWhenRequired(t *testing.T) {
	env := newLifecycleEnv(t, lifecycleOptions{cfgMutate: func(cfg *service.AuthConfig) {
		cfg.RequireConfirmedEmail = true
	}})
	ctx := context.Background()
	if _, err := env.auth.Register(ctx, "pending@example.com", "pending-pass-1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := env.auth.Login(ctx, "pending@example.com", "pending-pass-1", false)
	if service.FailureReason(err) != service.ReasonUnconfirmedEmail {
		t.Fatalf("expected unconfirmed rejection, got %v (%s)", err, service.FailureReason(err))
	}

	if err := env.auth.RequestEmailConfirmation(ctx, "pending@example.com"); err != nil {
		t.Fatalf("request confirmation: %v", err)
	}
	if err := env.auth.ConfirmEmail(ctx, env.notifier.LastConfirmationToken()); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := env.auth.Login(ctx, "pending@example.com", "pending-pass-1", false); err != nil {
		t.Fatalf("login after confirm: %v", err)
	}
}

func TestPurgeDropsOnlyStaleEntries(t *testing.T) {
	env := newLifecycleEnv(t, lifecycleOptions{})
	ctx := context.Background()
	if _, err := env.auth.Register(ctx, "purge@example.com", "purge-pass-12"); err != nil {
		t.Fatalf("register: %v", err)
	}
	session, err := env.auth.Login(ctx, "purge@example.com", "purge-pass-12", false)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	purger, ok := env.store.(tokenstore.Purger)
	if !ok {
		t.Fatal("expected instrumented store to expose purging")
	}
	n, err := purger.PurgeCreatedBefore(ctx, time.Now().Add(-time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("purge of fresh entries: n=%d err=%v", n, err)
	}
	n, err = purger.PurgeCreatedBefore(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n < 2 {
		t.Fatalf("expected session and confirmation entries purged, got %d", n)
	}
	if _, err := env.auth.ValidateToken(ctx, session.Token); !errors.Is(err, service.ErrAuthenticationFailed) {
		t.Fatalf("purged session should fail, got %v", err)
	}
}
