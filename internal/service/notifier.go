package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/observability"

	"golang.org/x/sync/semaphore"
)

type TokenNotification struct {
	AccountID uint
	Email     string
	Token     string
	ExpiresAt time.Time
	Link      string
}

// Notifier delivers out-of-band tokens. The service does not wait on or
// inspect delivery outcomes; implementations report their own failures.
type Notifier interface {
	SendPasswordReset(ctx context.Context, notification TokenNotification) error
	SendEmailConfirmation(ctx context.Context, notification TokenNotification) error
}

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendEmailConfirmation(ctx context.Context, notification TokenNotification) error {
	n.logger.InfoContext(ctx, "email confirmation token issued",
		"account_id", notification.AccountID,
		"email", notification.Email,
		"expires_at", notification.ExpiresAt,
		"confirmation", linkOrToken(notification),
	)
	return nil
}

func (n *LogNotifier) SendPasswordReset(ctx context.Context, notification TokenNotification) error {
	n.logger.InfoContext(ctx, "password reset token issued",
		"account_id", notification.AccountID,
		"email", notification.Email,
		"expires_at", notification.ExpiresAt,
		"reset", linkOrToken(notification),
	)
	return nil
}

func linkOrToken(notification TokenNotification) string {
	if strings.TrimSpace(notification.Link) != "" {
		return notification.Link
	}
	return fmt.Sprintf("token=%s", notification.Token)
}

// AsyncNotifier hands deliveries to background goroutines detached from the
// caller's cancellation. At most maxInFlight deliveries run at once.
type AsyncNotifier struct {
	next    Notifier
	logger  *slog.Logger
	sem     *semaphore.Weighted
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsyncNotifier(next Notifier, logger *slog.Logger, maxInFlight int64, timeout time.Duration) *AsyncNotifier {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AsyncNotifier{
		next:    next,
		logger:  logger,
		sem:     semaphore.NewWeighted(maxInFlight),
		timeout: timeout,
	}
}

func (n *AsyncNotifier) SendPasswordReset(ctx context.Context, notification TokenNotification) error {
	n.dispatch(ctx, "password_reset", notification.AccountID, func(ctx context.Context) error {
		return n.next.SendPasswordReset(ctx, notification)
	})
	return nil
}

func (n *AsyncNotifier) SendEmailConfirmation(ctx context.Context, notification TokenNotification) error {
	n.dispatch(ctx, "email_confirmation", notification.AccountID, func(ctx context.Context) error {
		return n.next.SendEmailConfirmation(ctx, notification)
	})
	return nil
}

func (n *AsyncNotifier) dispatch(ctx context.Context, kind string, accountID uint, send func(context.Context) error) {
	detached := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(detached, n.timeout)
		defer cancel()
		if err := n.sem.Acquire(ctx, 1); err != nil {
			observability.RecordNotificationDelivery(ctx, kind, "dropped")
			n.logger.WarnContext(ctx, "notification dropped", "kind", kind, "account_id", accountID, "error", err)
			return
		}
		defer n.sem.Release(1)
		if err := send(ctx); err != nil {
			observability.RecordNotificationDelivery(ctx, kind, "error")
			n.logger.ErrorContext(ctx, "notification delivery failed", "kind", kind, "account_id", accountID, "error", err)
			return
		}
		observability.RecordNotificationDelivery(ctx, kind, "success")
	}()
}

// Wait blocks until every dispatched delivery has finished or ctx ends.
func (n *AsyncNotifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
