package observability

import (
	"context"
	"time"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/tokenstore"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedStore records a span, a counter and a latency sample for
// every call on the wrapped store.
type InstrumentedStore struct {
	next    tokenstore.Store
	backend string
	tracer  trace.Tracer
}

func InstrumentTokenStore(next tokenstore.Store, backend string) *InstrumentedStore {
	return &InstrumentedStore{next: next, backend: backend, tracer: otel.Tracer(meterName)}
}

func (s *InstrumentedStore) Save(ctx context.Context, token string) error {
	ctx, done := s.start(ctx, "save")
	err := s.next.Save(ctx, token)
	done(outcomeOf(err, true))
	return err
}

func (s *InstrumentedStore) Exists(ctx context.Context, token string) (bool, error) {
	ctx, done := s.start(ctx, "exists")
	ok, err := s.next.Exists(ctx, token)
	done(outcomeOf(err, ok))
	return ok, err
}

func (s *InstrumentedStore) Revoke(ctx context.Context, token string) error {
	ctx, done := s.start(ctx, "revoke")
	err := s.next.Revoke(ctx, token)
	done(outcomeOf(err, true))
	return err
}

func (s *InstrumentedStore) Consume(ctx context.Context, token string) (bool, error) {
	ctx, done := s.start(ctx, "consume")
	ok, err := s.next.Consume(ctx, token)
	done(outcomeOf(err, ok))
	return ok, err
}

func (s *InstrumentedStore) PurgeCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	purger, ok := s.next.(tokenstore.Purger)
	if !ok {
		return 0, tokenstore.ErrPurgeNotSupported
	}
	ctx, done := s.start(ctx, "purge")
	n, err := purger.PurgeCreatedBefore(ctx, cutoff)
	done(outcomeOf(err, true))
	if err == nil {
		RecordTokenStorePurge(ctx, s.backend, n)
	}
	return n, err
}

func (s *InstrumentedStore) start(ctx context.Context, op string) (context.Context, func(outcome string)) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "tokenstore."+op, trace.WithAttributes(
		attribute.String("tokenstore.backend", s.backend),
	))
	return ctx, func(outcome string) {
		span.SetAttributes(attribute.String("tokenstore.outcome", outcome))
		if outcome == "error" {
			span.SetStatus(codes.Error, "token store unavailable")
		}
		span.End()
		RecordTokenStoreOperation(ctx, s.backend, op, outcome)
		RecordTokenStoreDuration(ctx, s.backend, op, time.Since(started))
	}
}

func outcomeOf(err error, found bool) string {
	switch {
	case err != nil:
		return "error"
	case !found:
		return "miss"
	default:
		return "success"
	}
}
