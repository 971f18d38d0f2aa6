package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/domain"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedAuthService traces, counts and audits every flow of the
// wrapped service. Failure reasons are recorded as labels and log fields,
// the caller still only sees the uniform error.
type InstrumentedAuthService struct {
	next   AuthServiceInterface
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewInstrumentedAuthService(next AuthServiceInterface, logger *slog.Logger) *InstrumentedAuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InstrumentedAuthService{
		next:   next,
		logger: logger,
		tracer: otel.Tracer("auth-token-lifecycle/service"),
		now:    time.Now,
	}
}

var _ AuthServiceInterface = (*InstrumentedAuthService)(nil)

func (s *InstrumentedAuthService) Register(ctx context.Context, email, password string) (*domain.Account, error) {
	ctx, finish := s.begin(ctx, "register")
	account, err := s.next.Register(ctx, email, password)
	var id uint
	if account != nil {
		id = account.ID
	}
	finish(id, err)
	return account, err
}

func (s *InstrumentedAuthService) Login(ctx context.Context, email, password string, rememberMe bool) (*LoginResult, error) {
	ctx, finish := s.begin(ctx, "login", attribute.Bool("auth.remember_me", rememberMe))
	res, err := s.next.Login(ctx, email, password, rememberMe)
	var id uint
	if res != nil {
		id = res.AccountID
	}
	finish(id, err)
	return res, err
}

func (s *InstrumentedAuthService) ValidateToken(ctx context.Context, token string) (uint, error) {
	ctx, finish := s.begin(ctx, "validate_token")
	id, err := s.next.ValidateToken(ctx, token)
	finish(id, err)
	return id, err
}

func (s *InstrumentedAuthService) Logout(ctx context.Context, token string) error {
	ctx, finish := s.begin(ctx, "logout")
	err := s.next.Logout(ctx, token)
	finish(0, err)
	return err
}

func (s *InstrumentedAuthService) RequestPasswordReset(ctx context.Context, email string) error {
	ctx, finish := s.begin(ctx, "password_reset_request")
	err := s.next.RequestPasswordReset(ctx, email)
	finish(0, err)
	return err
}

func (s *InstrumentedAuthService) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	ctx, finish := s.begin(ctx, "password_reset_complete")
	err := s.next.CompletePasswordReset(ctx, token, newPassword)
	finish(0, err)
	return err
}

func (s *InstrumentedAuthService) RequestEmailConfirmation(ctx context.Context, email string) error {
	ctx, finish := s.begin(ctx, "email_confirmation_request")
	err := s.next.RequestEmailConfirmation(ctx, email)
	finish(0, err)
	return err
}

func (s *InstrumentedAuthService) ConfirmEmail(ctx context.Context, token string) error {
	ctx, finish := s.begin(ctx, "email_confirmation_complete")
	err := s.next.ConfirmEmail(ctx, token)
	finish(0, err)
	return err
}

func (s *InstrumentedAuthService) begin(ctx context.Context, flow string, attrs ...attribute.KeyValue) (context.Context, func(accountID uint, err error)) {
	started := s.now()
	ctx, span := s.tracer.Start(ctx, "auth."+flow, trace.WithAttributes(attrs...))
	return ctx, func(accountID uint, err error) {
		defer span.End()
		outcome := "success"
		if err != nil {
			outcome = FailureReason(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.SetAttributes(attribute.String("auth.outcome", outcome))
		observability.RecordAuthFlow(ctx, flow, outcome)
		observability.RecordAuthFlowDuration(ctx, flow, outcome, s.now().Sub(started))

		actor := ""
		if accountID != 0 {
			actor = strconv.FormatUint(uint64(accountID), 10)
		}
		result := "success"
		if err != nil {
			result = "failure"
		}
		observability.Audit(ctx, s.logger, observability.AuditInput{
			EventName: "auth." + flow,
			AccountID: actor,
			Action:    flow,
			Outcome:   result,
			Reason:    outcome,
		})
		if outcome == "unavailable" || outcome == "error" {
			s.logger.ErrorContext(ctx, "auth flow failed", "flow", flow, "reason", outcome, "error", err)
		}
	}
}
