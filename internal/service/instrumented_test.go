package service_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/domain"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/service"
	servicegomock "github.com/sandeepkv93/auth-token-lifecycle/internal/service/gomock"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/tokenstore"
	"go.uber.org/mock/gomock"
)

func TestInstrumentedAuthServicePassesResultsThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := servicegomock.NewMockAuthServiceInterface(ctrl)
	var buf bytes.Buffer
	svc := service.NewInstrumentedAuthService(next, slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx := context.Background()

	next.EXPECT().Register(gomock.Any(), "a@example.com", "Secret123").Return(&domain.Account{ID: 3}, nil)
	next.EXPECT().Login(gomock.Any(), "a@example.com", "Secret123", true).Return(&service.LoginResult{AccountID: 3, Token: "tok"}, nil)
	next.EXPECT().ValidateToken(gomock.Any(), "tok").Return(uint(3), nil)
	next.EXPECT().Logout(gomock.Any(), "tok").Return(nil)
	next.EXPECT().RequestPasswordReset(gomock.Any(), "a@example.com").Return(nil)
	next.EXPECT().CompletePasswordReset(gomock.Any(), "reset", "NewPass456").Return(nil)
	next.EXPECT().RequestEmailConfirmation(gomock.Any(), "a@example.com").Return(nil)
	next.EXPECT().ConfirmEmail(gomock.Any(), "confirm").Return(nil)

	if a, err := svc.Register(ctx, "a@example.com", "Secret123"); err != nil || a.ID != 3 {
		t.Fatalf("register: %v %v", a, err)
	}
	if res, err := svc.Login(ctx, "a@example.com", "Secret123", true); err != nil || res.Token != "tok" {
		t.Fatalf("login: %v %v", res, err)
	}
	if id, err := svc.ValidateToken(ctx, "tok"); err != nil || id != 3 {
		t.Fatalf("validate: %d %v", id, err)
	}
	for name, err := range map[string]error{
		"logout":          svc.Logout(ctx, "tok"),
		"reset request":   svc.RequestPasswordReset(ctx, "a@example.com"),
		"reset complete":  svc.CompletePasswordReset(ctx, "reset", "NewPass456"),
		"confirm request": svc.RequestEmailConfirmation(ctx, "a@example.com"),
		"confirm":         svc.ConfirmEmail(ctx, "confirm"),
	} {
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	out := buf.String()
	if strings.Count(out, `"msg":"audit"`) != 8 {
		t.Fatalf("expected one audit record per flow, got %s", out)
	}
	if strings.Contains(out, "Secret123") || strings.Contains(out, `"tok"`) {
		t.Fatalf("credentials leaked into logs: %s", out)
	}
}

func TestInstrumentedAuthServiceKeepsUniformFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := servicegomock.NewMockAuthServiceInterface(ctrl)
	var buf bytes.Buffer
	svc := service.NewInstrumentedAuthService(next, slog.New(slog.NewJSONHandler(&buf, nil)))

	authErr := &service.AuthenticationError{Reason: service.ReasonBadPassword}
	next.EXPECT().Login(gomock.Any(), "a@example.com", "wrong", false).Return(nil, authErr)
	next.EXPECT().Logout(gomock.Any(), "tok").Return(errors.Join(tokenstore.ErrUnavailable, errors.New("redis down")))

	_, err := svc.Login(context.Background(), "a@example.com", "wrong", false)
	if !errors.Is(err, service.ErrAuthenticationFailed) || err.Error() != "authentication failed" {
		t.Fatalf("expected uniform failure, got %v", err)
	}
	if err := svc.Logout(context.Background(), "tok"); !errors.Is(err, service.ErrStoreUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"reason":"bad_password"`) {
		t.Fatalf("expected failure reason in audit log, got %s", out)
	}
	if !strings.Contains(out, "auth flow failed") {
		t.Fatalf("expected infrastructure failure to be logged, got %s", out)
	}
}
