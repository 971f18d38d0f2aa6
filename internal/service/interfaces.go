package service

import (
	"context"
	"time"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/domain"
)

type AuthServiceInterface interface {
	Register(ctx context.Context, email, password string) (*domain.Account, error)
	Login(ctx context.Context, email, password string, rememberMe bool) (*LoginResult, error)
	ValidateToken(ctx context.Context, token string) (uint, error)
	Logout(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, token, newPassword string) error
	RequestEmailConfirmation(ctx context.Context, email string) error
	ConfirmEmail(ctx context.Context, token string) error
}

// AccountRepository is the persistence the service needs. Lookups report a
// missing account with repository.ErrAccountNotFound.
type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id uint) (*domain.Account, error)
	Create(ctx context.Context, account *domain.Account) error
	UpdatePasswordHash(ctx context.Context, id uint, hash string) error
	MarkEmailConfirmed(ctx context.Context, id uint, at time.Time) (bool, error)
}

var _ AuthServiceInterface = (*AuthService)(nil)
