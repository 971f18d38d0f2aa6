package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/domain"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/observability"

	"gorm.io/gorm"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountEmailTaken = errors.New("account email already registered")
)

type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id uint) (*domain.Account, error)
	Create(ctx context.Context, account *domain.Account) error
	UpdatePasswordHash(ctx context.Context, id uint, hash string) error
	// MarkEmailConfirmed flips email_confirmed from false to true and reports
	// whether this call performed the transition.
	MarkEmailConfirmed(ctx context.Context, id uint, at time.Time) (bool, error)
}

type GormAccountRepository struct{ db *gorm.DB }

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &GormAccountRepository{db: db}
}

func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func (r *GormAccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var a domain.Account
	err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "account", "find_by_email", "not_found")
			return nil, ErrAccountNotFound
		}
		observability.RecordRepositoryOperation(ctx, "account", "find_by_email", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "account", "find_by_email", "success")
	return &a, nil
}

func (r *GormAccountRepository) FindByID(ctx context.Context, id uint) (*domain.Account, error) {
	var a domain.Account
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "account", "find_by_id", "not_found")
			return nil, ErrAccountNotFound
		}
		observability.RecordRepositoryOperation(ctx, "account", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "account", "find_by_id", "success")
	return &a, nil
}

func (r *GormAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	account.Email = NormalizeEmail(account.Email)
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			observability.RecordRepositoryOperation(ctx, "account", "create", "conflict")
			return ErrAccountEmailTaken
		}
		observability.RecordRepositoryOperation(ctx, "account", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "account", "create", "success")
	return nil
}

func (r *GormAccountRepository) UpdatePasswordHash(ctx context.Context, id uint, hash string) error {
	res := r.db.WithContext(ctx).Model(&domain.Account{}).Where("id = ?", id).
		Updates(map[string]any{"password_hash": hash, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "account", "update_password", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "account", "update_password", "not_found")
		return ErrAccountNotFound
	}
	observability.RecordRepositoryOperation(ctx, "account", "update_password", "success")
	return nil
}

func (r *GormAccountRepository) MarkEmailConfirmed(ctx context.Context, id uint, at time.Time) (bool, error) {
	at = at.UTC()
	res := r.db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ? AND email_confirmed = ?", id, false).
		Updates(map[string]any{"email_confirmed": true, "email_confirmed_at": &at, "updated_at": at})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "account", "confirm_email", "error")
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "account", "confirm_email", "noop")
		return false, nil
	}
	observability.RecordRepositoryOperation(ctx, "account", "confirm_email", "success")
	return true, nil
}
