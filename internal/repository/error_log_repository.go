package repository

import (
	"context"
	"time"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/domain"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/observability"

	"gorm.io/gorm"
)

const maxErrorLogDescription = 1024

type ErrorLogRepository interface {
	Create(ctx context.Context, operation, description string) error
	ListPaged(ctx context.Context, req PageRequest) (PageResult[domain.ErrorLog], error)
}

type GormErrorLogRepository struct{ db *gorm.DB }

func NewErrorLogRepository(db *gorm.DB) ErrorLogRepository {
	return &GormErrorLogRepository{db: db}
}

func (r *GormErrorLogRepository) Create(ctx context.Context, operation, description string) error {
	if len(description) > maxErrorLogDescription {
		description = description[:maxErrorLogDescription]
	}
	entry := &domain.ErrorLog{Operation: operation, Description: description, CreatedAt: time.Now().UTC()}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "error_log", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "error_log", "create", "success")
	return nil
}

func (r *GormErrorLogRepository) ListPaged(ctx context.Context, req PageRequest) (PageResult[domain.ErrorLog], error) {
	normalized := normalizePageRequest(req)
	result := PageResult[domain.ErrorLog]{
		Page:     normalized.Page,
		PageSize: normalized.PageSize,
	}

	base := r.db.WithContext(ctx).Model(&domain.ErrorLog{}).Session(&gorm.Session{})
	if err := base.Count(&result.Total).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "error_log", "list_paged", "error")
		return PageResult[domain.ErrorLog]{}, err
	}
	offset := (normalized.Page - 1) * normalized.PageSize
	if err := base.Order("id desc").Offset(offset).Limit(normalized.PageSize).Find(&result.Items).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "error_log", "list_paged", "error")
		return PageResult[domain.ErrorLog]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, normalized.PageSize)
	observability.RecordRepositoryOperation(ctx, "error_log", "list_paged", "success")
	return result, nil
}
