package tokenstore

import (
	"context"
	"time"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

func (s *GormStore) Save(ctx context.Context, token string) error {
	row := &domain.SingleUseToken{TokenHash: Key(token), CreatedAt: s.now().UTC()}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token_hash"}}, DoNothing: true}).
		Create(row).Error
	if err != nil {
		return unavailable("save", err)
	}
	return nil
}

func (s *GormStore) Exists(ctx context.Context, token string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.SingleUseToken{}).
		Where("token_hash = ?", Key(token)).
		Count(&count).Error
	if err != nil {
		return false, unavailable("exists", err)
	}
	return count > 0, nil
}

func (s *GormStore) Revoke(ctx context.Context, token string) error {
	_, err := s.Consume(ctx, token)
	return err
}

func (s *GormStore) Consume(ctx context.Context, token string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("token_hash = ?", Key(token)).
		Delete(&domain.SingleUseToken{})
	if res.Error != nil {
		return false, unavailable("consume", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) PurgeCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff.UTC()).
		Delete(&domain.SingleUseToken{})
	if res.Error != nil {
		return 0, unavailable("purge", res.Error)
	}
	return res.RowsAffected, nil
}
