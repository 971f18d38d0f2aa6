package database

import (
	"context"
	"time"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/domain"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/observability"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	start := time.Now()
	defer func() {
		observability.RecordDatabaseStartupDuration(context.Background(), "migrate", time.Since(start))
	}()
	if err := db.AutoMigrate(
		&domain.Account{},
		&domain.SingleUseToken{},
		&domain.ErrorLog{},
	); err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "migrate", "error")
		return err
	}
	observability.RecordDatabaseStartupEvent(context.Background(), "migrate", "success")
	return nil
}
