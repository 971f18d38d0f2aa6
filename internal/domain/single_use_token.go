package domain

import "time"

// SingleUseToken records a live token by the hex SHA-256 of its rendered form.
type SingleUseToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TokenHash string    `gorm:"uniqueIndex;size:64;not null" json:"-"`
	CreatedAt time.Time `gorm:"index:idx_single_use_tokens_created_at;not null" json:"created_at"`
}
