package domain

import "time"

type ErrorLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Operation   string    `gorm:"size:64;not null;index:idx_error_logs_operation" json:"operation"`
	Description string    `gorm:"size:1024;not null" json:"description"`
	CreatedAt   time.Time `gorm:"index:idx_error_logs_created_at" json:"created_at"`
}
