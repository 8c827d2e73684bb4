package db

import "time"

// RateLimitEvent 每次成功发帖追加一行，只增不改。
type RateLimitEvent struct {
	ID          uint      `gorm:"primaryKey"`
	AuthorToken string    `gorm:"size:255;not null;index:idx_rate_limits_token_created,priority:1"`
	CreatedAt   time.Time `gorm:"index:idx_rate_limits_token_created,priority:2"`
}

// TableName 指定自定义表名。
func (RateLimitEvent) TableName() string {
	return "rate_limits"
}
