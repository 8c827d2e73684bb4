package service

import (
	"context"
	"time"

	"github.com/agentboard/internal/db"
	"github.com/agentboard/internal/logging"
	"gorm.io/gorm"
)

const (
	defaultRateWindow   = time.Hour
	defaultMaxPerWindow = 10
)

// RateLimiter 控制每个 author_token 在窗口内的发帖次数。
// Allow 出错时必须返回 false（fail closed）。
type RateLimiter interface {
	Allow(ctx context.Context, authorToken string) bool
	Record(ctx context.Context, authorToken string) error
}

// StoreRateLimiter 基于 rate_limits 表统计滑动窗口内的发帖事件。
type StoreRateLimiter struct {
	db     *gorm.DB
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewStoreRateLimiter 创建默认 1 小时 10 次的限流器。
func NewStoreRateLimiter(gdb *gorm.DB) *StoreRateLimiter {
	return &StoreRateLimiter{
		db:     gdb,
		limit:  defaultMaxPerWindow,
		window: defaultRateWindow,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithLimit 调整窗口与次数上限，非正值保持原设置。
func (l *StoreRateLimiter) WithLimit(limit int, window time.Duration) *StoreRateLimiter {
	if limit > 0 {
		l.limit = limit
	}
	if window > 0 {
		l.window = window
	}
	return l
}

// WithClock 替换时间源，主要用于测试。
func (l *StoreRateLimiter) WithClock(now func() time.Time) *StoreRateLimiter {
	if now != nil {
		l.now = now
	}
	return l
}

// Window 返回限流窗口长度。
func (l *StoreRateLimiter) Window() time.Duration {
	return l.window
}

// Allow reports whether authorToken has posted fewer than limit times in the window.
func (l *StoreRateLimiter) Allow(ctx context.Context, authorToken string) bool {
	windowStart := l.now().Add(-l.window)

	var count int64
	if err := l.db.WithContext(ctx).
		Model(&db.RateLimitEvent{}).
		Where("author_token = ? AND created_at >= ?", authorToken, windowStart).
		Count(&count).Error; err != nil {
		logging.FromContext(ctx).Error("rate limit check failed", "err", err)
		return false
	}
	return count < int64(l.limit)
}

// Record appends one event for authorToken at the current time.
func (l *StoreRateLimiter) Record(ctx context.Context, authorToken string) error {
	event := db.RateLimitEvent{AuthorToken: authorToken, CreatedAt: l.now()}
	return l.db.WithContext(ctx).Create(&event).Error
}
