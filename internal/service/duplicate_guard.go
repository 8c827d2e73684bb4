package service

import (
	"context"
	"time"

	"github.com/agentboard/internal/db"
	"gorm.io/gorm"
)

// DuplicateGuard 检查同一 author_token 在窗口内是否已发布完全相同的内容。
type DuplicateGuard struct {
	db     *gorm.DB
	window time.Duration
	now    func() time.Time
}

// NewDuplicateGuard 创建默认 1 小时窗口的去重检查。
func NewDuplicateGuard(gdb *gorm.DB) *DuplicateGuard {
	return &DuplicateGuard{
		db:     gdb,
		window: defaultRateWindow,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithWindow 调整去重窗口。
func (g *DuplicateGuard) WithWindow(d time.Duration) *DuplicateGuard {
	if d > 0 {
		g.window = d
	}
	return g
}

// WithClock 替换时间源。
func (g *DuplicateGuard) WithClock(now func() time.Time) *DuplicateGuard {
	if now != nil {
		g.now = now
	}
	return g
}

// IsDuplicate 内容按字节精确比较。
func (g *DuplicateGuard) IsDuplicate(ctx context.Context, authorToken, content string) (bool, error) {
	windowStart := g.now().Add(-g.window)

	var count int64
	if err := g.db.WithContext(ctx).
		Model(&db.Post{}).
		Where("author_token = ? AND content = ? AND created_at >= ?", authorToken, content, windowStart).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
