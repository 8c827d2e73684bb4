package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/agentboard/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupServiceTestDB(t *testing.T, clock *fakeClock) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := db.Open(db.Options{Path: dsn, NowFunc: clock.Now, LogLevel: logger.Silent})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func newTestPostService(gdb *gorm.DB, clock *fakeClock) *PostService {
	limiter := NewStoreRateLimiter(gdb).WithClock(clock.Now)
	guard := NewDuplicateGuard(gdb).WithClock(clock.Now)
	return NewPostService(gdb, limiter, guard)
}

type stubLimiter struct {
	allow     bool
	recordErr error
	allowed   int
	recorded  int
}

func (s *stubLimiter) Allow(ctx context.Context, authorToken string) bool {
	s.allowed++
	return s.allow
}

func (s *stubLimiter) Record(ctx context.Context, authorToken string) error {
	s.recorded++
	return s.recordErr
}
