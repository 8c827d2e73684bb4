package db

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options 描述打开数据库所需的参数。
type Options struct {
	// Path 为 sqlite 文件路径，URL 为空时使用，空值回退到 agentboard.db。
	Path string
	// URL 为 postgres DSN，非空时优先于 Path。
	URL string
	// NowFunc 决定写入 created_at 的时间源，默认当前 UTC 时间。
	NowFunc  func() time.Time
	LogLevel logger.LogLevel
}

// Open 建立数据库连接并执行自动迁移。
func Open(opts Options) (*gorm.DB, error) {
	nowFunc := opts.NowFunc
	if nowFunc == nil {
		nowFunc = func() time.Time { return time.Now().UTC() }
	}
	logLevel := opts.LogLevel
	if logLevel == 0 {
		logLevel = logger.Warn
	}

	gormConfig := &gorm.Config{
		NowFunc:        nowFunc,
		TranslateError: true,
		Logger:         logger.Default.LogMode(logLevel),
	}

	var dialector gorm.Dialector
	if url := strings.TrimSpace(opts.URL); url != "" {
		dialector = postgres.Open(url)
	} else {
		path := strings.TrimSpace(opts.Path)
		if path == "" {
			path = "agentboard.db"
		}
		if !strings.HasPrefix(path, "file:") {
			if err := ensureParentDir(path); err != nil {
				return nil, err
			}
		}
		dialector = sqlite.Open(path)
	}

	gdb, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, err
	}

	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

// Migrate 为核心模型创建或更新表结构。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&Post{},
		&RateLimitEvent{},
		&UpvoteRecord{},
	)
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
