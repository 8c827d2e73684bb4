package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentboard/internal/clientip"
	"github.com/agentboard/internal/config"
	"github.com/agentboard/internal/db"
	"github.com/agentboard/internal/handler"
	"github.com/agentboard/internal/logging"
	"github.com/agentboard/internal/router"
	"github.com/agentboard/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	gdb, err := db.Open(db.Options{
		Path:     cfg.DatabasePath,
		URL:      cfg.DatabaseURL,
		LogLevel: gormLogLevel(cfg.LogLevel),
	})
	if err != nil {
		return err
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}

	limiter, closeLimiter, err := buildRateLimiter(cfg, gdb)
	if err != nil {
		return err
	}
	defer closeLimiter()

	resolver, err := clientip.NewResolver(cfg.TrustedProxyCIDRs, cfg.TrustAllProxies, cfg.RequesterHashKey)
	if err != nil {
		return err
	}

	api := handler.NewAPI(gdb, handler.Options{
		Limiter:    limiter,
		Guard:      service.NewDuplicateGuard(gdb).WithWindow(cfg.DuplicateWindow),
		Resolver:   resolver,
		MaxPosts:   cfg.RateLimitMaxPosts,
		RateWindow: cfg.RateLimitWindow,
	})

	r, err := router.SetupRouter(api, router.Options{TrustedProxies: cfg.TrustedProxyCIDRs})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", cfg.ListenAddr, "rate_limit_backend", cfg.RateLimitBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func buildRateLimiter(cfg config.AppConfig, gdb *gorm.DB) (service.RateLimiter, func(), error) {
	if cfg.RateLimitBackend != config.RateLimitBackendRedis {
		limiter := service.NewStoreRateLimiter(gdb).WithLimit(cfg.RateLimitMaxPosts, cfg.RateLimitWindow)
		return limiter, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}

	limiter := service.NewRedisRateLimiter(client, cfg.RedisPrefix).WithLimit(cfg.RateLimitMaxPosts, cfg.RateLimitWindow)
	return limiter, func() { client.Close() }, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch logging.ParseLevel(level) {
	case slog.LevelDebug:
		return logger.Info
	case slog.LevelError:
		return logger.Error
	default:
		return logger.Warn
	}
}
