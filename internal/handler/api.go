package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/agentboard/internal/clientip"
	"github.com/agentboard/internal/service"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const defaultSiteName = "agentboard"

// RequesterResolver derives the upvote-uniqueness key from a request.
type RequesterResolver interface {
	RequesterID(req *http.Request) string
}

// Options 汇总 API 可替换的依赖，零值使用默认实现。
type Options struct {
	Limiter  service.RateLimiter
	Guard    *service.DuplicateGuard
	Resolver RequesterResolver
	SiteName string

	// MaxPosts 与 RateWindow 仅用于错误提示和 Retry-After，实际限流由 Limiter 决定。
	MaxPosts   int
	RateWindow time.Duration
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db         *gorm.DB
	posts      *service.PostService
	upvotes    *service.UpvoteService
	requesters RequesterResolver
	siteName   string
	maxPosts   int
	retryAfter time.Duration
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, opts Options) *API {
	resolver := opts.Resolver
	if resolver == nil {
		// 零值 Resolver 不信任任何代理，直接使用对端地址。
		resolver = &clientip.Resolver{}
	}
	siteName := strings.TrimSpace(opts.SiteName)
	if siteName == "" {
		siteName = defaultSiteName
	}
	retryAfter := opts.RateWindow
	if retryAfter <= 0 {
		retryAfter = time.Hour
	}
	maxPosts := opts.MaxPosts
	if maxPosts <= 0 {
		maxPosts = 10
	}

	return &API{
		db:         gdb,
		posts:      service.NewPostService(gdb, opts.Limiter, opts.Guard),
		upvotes:    service.NewUpvoteService(gdb),
		requesters: resolver,
		siteName:   siteName,
		maxPosts:   maxPosts,
		retryAfter: retryAfter,
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}

// SiteName returns the board title used by page templates.
func (a *API) SiteName() string {
	return a.siteName
}

func (a *API) renderHTML(c *gin.Context, status int, template string, data gin.H) {
	payload := gin.H{}
	for key, value := range data {
		payload[key] = value
	}
	if _, exists := payload["siteName"]; !exists {
		payload["siteName"] = a.siteName
	}
	c.HTML(status, template, payload)
}
