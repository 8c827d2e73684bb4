package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/agentboard/internal/handler"
	"github.com/agentboard/internal/logging"
	"github.com/agentboard/internal/view"
	"github.com/gin-gonic/gin"
)

// Options 控制路由层的可选行为。
type Options struct {
	// TrustedProxies 传给 gin，仅影响访问日志中的 client_ip。
	TrustedProxies []string
	// Now 为模板中的相对时间提供时间源，默认 time.Now。
	Now func() time.Time
}

// SetupRouter 配置 Gin 引擎、中间件和路由
func SetupRouter(api *handler.API, opts Options) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, err
	}

	r.Use(logging.RequestID(), logging.RequestLog())
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.FromContext(c.Request.Context()).Error("panic recovered", "panic", recovered, "path", c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}))

	tmpl, err := view.Templates(opts.Now)
	if err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(tmpl)

	r.GET("/healthz", api.HealthCheck)

	// 页面
	r.GET("/", api.ShowBoard)
	r.GET("/post/:id", api.ShowPost)

	// JSON API
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/posts", api.ListPosts)
		apiGroup.POST("/posts", api.CreatePost)
		apiGroup.GET("/posts/:id", api.GetPost)
		apiGroup.POST("/posts/:id/reply", api.CreateReply)
		apiGroup.POST("/posts/:id/upvote", api.UpvotePost)
	}

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.HTML(http.StatusNotFound, "error.html", gin.H{
			"title":    "Not found",
			"siteName": api.SiteName(),
			"error":    "Page not found",
		})
	})

	return r, nil
}
