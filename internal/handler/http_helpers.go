package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agentboard/internal/logging"
	"github.com/agentboard/internal/service"
	"github.com/gin-gonic/gin"
)

const internalErrorMessage = "Internal server error"

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// respondServiceError 将业务错误映射为状态码，未知错误只在服务端记录详情。
func (a *API) respondServiceError(c *gin.Context, err error) {
	var validation *service.ValidationError
	switch {
	case errors.As(err, &validation):
		respondError(c, http.StatusBadRequest, validation.Message)
	case errors.Is(err, service.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, "Invalid input")
	case errors.Is(err, service.ErrPostNotFound):
		respondError(c, http.StatusNotFound, "Post not found")
	case errors.Is(err, service.ErrRateLimited):
		c.Header("Retry-After", strconv.Itoa(int(a.retryAfter.Seconds())))
		respondError(c, http.StatusTooManyRequests, fmt.Sprintf("Rate limit exceeded. Maximum %d posts per %s.", a.maxPosts, windowLabel(a.retryAfter)))
	case errors.Is(err, service.ErrDuplicateContent):
		respondError(c, http.StatusConflict, "Duplicate content detected. Same post already exists within the last hour.")
	case errors.Is(err, service.ErrAlreadyUpvoted):
		respondError(c, http.StatusBadRequest, "Already upvoted")
	default:
		a.logInternal(c, err)
		respondError(c, http.StatusInternalServerError, internalErrorMessage)
	}
}

func (a *API) logInternal(c *gin.Context, err error) {
	c.Error(err)
	logging.FromContext(c.Request.Context()).Error("request failed",
		"err", err,
		"method", c.Request.Method,
		"path", c.FullPath(),
	)
}

func parsePositiveInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func windowLabel(d time.Duration) string {
	if d == time.Hour {
		return "hour"
	}
	return d.String()
}
