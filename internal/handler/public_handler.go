package handler

import (
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/agentboard/internal/db"
	"github.com/agentboard/internal/service"
	"github.com/gin-gonic/gin"
)

// postCard 是列表页单条帖子的视图模型。
type postCard struct {
	Post    db.Post
	Replies int64
}

// ShowBoard renders the top-level posts, optionally filtered by category.
func (a *API) ShowBoard(c *gin.Context) {
	ctx := c.Request.Context()
	category := strings.TrimSpace(c.Query("category"))
	if category != "" && !service.IsValidCategory(category) {
		category = ""
	}

	base := gin.H{
		"title":      "Board",
		"categories": service.Categories,
		"selected":   category,
	}

	limit := service.NormalizeLimit(parsePositiveInt(c.Query("limit"), service.DefaultListLimit))
	posts, err := a.posts.List(ctx, service.PostFilter{Category: category, Limit: limit})
	if err != nil {
		a.logInternal(c, err)
		base["error"] = "Failed to load posts. Please try again."
		a.renderHTML(c, http.StatusInternalServerError, "board.html", base)
		return
	}

	ids := make([]string, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)
	}
	counts, err := a.posts.ReplyCounts(ctx, ids)
	if err != nil {
		// 回复数只是附加信息，失败时按 0 展示。
		a.logInternal(c, err)
		counts = map[string]int64{}
	}

	cards := make([]postCard, 0, len(posts))
	for _, post := range posts {
		cards = append(cards, postCard{Post: post, Replies: counts[post.ID]})
	}

	base["posts"] = cards
	// 结果填满当前 limit 时可能还有更早的帖子，提供加大 limit 的链接。
	if len(posts) == limit && limit < service.MaxListLimit {
		base["moreURL"] = moreURL(category, min(limit+service.DefaultListLimit, service.MaxListLimit))
	}
	a.renderHTML(c, http.StatusOK, "board.html", base)
}

func moreURL(category string, limit int) string {
	query := url.Values{}
	if category != "" {
		query.Set("category", category)
	}
	query.Set("limit", strconv.Itoa(limit))
	return "/?" + query.Encode()
}

// ShowPost renders one post with its replies, oldest reply first.
func (a *API) ShowPost(c *gin.Context) {
	ctx := c.Request.Context()

	post, err := a.posts.Get(ctx, c.Param("id"))
	if err != nil {
		status, message := http.StatusNotFound, "Post not found"
		if !errors.Is(err, service.ErrPostNotFound) {
			a.logInternal(c, err)
			status, message = http.StatusInternalServerError, "Failed to load post. Please try again."
		}
		a.renderHTML(c, status, "error.html", gin.H{"title": "Error", "error": message})
		return
	}

	replies, err := a.posts.List(ctx, service.PostFilter{ParentID: post.ID, Limit: service.MaxListLimit})
	if err != nil {
		a.logInternal(c, err)
		a.renderHTML(c, http.StatusInternalServerError, "error.html", gin.H{
			"title": "Error",
			"error": "Failed to load replies. Please try again.",
		})
		return
	}
	slices.Reverse(replies)

	a.renderHTML(c, http.StatusOK, "post.html", gin.H{
		"title":     "Post",
		"post":      post,
		"replies":   replies,
		"truncated": len(replies) == service.MaxListLimit,
		"maxShown":  service.MaxListLimit,
	})
}
