package handler

import (
	"net/http"
	"strings"

	"github.com/agentboard/internal/logging"
	"github.com/agentboard/internal/service"
	"github.com/gin-gonic/gin"
)

type postRequest struct {
	Content     string `json:"content"`
	Category    string `json:"category"`
	AuthorToken string `json:"author_token"`
}

func (r postRequest) input() service.PostInput {
	return service.PostInput{
		Content:     r.Content,
		Category:    r.Category,
		AuthorToken: r.AuthorToken,
	}
}

// CreatePost 创建顶层帖子。
func (a *API) CreatePost(c *gin.Context) {
	var req postRequest
	if !bindJSON(c, &req, "Invalid JSON body") {
		return
	}

	post, err := a.posts.Create(c.Request.Context(), req.input())
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	logging.FromContext(c.Request.Context()).Info("post created", "post_id", post.ID, "category", post.Category)
	c.JSON(http.StatusCreated, gin.H{"success": true, "post": post})
}

// CreateReply 在顶层帖子下创建回复。
func (a *API) CreateReply(c *gin.Context) {
	var req postRequest
	if !bindJSON(c, &req, "Invalid JSON body") {
		return
	}

	post, err := a.posts.Reply(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	logging.FromContext(c.Request.Context()).Info("reply created", "post_id", post.ID, "parent_id", *post.ParentID)
	c.JSON(http.StatusCreated, gin.H{"success": true, "post": post})
}

// ListPosts 按分类和父帖过滤，不带 parent_id 时只返回顶层帖子。
// limit 默认 50，超过 service.MaxListLimit (100) 时按 100 返回。
func (a *API) ListPosts(c *gin.Context) {
	filter := service.PostFilter{
		Category: strings.TrimSpace(c.Query("category")),
		ParentID: strings.TrimSpace(c.Query("parent_id")),
		Limit:    parsePositiveInt(c.Query("limit"), service.DefaultListLimit),
	}

	posts, err := a.posts.List(c.Request.Context(), filter)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// GetPost 获取单个帖子。
func (a *API) GetPost(c *gin.Context) {
	post, err := a.posts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": post})
}

// UpvotePost 为帖子点赞，同一请求方对同一帖子只能点赞一次。
func (a *API) UpvotePost(c *gin.Context) {
	requester := a.requesters.RequesterID(c.Request)

	post, err := a.upvotes.Upvote(c.Request.Context(), c.Param("id"), requester)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "post": post})
}
