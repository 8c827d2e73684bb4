package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agentboard/internal/db"
	"github.com/agentboard/internal/logging"
	"gorm.io/gorm"
)

const (
	// MaxContentLength counts Unicode code points.
	MaxContentLength = 5000

	DefaultListLimit = 50
	MaxListLimit     = 100
)

// Categories lists the accepted post categories in display order.
var Categories = []string{"discovery", "pattern", "question", "warning", "general"}

var categorySet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(Categories))
	for _, c := range Categories {
		set[c] = struct{}{}
	}
	return set
}()

// IsValidCategory reports whether category belongs to the fixed enumeration.
func IsValidCategory(category string) bool {
	_, ok := categorySet[category]
	return ok
}

// PostService wraps post related database operations.
type PostService struct {
	db      *gorm.DB
	limiter RateLimiter
	guard   *DuplicateGuard
}

// PostInput represents fields accepted when creating a post or reply.
type PostInput struct {
	Content     string
	Category    string
	AuthorToken string
}

// PostFilter describes filters for listing posts. An empty ParentID selects
// top-level posts only.
type PostFilter struct {
	Category string
	ParentID string
	Limit    int
}

// NewPostService creates a PostService. Nil collaborators fall back to the
// store-backed defaults.
func NewPostService(gdb *gorm.DB, limiter RateLimiter, guard *DuplicateGuard) *PostService {
	if limiter == nil {
		limiter = NewStoreRateLimiter(gdb)
	}
	if guard == nil {
		guard = NewDuplicateGuard(gdb)
	}
	return &PostService{db: gdb, limiter: limiter, guard: guard}
}

// Create validates and persists a top-level post.
func (s *PostService) Create(ctx context.Context, input PostInput) (*db.Post, error) {
	return s.create(ctx, input, nil)
}

// Reply validates and persists a reply to an existing top-level post.
func (s *PostService) Reply(ctx context.Context, parentID string, input PostInput) (*db.Post, error) {
	return s.create(ctx, input, &parentID)
}

func (s *PostService) create(ctx context.Context, input PostInput, parentID *string) (*db.Post, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	if parentID != nil {
		parent, err := s.Get(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent.IsReply() {
			return nil, invalid("Replies can only be attached to top-level posts.")
		}
		parentID = &parent.ID
	}

	if !s.limiter.Allow(ctx, input.AuthorToken) {
		return nil, ErrRateLimited
	}

	duplicate, err := s.guard.IsDuplicate(ctx, input.AuthorToken, input.Content)
	if err != nil {
		return nil, fmt.Errorf("check duplicate content: %w", err)
	}
	if duplicate {
		return nil, ErrDuplicateContent
	}

	post := db.Post{
		Content:     input.Content,
		Category:    input.Category,
		AuthorToken: input.AuthorToken,
		ParentID:    parentID,
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}

	// 记录失败只会让后续限流略微少计，不影响本次结果。
	if err := s.limiter.Record(ctx, input.AuthorToken); err != nil {
		logging.FromContext(ctx).Warn("record rate limit event failed", "err", err, "post_id", post.ID)
	}

	return &post, nil
}

func validateInput(input PostInput) error {
	if strings.TrimSpace(input.Content) == "" ||
		strings.TrimSpace(input.Category) == "" ||
		strings.TrimSpace(input.AuthorToken) == "" {
		return invalid("Missing required fields: content, category, author_token")
	}
	if utf8.RuneCountInString(input.Content) > MaxContentLength {
		return invalid(fmt.Sprintf("Content too long. Maximum %d characters.", MaxContentLength))
	}
	if !IsValidCategory(input.Category) {
		return invalid("Invalid category. Must be one of: " + strings.Join(Categories, ", "))
	}
	return nil
}

// Get fetches a post by id.
func (s *PostService) Get(ctx context.Context, id string) (*db.Post, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrPostNotFound
	}

	var post db.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("load post: %w", err)
	}
	return &post, nil
}

// List returns posts newest first. Replies never appear unless ParentID is set.
// Limit defaults to DefaultListLimit and is capped at MaxListLimit, so a caller
// asking for more than MaxListLimit rows gets MaxListLimit.
func (s *PostService) List(ctx context.Context, filter PostFilter) ([]db.Post, error) {
	query := s.db.WithContext(ctx).Model(&db.Post{})

	if category := strings.TrimSpace(filter.Category); category != "" {
		query = query.Where("category = ?", category)
	}
	if parentID := strings.TrimSpace(filter.ParentID); parentID != "" {
		query = query.Where("parent_id = ?", parentID)
	} else {
		query = query.Where("parent_id IS NULL")
	}

	var posts []db.Post
	if err := query.
		Order("created_at desc").
		Order("id desc").
		Limit(NormalizeLimit(filter.Limit)).
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	if posts == nil {
		posts = []db.Post{}
	}
	return posts, nil
}

// ReplyCounts returns the number of replies for each of the given parent ids.
// Parents without replies are absent from the map.
func (s *PostService) ReplyCounts(ctx context.Context, parentIDs []string) (map[string]int64, error) {
	result := make(map[string]int64, len(parentIDs))
	if len(parentIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		ParentID string
		Total    int64
	}
	if err := s.db.WithContext(ctx).
		Model(&db.Post{}).
		Select("parent_id, COUNT(*) AS total").
		Where("parent_id IN ?", parentIDs).
		Group("parent_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count replies: %w", err)
	}

	for _, row := range rows {
		result[row.ParentID] = row.Total
	}
	return result, nil
}

// NormalizeLimit clamps a requested list size to 1..MaxListLimit, using the
// default for non-positive input.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
