package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agentboard/internal/db"
	"github.com/agentboard/internal/logging"
	"gorm.io/gorm"
)

const maxIncrementAttempts = 5

var errIncrementContended = errors.New("upvote increment contended")

// UpvoteService 保证每个 (post, requester) 最多点赞一次，并维护帖子的点赞计数。
type UpvoteService struct {
	db *gorm.DB
	// increment 为首选的原子自增，失败时回退到 compare-and-swap。
	increment func(gdb *gorm.DB, postID string) (int64, error)
}

// NewUpvoteService creates an UpvoteService.
func NewUpvoteService(gdb *gorm.DB) *UpvoteService {
	return &UpvoteService{db: gdb, increment: atomicIncrement}
}

// Upvote records one upvote from requester and returns the updated post.
func (s *UpvoteService) Upvote(ctx context.Context, postID, requester string) (*db.Post, error) {
	requester = strings.TrimSpace(requester)
	if requester == "" {
		requester = "unknown"
	}
	gdb := s.db.WithContext(ctx)

	var post db.Post
	if err := gdb.First(&post, "id = ?", strings.TrimSpace(postID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("load post: %w", err)
	}

	var existing int64
	if err := gdb.Model(&db.UpvoteRecord{}).
		Where("post_id = ? AND ip_address = ?", post.ID, requester).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("check upvote: %w", err)
	}
	if existing > 0 {
		return nil, ErrAlreadyUpvoted
	}

	record := db.UpvoteRecord{PostID: post.ID, IPAddress: requester}
	if err := gdb.Create(&record).Error; err != nil {
		// 并发请求越过了预检查，由唯一索引兜底。
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyUpvoted
		}
		return nil, fmt.Errorf("insert upvote: %w", err)
	}

	affected, err := s.increment(gdb, post.ID)
	if err != nil {
		logging.FromContext(ctx).Warn("atomic upvote increment failed, falling back", "err", err, "post_id", post.ID)
		affected, err = compareAndSwapIncrement(gdb, post.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("increment upvotes: %w", err)
	}
	if affected == 0 {
		return nil, ErrPostNotFound
	}

	if err := gdb.First(&post, "id = ?", post.ID).Error; err != nil {
		return nil, fmt.Errorf("reload post: %w", err)
	}
	return &post, nil
}

func atomicIncrement(gdb *gorm.DB, postID string) (int64, error) {
	result := gdb.Model(&db.Post{}).
		Where("id = ?", postID).
		UpdateColumn("upvotes", gorm.Expr("upvotes + ?", 1))
	return result.RowsAffected, result.Error
}

// compareAndSwapIncrement reads the counter and writes current+1 only if nobody
// changed it in between, retrying a bounded number of times.
func compareAndSwapIncrement(gdb *gorm.DB, postID string) (int64, error) {
	for attempt := 0; attempt < maxIncrementAttempts; attempt++ {
		var current db.Post
		if err := gdb.Select("id", "upvotes").First(&current, "id = ?", postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, nil
			}
			return 0, err
		}

		result := gdb.Model(&db.Post{}).
			Where("id = ? AND upvotes = ?", postID, current.Upvotes).
			UpdateColumn("upvotes", current.Upvotes+1)
		if result.Error != nil {
			return 0, result.Error
		}
		if result.RowsAffected == 1 {
			return 1, nil
		}
	}
	return 0, errIncrementContended
}
