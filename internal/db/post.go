package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post 定义了帖子模型，ParentID 为空表示顶层帖子，否则为回复。
type Post struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	Category    string    `gorm:"size:32;not null;index" json:"category"`
	AuthorToken string    `gorm:"size:255;not null;index:idx_posts_author_created,priority:1" json:"author_token"`
	ParentID    *string   `gorm:"size:36;index:idx_posts_parent_created,priority:1" json:"parent_id"`
	Upvotes     int64     `gorm:"not null;default:0" json:"upvotes"`
	CreatedAt   time.Time `gorm:"index:idx_posts_parent_created,priority:2;index:idx_posts_author_created,priority:2" json:"created_at"`
}

// BeforeCreate 在插入前生成主键。
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsReply reports whether the post hangs off another post.
func (p Post) IsReply() bool {
	return p.ParentID != nil && *p.ParentID != ""
}
