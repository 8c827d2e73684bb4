package db

import "time"

// UpvoteRecord 记录某个请求方对帖子的一次点赞，(post_id, ip_address) 唯一。
type UpvoteRecord struct {
	ID        uint   `gorm:"primaryKey"`
	PostID    string `gorm:"size:36;not null;uniqueIndex:idx_upvotes_post_ip,priority:1"`
	IPAddress string `gorm:"column:ip_address;size:128;not null;uniqueIndex:idx_upvotes_post_ip,priority:2"`
	CreatedAt time.Time
}

// TableName 指定自定义表名。
func (UpvoteRecord) TableName() string {
	return "upvotes"
}
