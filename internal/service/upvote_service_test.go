package service

import (
	"context"
	"errors"
	"testing"

	"github.com/agentboard/internal/db"
	"gorm.io/gorm"
)

func createTestPost(t *testing.T, gdb *gorm.DB, clock *fakeClock) *db.Post {
	t.Helper()
	post, err := newTestPostService(gdb, clock).Create(context.Background(), PostInput{
		Content:     "upvote me",
		Category:    "discovery",
		AuthorToken: "tok",
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	return post
}

func TestUpvoteService_OncePerRequester(t *testing.T) {
	clock := newFakeClock()
	gdb := setupServiceTestDB(t, clock)
	post := createTestPost(t, gdb, clock)
	svc := NewUpvoteService(gdb)
	ctx := context.Background()

	updated, err := svc.Upvote(ctx, post.ID, "198.51.100.1")
	if err != nil {
		t.Fatalf("first upvote: %v", err)
	}
	if updated.Upvotes != 1 {
		t.Fatalf("expected 1 upvote, got %d", updated.Upvotes)
	}

	if _, err := svc.Upvote(ctx, post.ID, "198.51.100.1"); !errors.Is(err, ErrAlreadyUpvoted) {
		t.Fatalf("expected ErrAlreadyUpvoted, got %v", err)
	}

	var stored db.Post
	if err := gdb.First(&stored, "id = ?", post.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Upvotes != 1 {
		t.Fatalf("rejected upvote must not change the counter, got %d", stored.Upvotes)
	}

	updated, err = svc.Upvote(ctx, post.ID, "198.51.100.2")
	if err != nil {
		t.Fatalf("second requester: %v", err)
	}
	if updated.Upvotes != 2 {
		t.Fatalf("expected 2 upvotes, got %d", updated.Upvotes)
	}

	var records int64
	gdb.Model(&db.UpvoteRecord{}).Where("post_id = ?", post.ID).Count(&records)
	if records != 2 {
		t.Fatalf("expected 2 upvote records, got %d", records)
	}
}

func TestUpvoteService_MissingPost(t *testing.T) {
	clock := newFakeClock()
	gdb := setupServiceTestDB(t, clock)
	svc := NewUpvoteService(gdb)

	if _, err := svc.Upvote(context.Background(), "missing", "198.51.100.1"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
	var records int64
	gdb.Model(&db.UpvoteRecord{}).Count(&records)
	if records != 0 {
		t.Fatalf("expected no dangling records, got %d", records)
	}
}

func TestUpvoteService_EmptyRequesterIsUnknown(t *testing.T) {
	clock := newFakeClock()
	gdb := setupServiceTestDB(t, clock)
	post := createTestPost(t, gdb, clock)
	svc := NewUpvoteService(gdb)

	if _, err := svc.Upvote(context.Background(), post.ID, ""); err != nil {
		t.Fatalf("upvote: %v", err)
	}
	if _, err := svc.Upvote(context.Background(), post.ID, "unknown"); !errors.Is(err, ErrAlreadyUpvoted) {
		t.Fatalf("expected empty requester to share the unknown bucket, got %v", err)
	}
}

func TestUpvoteService_FallsBackToCompareAndSwap(t *testing.T) {
	clock := newFakeClock()
	gdb := setupServiceTestDB(t, clock)
	post := createTestPost(t, gdb, clock)
	svc := NewUpvoteService(gdb)
	svc.increment = func(*gorm.DB, string) (int64, error) {
		return 0, errors.New("increment unavailable")
	}

	for _, requester := range []string{"a", "b", "c"} {
		if _, err := svc.Upvote(context.Background(), post.ID, requester); err != nil {
			t.Fatalf("upvote %s: %v", requester, err)
		}
	}

	var stored db.Post
	if err := gdb.First(&stored, "id = ?", post.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Upvotes != 3 {
		t.Fatalf("expected fallback to count 3 upvotes, got %d", stored.Upvotes)
	}
}

func TestCompareAndSwapIncrementMissingPost(t *testing.T) {
	clock := newFakeClock()
	gdb := setupServiceTestDB(t, clock)

	affected, err := compareAndSwapIncrement(gdb, "missing")
	if err != nil || affected != 0 {
		t.Fatalf("expected 0 affected without error, got %d, %v", affected, err)
	}
}
