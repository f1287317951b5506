package post

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/socialhub/internal/model"
	"github.com/hitoshi/socialhub/internal/repository"
	"github.com/hitoshi/socialhub/internal/security"
)

// --- モック定義 ---

type mockPostRepo struct {
	createFn   func(ctx context.Context, post *model.Post) error
	listFeedFn func(ctx context.Context, viewerID string, cursor model.FeedCursor, limit int) ([]model.PostWithAuthor, error)
}

func (m *mockPostRepo) Create(ctx context.Context, post *model.Post) error {
	if m.createFn != nil {
		return m.createFn(ctx, post)
	}
	return nil
}

func (m *mockPostRepo) ListFeed(ctx context.Context, viewerID string, cursor model.FeedCursor, limit int) ([]model.PostWithAuthor, error) {
	if m.listFeedFn != nil {
		return m.listFeedFn(ctx, viewerID, cursor, limit)
	}
	return nil, nil
}

var _ repository.PostRepository = (*mockPostRepo)(nil)

type countingMetrics struct {
	posts  int
	images int
}

func (c *countingMetrics) RecordHTTPRequest(string, int, time.Duration) {}
func (c *countingMetrics) RecordPostCreated(_ string, imageCount int) {
	c.posts++
	c.images += imageCount
}
func (c *countingMetrics) RecordNotificationsMarkedRead(int64) {}
func (c *countingMetrics) RecordRealtimeConnections(int) {}
func (c *countingMetrics) RecordCleanupDeleted(string, int64) {}

func newService(repo *mockPostRepo) (*PostService, *countingMetrics) {
	m := &countingMetrics{}
	return NewPostService(repo, security.NewContentSanitizer(), m), m
}

func apiErrorCode(t *testing.T, err error) string {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *model.APIError", err)
	}
	return apiErr.Code
}

// --- テスト ---

func TestCreate_Success_AppliesDefaultsAndNormalizes(t *testing.T) {
	var saved *model.Post
	svc, m := newService(&mockPostRepo{
		createFn: func(ctx context.Context, post *model.Post) error {
			saved = post
			return nil
		},
	})

	post, err := svc.Create(context.Background(), "user-1", CreateInput{
		Content:   "  a<b and x < y\r\n<p></p>  ",
		ImageURLs: []string{"https://cdn.example.com/a.png", "https://cdn.example.com/b.png"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if saved == nil || saved != post {
		t.Fatal("post not persisted")
	}
	if want := "a<b and x < y\n<p></p>"; post.Content != want {
		t.Errorf("Content = %q, want %q", post.Content, want)
	}
	if post.Visibility != model.VisibilityEveryone {
		t.Errorf("Visibility = %q, want everyone", post.Visibility)
	}
	if post.Community != model.DefaultCommunity {
		t.Errorf("Community = %q, want %q", post.Community, model.DefaultCommunity)
	}
	if post.AuthorID != "user-1" || post.ID == "" {
		t.Errorf("post = %+v", post)
	}
	if len(post.ImageURLs) != 2 || post.ImageURLs[1] != "https://cdn.example.com/b.png" {
		t.Errorf("ImageURLs = %v", post.ImageURLs)
	}
	if m.posts != 1 || m.images != 2 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestCreate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		in   CreateInput
		code string
	}{
		{"empty content", CreateInput{Content: "   "}, model.ErrCodeInvalidContent},
		{"control chars only", CreateInput{Content: "\x00\x1b\u007f"}, model.ErrCodeInvalidContent},
		{"too long", CreateInput{Content: strings.Repeat("a", model.MaxPostContentLength+1)}, model.ErrCodeInvalidContent},
		{"bad visibility", CreateInput{Content: "hi", Visibility: "friends"}, model.ErrCodeInvalidVisibility},
		{"bad community", CreateInput{Content: "hi", Community: "Cats"}, model.ErrCodeInvalidCommunity},
		{
			"too many images",
			CreateInput{Content: "hi", ImageURLs: []string{"https://a/1", "https://a/2", "https://a/3", "https://a/4", "https://a/5"}},
			model.ErrCodeTooManyImages,
		},
		{"insecure image url", CreateInput{Content: "hi", ImageURLs: []string{"http://cdn.example.com/a.png"}}, model.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(&mockPostRepo{
				createFn: func(ctx context.Context, post *model.Post) error {
					t.Error("repository should not be called on validation error")
					return nil
				},
			})
			_, err := svc.Create(context.Background(), "user-1", tt.in)
			if got := apiErrorCode(t, err); got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
			if m.posts != 0 {
				t.Error("metrics should not record failed posts")
			}
		})
	}
}

func TestCreate_OnlyMeInCommunity(t *testing.T) {
	svc, _ := newService(&mockPostRepo{})

	post, err := svc.Create(context.Background(), "user-1", CreateInput{
		Content: "secret ramen", Visibility: model.VisibilityOnlyMe, Community: "Ramen lovers",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if post.Visibility != model.VisibilityOnlyMe || post.Community != "Ramen lovers" {
		t.Errorf("post = %+v", post)
	}
}

func TestCreate_RepositoryError(t *testing.T) {
	svc, _ := newService(&mockPostRepo{
		createFn: func(ctx context.Context, post *model.Post) error {
			return errors.New("db down")
		},
	})
	if _, err := svc.Create(context.Background(), "user-1", CreateInput{Content: "hi"}); err == nil {
		t.Fatal("expected error")
	}
}

func makePosts(n int, newest time.Time) []model.PostWithAuthor {
	posts := make([]model.PostWithAuthor, n)
	for i := range posts {
		posts[i].ID = string(rune('a' + i))
		posts[i].CreatedAt = newest.Add(-time.Duration(i) * time.Minute)
	}
	return posts
}

func TestListFeed_HasMoreSetsCursor(t *testing.T) {
	newest := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	var gotLimit int
	svc, _ := newService(&mockPostRepo{
		listFeedFn: func(ctx context.Context, viewerID string, cursor model.FeedCursor, limit int) ([]model.PostWithAuthor, error) {
			gotLimit = limit
			return makePosts(limit, newest), nil
		},
	})

	result, err := svc.ListFeed(context.Background(), "viewer", "", 3)
	if err != nil {
		t.Fatalf("ListFeed() error = %v", err)
	}
	if gotLimit != 4 {
		t.Errorf("repository limit = %d, want 4", gotLimit)
	}
	if len(result.Posts) != 3 || !result.HasMore {
		t.Fatalf("posts = %d, hasMore = %v", len(result.Posts), result.HasMore)
	}
	want := newest.Add(-2*time.Minute).Format(time.RFC3339Nano) + "_c"
	if result.NextCursor != want {
		t.Errorf("NextCursor = %q, want %q", result.NextCursor, want)
	}
}

func TestListFeed_LastPage(t *testing.T) {
	svc, _ := newService(&mockPostRepo{})

	result, err := svc.ListFeed(context.Background(), "viewer", "", 0)
	if err != nil {
		t.Fatalf("ListFeed() error = %v", err)
	}
	if result.HasMore || result.NextCursor != "" {
		t.Errorf("result = %+v", result)
	}
	if result.Posts == nil {
		t.Error("Posts should be an empty slice, not nil")
	}
}

func TestListFeed_CursorAndLimitClamp(t *testing.T) {
	cursor := model.FeedCursor{
		CreatedAt: time.Date(2026, 4, 1, 12, 0, 0, 5, time.UTC),
		ID:        "5b1e0c38-6f3a-4f0e-9b0e-2a7c1f4d9e10",
	}
	svc, _ := newService(&mockPostRepo{
		listFeedFn: func(ctx context.Context, viewerID string, got model.FeedCursor, limit int) ([]model.PostWithAuthor, error) {
			if !got.CreatedAt.Equal(cursor.CreatedAt) || got.ID != cursor.ID {
				t.Errorf("cursor = %+v, want %+v", got, cursor)
			}
			if limit != MaxFeedLimit+1 {
				t.Errorf("limit = %d, want %d", limit, MaxFeedLimit+1)
			}
			return nil, nil
		},
	})

	if _, err := svc.ListFeed(context.Background(), "viewer", cursor.String(), 500); err != nil {
		t.Fatalf("ListFeed() error = %v", err)
	}
}

// 同じ作成時刻の投稿がページ境界をまたいでも、次ページのカーソルがidを持つ。
func TestListFeed_SameTimestampCursorCarriesID(t *testing.T) {
	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	ids := []string{
		"f0000000-0000-4000-8000-000000000003",
		"f0000000-0000-4000-8000-000000000002",
		"f0000000-0000-4000-8000-000000000001",
	}
	var cursors []model.FeedCursor
	svc, _ := newService(&mockPostRepo{
		listFeedFn: func(ctx context.Context, viewerID string, cursor model.FeedCursor, limit int) ([]model.PostWithAuthor, error) {
			cursors = append(cursors, cursor)
			var posts []model.PostWithAuthor
			for _, id := range ids {
				if !cursor.IsZero() && id >= cursor.ID {
					continue
				}
				var p model.PostWithAuthor
				p.ID, p.CreatedAt = id, at
				posts = append(posts, p)
			}
			if len(posts) > limit {
				posts = posts[:limit]
			}
			return posts, nil
		},
	})

	var seen []string
	cursor := ""
	for page := 0; page < len(ids)+1; page++ {
		result, err := svc.ListFeed(context.Background(), "viewer", cursor, 1)
		if err != nil {
			t.Fatalf("ListFeed() page %d error = %v", page, err)
		}
		for _, p := range result.Posts {
			seen = append(seen, p.ID)
		}
		if !result.HasMore {
			break
		}
		cursor = result.NextCursor
	}

	if strings.Join(seen, ",") != strings.Join(ids, ",") {
		t.Errorf("pages = %v, want %v", seen, ids)
	}
	if len(cursors) < 2 || cursors[1].ID != ids[0] || !cursors[1].CreatedAt.Equal(at) {
		t.Errorf("second page cursor = %+v, want id %s at %v", cursors, ids[0], at)
	}
}

func TestListFeed_InvalidCursor(t *testing.T) {
	svc, _ := newService(&mockPostRepo{})

	for _, raw := range []string{
		"yesterday",
		"2026-04-01T12:00:00Z",
		"2026-04-01T12:00:00Z_not-a-uuid",
		"today_5b1e0c38-6f3a-4f0e-9b0e-2a7c1f4d9e10",
	} {
		_, err := svc.ListFeed(context.Background(), "viewer", raw, 10)
		if got := apiErrorCode(t, err); got != model.ErrCodeInvalidCursor {
			t.Errorf("ListFeed(%q) code = %q, want %q", raw, got, model.ErrCodeInvalidCursor)
		}
	}
}
