// Package post は投稿の作成とフィード取得を提供する。
package post

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/socialhub/internal/metrics"
	"github.com/hitoshi/socialhub/internal/model"
	"github.com/hitoshi/socialhub/internal/repository"
	"github.com/hitoshi/socialhub/internal/security"
)

const (
	// DefaultFeedLimit はフィード1ページの既定件数。
	DefaultFeedLimit = 20
	// MaxFeedLimit はフィード1ページの上限件数。
	MaxFeedLimit = 50
)

// CreateInput は投稿作成の入力。
type CreateInput struct {
	Content    string
	Visibility model.Visibility
	Community  string
	ImageURLs  []string
}

// FeedResult はListFeedの戻り値。
type FeedResult struct {
	Posts      []model.PostWithAuthor
	NextCursor string
	HasMore    bool
}

// PostService は投稿のバリデーションと永続化を行うサービス。
type PostService struct {
	repo      repository.PostRepository
	sanitizer security.ContentSanitizerService
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewPostService はPostServiceを生成する。
func NewPostService(
	repo repository.PostRepository,
	sanitizer security.ContentSanitizerService,
	collector metrics.MetricsCollector,
) *PostService {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &PostService{
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   collector,
		now:       time.Now,
	}
}

// Create は投稿を検証して保存する。
// 本文は改行と制御文字だけを正規化して入力のまま保存する。公開範囲と投稿先は省略時に既定値を使う。
func (s *PostService) Create(ctx context.Context, authorID string, in CreateInput) (*model.Post, error) {
	content := strings.TrimSpace(s.sanitizer.SanitizeText(in.Content))
	if !model.ValidPostContent(content) {
		return nil, model.NewInvalidContentError()
	}

	visibility := in.Visibility
	if visibility == "" {
		visibility = model.VisibilityEveryone
	}
	if !visibility.Valid() {
		return nil, model.NewInvalidVisibilityError(string(visibility))
	}

	community := in.Community
	if community == "" {
		community = model.DefaultCommunity
	}
	if !model.ValidCommunity(community) {
		return nil, model.NewInvalidCommunityError(community)
	}

	if len(in.ImageURLs) > model.MaxPostImages {
		return nil, model.NewTooManyImagesError()
	}
	imageURLs := make([]string, 0, len(in.ImageURLs))
	for _, raw := range in.ImageURLs {
		u, ok := s.sanitizer.SanitizeImageURL(raw)
		if !ok {
			return nil, model.NewInvalidInputError(fmt.Sprintf("画像URLが不正です: %s", raw))
		}
		imageURLs = append(imageURLs, u)
	}

	post := &model.Post{
		ID:         uuid.New().String(),
		AuthorID:   authorID,
		Content:    content,
		Visibility: visibility,
		Community:  community,
		ImageURLs:  imageURLs,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, err
	}

	s.metrics.RecordPostCreated(post.Community, len(post.ImageURLs))
	return post, nil
}

// ListFeed は閲覧者向けのフィードを (created_at, id) の降順で返す。
// limit+1件を取得してHasMoreを判定し、最後の投稿の作成時刻とidをNextCursorにする。
func (s *PostService) ListFeed(ctx context.Context, viewerID, cursorStr string, limit int) (*FeedResult, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}

	var cursor model.FeedCursor
	if cursorStr != "" {
		var ok bool
		if cursor, ok = parseFeedCursor(cursorStr); !ok {
			return nil, model.NewInvalidCursorError(cursorStr)
		}
	}

	posts, err := s.repo.ListFeed(ctx, viewerID, cursor, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(posts) > limit
	if hasMore {
		posts = posts[:limit]
	}

	result := &FeedResult{Posts: posts, HasMore: hasMore}
	if hasMore && len(posts) > 0 {
		last := posts[len(posts)-1]
		result.NextCursor = model.FeedCursor{CreatedAt: last.CreatedAt, ID: last.ID}.String()
	}
	if result.Posts == nil {
		result.Posts = []model.PostWithAuthor{}
	}
	return result, nil
}

// parseFeedCursor は "<RFC3339Nano>_<uuid>" 形式のカーソルを解析する。
func parseFeedCursor(raw string) (model.FeedCursor, bool) {
	ts, id, ok := strings.Cut(raw, "_")
	if !ok {
		return model.FeedCursor{}, false
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return model.FeedCursor{}, false
	}
	if _, err := uuid.Parse(id); err != nil {
		return model.FeedCursor{}, false
	}
	return model.FeedCursor{CreatedAt: createdAt, ID: id}, true
}
