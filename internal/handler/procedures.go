package handler

import (
	"context"

	"github.com/hitoshi/socialhub/internal/api"
	"github.com/hitoshi/socialhub/internal/middleware"
	"github.com/hitoshi/socialhub/internal/model"
	"github.com/hitoshi/socialhub/internal/notification"
	"github.com/hitoshi/socialhub/internal/post"
	"github.com/hitoshi/socialhub/internal/rpc"
)

// PostServiceInterface は投稿プロシージャが必要とするサービスインターフェース。
type PostServiceInterface interface {
	Create(ctx context.Context, authorID string, in post.CreateInput) (*model.Post, error)
	ListFeed(ctx context.Context, viewerID, cursor string, limit int) (*post.FeedResult, error)
}

// NotificationServiceInterface は通知プロシージャが必要とするサービスインターフェース。
type NotificationServiceInterface interface {
	List(ctx context.Context, userID, filterKey string, limit int) (*notification.ListResult, error)
	MarkAllAsRead(ctx context.Context, userID string) (int64, error)
}

// Procedures はRPCプロシージャのハンドラー群。
// 全プロシージャはセッションミドルウェアの内側で実行される前提とする。
type Procedures struct {
	posts         PostServiceInterface
	notifications NotificationServiceInterface
}

// NewProcedures はProceduresを生成する。
func NewProcedures(posts PostServiceInterface, notifications NotificationServiceInterface) *Procedures {
	return &Procedures{
		posts:         posts,
		notifications: notifications,
	}
}

// Register はサーバーに全プロシージャを登録する。
func (p *Procedures) Register(s *rpc.Server) {
	s.Mutation(api.ProcPostsCreate, p.createPost)
	s.Query(api.ProcPostsFeed, p.feed)
	s.Query(api.ProcNotificationsList, p.listNotifications)
	s.Mutation(api.ProcNotificationsMarkAllAsRead, p.markAllAsRead)
	s.Query(api.ProcAuthGetSession, p.getSession)
}

func sessionFrom(ctx context.Context) (*model.Session, error) {
	session, ok := middleware.SessionFromContext(ctx)
	if !ok {
		return nil, model.NewUnauthorizedError()
	}
	return session, nil
}

// createPost は posts.create を処理する。
func (p *Procedures) createPost(ctx context.Context, input rpc.Input) (any, error) {
	session, err := sessionFrom(ctx)
	if err != nil {
		return nil, err
	}

	var in api.CreatePostInput
	if err := input.Decode(&in); err != nil {
		return nil, err
	}

	created, err := p.posts.Create(ctx, session.UserID, post.CreateInput{
		Content:    in.Content,
		Visibility: model.Visibility(in.Visibility),
		Community:  in.Community,
		ImageURLs:  in.ImageURLs,
	})
	if err != nil {
		return nil, err
	}

	out := toPostResponse(model.PostWithAuthor{Post: *created})
	out.AuthorName = session.UserName
	out.AuthorImage = session.UserImage
	return out, nil
}

// feed は posts.feed を処理する。
func (p *Procedures) feed(ctx context.Context, input rpc.Input) (any, error) {
	session, err := sessionFrom(ctx)
	if err != nil {
		return nil, err
	}

	var in api.FeedInput
	if err := input.Decode(&in); err != nil {
		return nil, err
	}

	result, err := p.posts.ListFeed(ctx, session.UserID, in.Cursor, in.Limit)
	if err != nil {
		return nil, err
	}

	posts := make([]api.Post, 0, len(result.Posts))
	for _, pw := range result.Posts {
		posts = append(posts, toPostResponse(pw))
	}
	return api.FeedOutput{
		Posts:      posts,
		NextCursor: result.NextCursor,
		HasMore:    result.HasMore,
	}, nil
}

// listNotifications は notifications.list を処理する。
func (p *Procedures) listNotifications(ctx context.Context, input rpc.Input) (any, error) {
	session, err := sessionFrom(ctx)
	if err != nil {
		return nil, err
	}

	var in api.NotificationListInput
	if err := input.Decode(&in); err != nil {
		return nil, err
	}

	result, err := p.notifications.List(ctx, session.UserID, in.Filter, in.Limit)
	if err != nil {
		return nil, err
	}

	items := make([]api.Notification, 0, len(result.Notifications))
	for _, n := range result.Notifications {
		items = append(items, toNotificationResponse(n))
	}
	return api.NotificationListOutput{
		Filter:        result.Filter,
		Notifications: items,
		UnreadCount:   result.UnreadCount,
	}, nil
}

// markAllAsRead は notifications.markAllAsRead を処理する。入力は使わない。
func (p *Procedures) markAllAsRead(ctx context.Context, _ rpc.Input) (any, error) {
	session, err := sessionFrom(ctx)
	if err != nil {
		return nil, err
	}

	updated, err := p.notifications.MarkAllAsRead(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return api.MarkAllAsReadOutput{Updated: updated}, nil
}

// getSession は auth.getSession を処理する。
func (p *Procedures) getSession(ctx context.Context, _ rpc.Input) (any, error) {
	session, err := sessionFrom(ctx)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(session), nil
}

func toPostResponse(p model.PostWithAuthor) api.Post {
	images := p.ImageURLs
	if images == nil {
		images = []string{}
	}
	return api.Post{
		ID:          p.ID,
		AuthorID:    p.AuthorID,
		AuthorName:  p.AuthorName,
		AuthorImage: p.AuthorImage,
		Content:     p.Content,
		Visibility:  string(p.Visibility),
		Community:   p.Community,
		ImageURLs:   images,
		CreatedAt:   p.CreatedAt,
	}
}

func toNotificationResponse(n model.Notification) api.Notification {
	return api.Notification{
		ID:        n.ID,
		Category:  string(n.Category),
		Message:   n.Message,
		PostID:    n.PostID,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}
