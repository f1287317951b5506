// Package api はRPCプロシージャのパスと入出力の型を定義する。
// サーバー側のハンドラとクライアント側のコンポーネントが共有する。
package api

import "time"

// プロシージャパス
const (
	ProcPostsCreate                = "posts.create"
	ProcPostsFeed                  = "posts.feed"
	ProcNotificationsList          = "notifications.list"
	ProcNotificationsMarkAllAsRead = "notifications.markAllAsRead"
	ProcAuthGetSession             = "auth.getSession"
)

// RPC以外のエンドポイント
const (
	// CSRFTokenPath はCSRFトークンを発行するエンドポイント。
	CSRFTokenPath = "/api/auth/csrf"
	// NotificationStreamPath は通知変更イベントのWebSocketエンドポイント。
	NotificationStreamPath = "/api/notifications/stream"
)

// CSRFToken は CSRFTokenPath のレスポンス。
type CSRFToken struct {
	CSRFToken string `json:"csrfToken"`
}

// CreatePostInput は posts.create の入力。
type CreatePostInput struct {
	Content    string   `json:"content"`
	Visibility string   `json:"visibility"`
	Community  string   `json:"community"`
	ImageURLs  []string `json:"imageUrls"`
}

// Post は投稿のレスポンス表現。
type Post struct {
	ID          string    `json:"id"`
	AuthorID    string    `json:"authorId"`
	AuthorName  string    `json:"authorName,omitempty"`
	AuthorImage string    `json:"authorImage,omitempty"`
	Content     string    `json:"content"`
	Visibility  string    `json:"visibility"`
	Community   string    `json:"community"`
	ImageURLs   []string  `json:"imageUrls"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FeedInput は posts.feed の入力。
type FeedInput struct {
	Cursor string `json:"cursor,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// FeedOutput は posts.feed の出力。
type FeedOutput struct {
	Posts      []Post `json:"posts"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
}

// NotificationListInput は notifications.list の入力。
// Filter は all, unread, likes, replies, follows, mentions のいずれか。
type NotificationListInput struct {
	Filter string `json:"filter,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// Notification は通知のレスポンス表現。
type Notification struct {
	ID        string     `json:"id"`
	Category  string     `json:"category"`
	Message   string     `json:"message"`
	PostID    *string    `json:"postId,omitempty"`
	IsRead    bool       `json:"isRead"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// NotificationListOutput は notifications.list の出力。
type NotificationListOutput struct {
	Filter        string         `json:"filter"`
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
}

// MarkAllAsReadOutput は notifications.markAllAsRead の出力。
type MarkAllAsReadOutput struct {
	Updated int64 `json:"updated"`
}

// Session はセッションのレスポンス表現。
type Session struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Image     string    `json:"image,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}
