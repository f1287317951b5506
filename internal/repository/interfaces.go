// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/socialhub/internal/model"
)

// DBTX はリポジトリが必要とするクエリ実行インターフェース。
// *sql.DB と database.Client のどちらも満たす。
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateProfile はIdPから取得した表示名とアバターを反映する。
	UpdateProfile(ctx context.Context, id, name, image string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索し、紐付くユーザーのプロフィールも返す。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションをユーザーの表示名・アバター付きで取得する。
	// 期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// Create は投稿を作成する。
	Create(ctx context.Context, post *model.Post) error

	// ListFeed は閲覧者に見える投稿を (created_at, id) の降順で取得する。
	// 公開範囲がeveryoneの投稿と、閲覧者自身のonly me投稿が対象。
	// cursorがゼロ値の場合は先頭から、そうでなければcursorより後ろの投稿を取得する。
	ListFeed(ctx context.Context, viewerID string, cursor model.FeedCursor, limit int) ([]model.PostWithAuthor, error)
}

// NotificationRepository は通知データの永続化インターフェース。
type NotificationRepository interface {
	// ListByUser はユーザー宛ての通知をフィルタ付きでcreated_at降順に取得する。
	ListByUser(ctx context.Context, userID string, filter model.NotificationFilter, limit int) ([]model.Notification, error)

	// CountUnread はユーザーの未読通知数を返す。
	CountUnread(ctx context.Context, userID string) (int, error)

	// MarkAllAsRead はユーザーの未読通知を全て既読にし、更新件数を返す。
	// 未読が存在しない場合は0を返す（冪等）。
	MarkAllAsRead(ctx context.Context, userID string, readAt time.Time) (int64, error)
}
