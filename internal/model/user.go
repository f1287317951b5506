// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
type User struct {
	ID        string
	Email     string
	Name      string
	Image     string // アバター画像のURL（未設定の場合は空）
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
// UserName と UserImage は検索時に紐付くユーザーから読み込んだ現在のプロフィール。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time

	UserName  string
	UserImage string
}

// Session は認証済みユーザーのログインセッションを表す。
// ページ描画やRPC呼び出しにはこの値を明示的に渡す。
type Session struct {
	ID        string
	UserID    string
	UserName  string
	UserImage string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired はセッションが指定時刻の時点で期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
