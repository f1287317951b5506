package model

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Visibility は投稿の公開範囲を表す。
type Visibility string

const (
	// VisibilityEveryone は全ユーザーに公開する。
	VisibilityEveryone Visibility = "everyone"
	// VisibilityOnlyMe は投稿者本人のみに公開する。
	VisibilityOnlyMe Visibility = "only me"
)

// Valid は定義済みの公開範囲かどうかを返す。
func (v Visibility) Valid() bool {
	return v == VisibilityEveryone || v == VisibilityOnlyMe
}

// DefaultCommunity は投稿先の既定値（自分のプロフィール）。
const DefaultCommunity = "My Profile"

// Communities は投稿先として選択可能なコミュニティの一覧。
// 表示順を保持する。
var Communities = []string{
	DefaultCommunity,
	"FCB",
	"Chinese Community",
	"Ramen lovers",
	"gadjets",
	"sport",
	"entertaiment",
}

// ValidCommunity は投稿先コミュニティが選択肢に含まれるかを返す。
func ValidCommunity(name string) bool {
	for _, c := range Communities {
		if c == name {
			return true
		}
	}
	return false
}

// MaxPostContentLength は投稿本文の最大文字数（rune数）。
const MaxPostContentLength = 2000

// NormalizePostContent は投稿本文を保存する形に正規化する。
// 改行をLFに揃え、改行とタブ以外の制御文字を除き、前後の空白を落とす。
// 記号やタグ風の文字列は入力のまま残す。何度適用しても結果は変わらない。
func NormalizePostContent(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, content)
	return strings.TrimSpace(content)
}

// ValidPostContent は正規化後の投稿本文が1文字以上、上限文字数以内かを返す。
func ValidPostContent(content string) bool {
	trimmed := NormalizePostContent(content)
	if trimmed == "" {
		return false
	}
	return utf8.RuneCountInString(trimmed) <= MaxPostContentLength
}

// MaxPostImages は1投稿に添付できる画像の最大数。
const MaxPostImages = 4

// Post は永続化された投稿を表す。
type Post struct {
	ID         string
	AuthorID   string
	Content    string // NormalizePostContent済みのテキスト
	Visibility Visibility
	Community  string
	ImageURLs  []string // 添付順
	CreatedAt  time.Time
}

// FeedCursor はフィードのキーセットページネーション位置。
// フィードは (created_at, id) の降順で並ぶため、同時刻の投稿もidで一意に順序が決まる。
type FeedCursor struct {
	CreatedAt time.Time
	ID        string
}

// IsZero は先頭ページを表すゼロ値かを返す。
func (c FeedCursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.ID == ""
}

// String はクライアントへ返すカーソル文字列 "<RFC3339Nano>_<id>" を返す。
func (c FeedCursor) String() string {
	return c.CreatedAt.Format(time.RFC3339Nano) + "_" + c.ID
}

// PostWithAuthor はフィード表示用に投稿者情報を結合した投稿。
type PostWithAuthor struct {
	Post
	AuthorName  string
	AuthorImage string
}
