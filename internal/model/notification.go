package model

import "time"

// NotificationCategory は通知の種別を表す。
type NotificationCategory string

const (
	NotificationLike    NotificationCategory = "like"
	NotificationReply   NotificationCategory = "reply"
	NotificationFollow  NotificationCategory = "follow"
	NotificationMention NotificationCategory = "mention"
)

// Notification はユーザー宛てのイベント通知を表す。
// 作成は外部のプロデューサーが行い、このサービスは参照と既読化のみを行う。
type Notification struct {
	ID        string
	UserID    string
	Category  NotificationCategory
	Message   string
	PostID    *string
	IsRead    bool
	ReadAt    *time.Time
	CreatedAt time.Time
}

// NotificationFilter は通知一覧の絞り込み条件。
// Categoryが空の場合は全種別を対象とする。
type NotificationFilter struct {
	Category   NotificationCategory
	UnreadOnly bool
}

// notificationFilterKeys はフィルタキーと条件の対応表。
var notificationFilterKeys = map[string]NotificationFilter{
	"all":      {},
	"unread":   {UnreadOnly: true},
	"likes":    {Category: NotificationLike},
	"replies":  {Category: NotificationReply},
	"follows":  {Category: NotificationFollow},
	"mentions": {Category: NotificationMention},
}

// NotificationFilterKeys は画面に表示するフィルタキーを表示順で返す。
func NotificationFilterKeys() []string {
	return []string{"all", "unread", "likes", "replies", "follows", "mentions"}
}

// ParseNotificationFilter はフィルタキーを条件に変換する。
// 空文字列は"all"として扱う。未知のキーの場合はfalseを返す。
func ParseNotificationFilter(key string) (NotificationFilter, bool) {
	if key == "" {
		key = "all"
	}
	f, ok := notificationFilterKeys[key]
	return f, ok
}
