// Package notification は通知一覧の取得、一括既読化、変更のリアルタイム配信を提供する。
package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/socialhub/internal/metrics"
	"github.com/hitoshi/socialhub/internal/model"
	"github.com/hitoshi/socialhub/internal/repository"
	"github.com/hitoshi/socialhub/internal/security"
)

const (
	// DefaultListLimit は通知一覧の既定件数。
	DefaultListLimit = 50
	// MaxListLimit は通知一覧の上限件数。
	MaxListLimit = 100
)

// ListResult はListの戻り値。
type ListResult struct {
	Filter        string
	Notifications []model.Notification
	UnreadCount   int
}

// NotificationService は通知の参照と既読化を行うサービス。
type NotificationService struct {
	repo    repository.NotificationRepository
	metrics metrics.MetricsCollector
	text    security.MessageTextService
	now     func() time.Time
}

// NewNotificationService はNotificationServiceを生成する。
// textがnilの場合はbluemondayによる既定の変換を使う。
func NewNotificationService(repo repository.NotificationRepository, collector metrics.MetricsCollector, text security.MessageTextService) *NotificationService {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if text == nil {
		text = security.NewMessageText()
	}
	return &NotificationService{
		repo:    repo,
		metrics: collector,
		text:    text,
		now:     time.Now,
	}
}

// List はセッションユーザー宛ての通知をフィルタ付きで返す。読み取り専用。
// 未読件数はフィルタに関係なくユーザー全体の値を返す。
func (s *NotificationService) List(ctx context.Context, userID, filterKey string, limit int) (*ListResult, error) {
	filter, ok := model.ParseNotificationFilter(filterKey)
	if !ok {
		return nil, model.NewInvalidFilterError(filterKey)
	}
	if filterKey == "" {
		filterKey = "all"
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	notifications, err := s.repo.ListByUser(ctx, userID, filter, limit)
	if err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	// メッセージはプロデューサーが書いたHTML断片なので表示用テキストにする
	for i := range notifications {
		notifications[i].Message = s.text.PlainText(notifications[i].Message)
	}

	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Filter:        filterKey,
		Notifications: notifications,
		UnreadCount:   unread,
	}, nil
}

// MarkAllAsRead はユーザーの未読通知を全て既読にし、更新件数を返す。
// 未読がない場合も成功として0を返す。
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	updated, err := s.repo.MarkAllAsRead(ctx, userID, s.now())
	if err != nil {
		return 0, err
	}

	if updated > 0 {
		s.metrics.RecordNotificationsMarkedRead(updated)
	}
	slog.InfoContext(ctx, "notifications marked as read",
		slog.String("user_id", userID),
		slog.Int64("updated", updated),
	)
	return updated, nil
}
