// Package notifypanel は通知画面の表示状態を管理する。
//
// 一覧はRPC経由で取得し、一括既読化の後は結果を予測せず必ずサーバーから再取得する。
package notifypanel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/socialhub/internal/api"
	"github.com/hitoshi/socialhub/internal/model"
	"github.com/hitoshi/socialhub/internal/notification"
)

// MarkAllFailedMessage は一括既読化の失敗時に表示する文言。
const MarkAllFailedMessage = "Could not mark notifications as read. Please try again."

// LoadFailedMessage は一覧の取得失敗時に表示する文言。
const LoadFailedMessage = "Could not load notifications."

// Caller はプロシージャ呼び出しのインターフェース。*rpc.Clientが満たす。
type Caller interface {
	Query(ctx context.Context, path string, input, out any) error
	Mutation(ctx context.Context, path string, input, out any) error
}

// Notifier は一時的なメッセージを表示する。
type Notifier interface {
	Error(message string)
}

// View は画面に描画する状態のコピー。
type View struct {
	Filter        string
	Filters       []string
	Notifications []api.Notification
	UnreadCount   int
	Notice        string
}

// Panel は通知画面のコントローラ。
type Panel struct {
	client   Caller
	notifier Notifier

	mu            sync.Mutex
	filter        string
	notifications []api.Notification
	unread        int
	notice        string
	onChange      func(View)
}

// New はPanelを生成する。notifierはnilでもよい。
func New(client Caller, notifier Notifier) *Panel {
	return &Panel{
		client:   client,
		notifier: notifier,
		filter:   "all",
	}
}

// ListFiltered はフィルタを切り替えて一覧を取得する。
// 未知のフィルタはサーバーへ送らずエラーを返す。
func (p *Panel) ListFiltered(ctx context.Context, filter string) ([]api.Notification, error) {
	if filter == "" {
		filter = "all"
	}
	if _, ok := model.ParseNotificationFilter(filter); !ok {
		return nil, model.NewInvalidFilterError(filter)
	}

	var out api.NotificationListOutput
	if err := p.client.Query(ctx, api.ProcNotificationsList, api.NotificationListInput{Filter: filter}, &out); err != nil {
		p.setNotice(LoadFailedMessage)
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	p.mu.Lock()
	p.filter = filter
	p.notifications = out.Notifications
	p.unread = out.UnreadCount
	p.notice = ""
	onChange := p.onChange
	p.mu.Unlock()

	if onChange != nil {
		onChange(p.View())
	}
	return out.Notifications, nil
}

// OnChange は一覧を取得し直したとき、および通知文を設定したときに呼ばれる関数を設定する。
// ロック外で呼ばれる。
func (p *Panel) OnChange(fn func(View)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Refresh は現在のフィルタで一覧を取得し直す。
func (p *Panel) Refresh(ctx context.Context) error {
	p.mu.Lock()
	filter := p.filter
	p.mu.Unlock()

	_, err := p.ListFiltered(ctx, filter)
	return err
}

// MarkAllAsRead は未読の通知を全て既読にする。
// 失敗はエラーを返しつつ画面上の通知として扱い、成否にかかわらず一覧を再取得する。
func (p *Panel) MarkAllAsRead(ctx context.Context) error {
	var out api.MarkAllAsReadOutput
	markErr := p.client.Mutation(ctx, api.ProcNotificationsMarkAllAsRead, nil, &out)
	if markErr != nil {
		slog.Warn("failed to mark notifications as read", slog.String("error", markErr.Error()))
	}

	refreshErr := p.Refresh(ctx)
	if refreshErr != nil {
		slog.Warn("failed to refresh notifications", slog.String("error", refreshErr.Error()))
	}

	if markErr != nil {
		p.setNotice(MarkAllFailedMessage)
		return fmt.Errorf("failed to mark notifications as read: %w", markErr)
	}
	return nil
}

// setNotice は通知文を設定し、表示の更新を知らせる。
func (p *Panel) setNotice(msg string) {
	p.mu.Lock()
	p.notice = msg
	onChange := p.onChange
	p.mu.Unlock()

	if p.notifier != nil {
		p.notifier.Error(msg)
	}
	if onChange != nil {
		onChange(p.View())
	}
}

// View は現在の表示状態を返す。
func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return View{
		Filter:        p.filter,
		Filters:       model.NotificationFilterKeys(),
		Notifications: append([]api.Notification(nil), p.notifications...),
		UnreadCount:   p.unread,
		Notice:        p.notice,
	}
}

// Watch は通知ストリームに接続し、変更イベントを受けるたびに一覧を再取得する。
// ctxのキャンセルか接続断で戻る。
func (p *Panel) Watch(ctx context.Context, streamURL string, header http.Header) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamURL, header)
	if err != nil {
		return fmt.Errorf("failed to connect notification stream: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("notification stream closed: %w", err)
		}

		var ev notification.Event
		if err := json.Unmarshal(msg, &ev); err != nil || ev.Type != notification.EventChanged {
			continue
		}
		if err := p.Refresh(ctx); err != nil {
			slog.Warn("failed to refresh notifications", slog.String("error", err.Error()))
		}
	}
}
