package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChangeChannel は通知テーブルのトリガーがpg_notifyするチャネル名。
const ChangeChannel = "notifications_changed"

// Notifier はユーザー単位の変更通知を受け取るインターフェース。
type Notifier interface {
	Notify(userID string)
}

// Listener はPostgreSQLのLISTENでトリガーからの通知を受け、Notifierへ転送する。
type Listener struct {
	pool          *pgxpool.Pool
	notifier      Notifier
	retryInterval time.Duration
}

// NewListener はListenerを生成する。
func NewListener(pool *pgxpool.Pool, notifier Notifier) *Listener {
	return &Listener{
		pool:          pool,
		notifier:      notifier,
		retryInterval: 5 * time.Second,
	}
}

// Run はctxがキャンセルされるまでLISTENを続ける。
// 接続が切れた場合はretryIntervalの後に再接続する。
func (l *Listener) Run(ctx context.Context) {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		slog.Error("notification listener disconnected",
			slog.String("error", err.Error()),
			slog.Duration("retry_in", l.retryInterval),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.retryInterval):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ChangeChannel}.Sanitize()); err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	slog.Info("notification listener started", slog.String("channel", ChangeChannel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("failed to wait for notification: %w", err)
		}
		Dispatch(l.notifier, n.Payload)
	}
}

// Dispatch はpg_notifyのペイロード（宛先ユーザーID）をNotifierへ渡す。
// 空のペイロードは無視する。
func Dispatch(notifier Notifier, payload string) {
	if payload == "" {
		return
	}
	notifier.Notify(payload)
}
