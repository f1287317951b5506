// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 期限切れのセッションと、保持期間（デフォルト90日）を超えた既読通知を
// スケジュールに従って削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hitoshi/socialhub/internal/metrics"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や database.Client を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const (
	// KindSessions は期限切れセッションの削除を表すメトリクスラベル。
	KindSessions = "sessions"
	// KindNotifications は既読通知の削除を表すメトリクスラベル。
	KindNotifications = "notifications"

	// DefaultRetentionDays は既読通知の保持日数の既定値。
	DefaultRetentionDays = 90
)

const (
	deleteExpiredSessionsQuery = `DELETE FROM sessions WHERE expires_at < now()`

	// 未読の通知は期間に関係なく残す。read_atのない既読通知は作成時刻で判定する
	deleteReadNotificationsQuery = `DELETE FROM notifications
		WHERE is_read = true AND COALESCE(read_at, created_at) < now() - $1::interval`
)

// CleanupJob は期限切れデータの削除ジョブ。
// 冪等であり、削除対象がない場合でもエラーにならない。
type CleanupJob struct {
	db            Executor
	logger        *slog.Logger
	metrics       metrics.MetricsCollector
	RetentionDays int // 既読通知の保持日数
}

// NewCleanupJob は新しいCleanupJobを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewCleanupJob(db Executor, logger *slog.Logger, collector metrics.MetricsCollector) *CleanupJob {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &CleanupJob{
		db:            db,
		logger:        logger,
		metrics:       collector,
		RetentionDays: DefaultRetentionDays,
	}
}

// Run は期限切れセッションと保持期間を過ぎた既読通知を削除する。
// セッションの削除に失敗した場合は通知の削除を行わない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	sessions, err := j.exec(ctx, KindSessions, deleteExpiredSessionsQuery)
	if err != nil {
		return err
	}

	interval := fmt.Sprintf("%d days", j.RetentionDays)
	notifications, err := j.exec(ctx, KindNotifications, deleteReadNotificationsQuery, interval)
	if err != nil {
		return err
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", sessions),
		slog.Int64("deleted_notifications", notifications),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

func (j *CleanupJob) exec(ctx context.Context, kind, query string, args ...any) (int64, error) {
	result, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		j.logger.Error("クリーンアップの実行に失敗しました",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("%sのクリーンアップに失敗: %w", kind, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%sの削除件数の取得に失敗: %w", kind, err)
	}

	j.metrics.RecordCleanupDeleted(kind, deleted)
	return deleted, nil
}

// Scheduler はcron式に従ってCleanupJobを実行する。
type Scheduler struct {
	job    *CleanupJob
	spec   string
	logger *slog.Logger
}

// NewScheduler はSchedulerを生成する。specはcron式または@daily等の記述子。
func NewScheduler(job *CleanupJob, spec string, logger *slog.Logger) *Scheduler {
	return &Scheduler{job: job, spec: spec, logger: logger}
}

// Start は起動直後に1回ジョブを実行し、以降はスケジュールに従って実行する。
// ctxがキャンセルされると実行中のジョブの完了を待って戻る。
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.spec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", s.spec, err)
	}

	s.runOnce(ctx)

	c.Start()
	s.logger.Info("cleanup scheduler started", slog.String("schedule", s.spec))

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("cleanup scheduler stopped")
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.job.Run(ctx); err != nil {
		s.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}
}
