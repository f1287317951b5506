// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// HTTPミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method string, statusCode int, duration time.Duration)
	RecordPostCreated(community string, imageCount int)
	RecordNotificationsMarkedRead(count int64)
	RecordRealtimeConnections(delta int)
	RecordCleanupDeleted(kind string, count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests      *prometheus.CounterVec
	httpLatency       prometheus.Histogram
	postsCreated      *prometheus.CounterVec
	postImages        prometheus.Counter
	notificationsRead prometheus.Counter
	realtimeConns     prometheus.Gauge
	cleanupDeleted    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialhub_http_requests_total",
			Help: "メソッド・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "socialhub_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		postsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialhub_posts_created_total",
			Help: "投稿先コミュニティ別の作成投稿数",
		}, []string{"community"}),
		postImages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "socialhub_post_images_total",
			Help: "投稿に添付された画像の合計数",
		}),
		notificationsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "socialhub_notifications_marked_read_total",
			Help: "一括既読化で既読になった通知の合計数",
		}),
		realtimeConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "socialhub_realtime_connections",
			Help: "通知ストリームのWebSocket接続数",
		}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialhub_cleanup_deleted_total",
			Help: "クリーンアップで削除した行数",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.postsCreated,
		c.postImages,
		c.notificationsRead,
		c.realtimeConns,
		c.cleanupDeleted,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの結果と処理時間を記録する。
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// RecordPostCreated は投稿作成を記録する。
func (c *Collector) RecordPostCreated(community string, imageCount int) {
	c.postsCreated.WithLabelValues(community).Inc()
	c.postImages.Add(float64(imageCount))
}

// RecordNotificationsMarkedRead は既読化した通知数を記録する。
func (c *Collector) RecordNotificationsMarkedRead(count int64) {
	c.notificationsRead.Add(float64(count))
}

// RecordRealtimeConnections はWebSocket接続数を増減する。
func (c *Collector) RecordRealtimeConnections(delta int) {
	c.realtimeConns.Add(float64(delta))
}

// RecordCleanupDeleted はクリーンアップの削除行数を記録する。
func (c *Collector) RecordCleanupDeleted(kind string, count int64) {
	c.cleanupDeleted.WithLabelValues(kind).Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordHTTPRequest(string, int, time.Duration) {}
func (Nop) RecordPostCreated(string, int) {}
func (Nop) RecordNotificationsMarkedRead(int64) {}
func (Nop) RecordRealtimeConnections(int) {}
func (Nop) RecordCleanupDeleted(string, int64) {}

var _ MetricsCollector = Nop{}
