package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから名前とラベルが一致するメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	if len(m.GetLabel()) != len(labels) {
		return false
	}
	for _, lp := range m.GetLabel() {
		if labels[lp.GetName()] != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestNewCollector_RegistersAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}

	// 同じレジストリへの二重登録はpanicする
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}

func TestRecordHTTPRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest("GET", 200, 10*time.Millisecond)
	c.RecordHTTPRequest("GET", 200, 20*time.Millisecond)
	c.RecordHTTPRequest("POST", 401, time.Millisecond)

	m := findMetric(t, reg, "socialhub_http_requests_total", map[string]string{"method": "GET", "status_code": "200"})
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Errorf("GET 200 = %v, want 2", got)
	}
	h := findMetric(t, reg, "socialhub_http_request_duration_seconds", map[string]string{})
	if got := h.GetHistogram().GetSampleCount(); got != 3 {
		t.Errorf("latency samples = %d, want 3", got)
	}
}

func TestRecordPostCreated(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPostCreated("FCB", 2)
	c.RecordPostCreated("FCB", 1)

	if got := findMetric(t, reg, "socialhub_posts_created_total", map[string]string{"community": "FCB"}).GetCounter().GetValue(); got != 2 {
		t.Errorf("posts = %v, want 2", got)
	}
	if got := findMetric(t, reg, "socialhub_post_images_total", map[string]string{}).GetCounter().GetValue(); got != 3 {
		t.Errorf("images = %v, want 3", got)
	}
}

func TestRecordNotificationsAndCleanup(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordNotificationsMarkedRead(5)
	c.RecordNotificationsMarkedRead(0)
	c.RecordCleanupDeleted("sessions", 7)

	if got := findMetric(t, reg, "socialhub_notifications_marked_read_total", map[string]string{}).GetCounter().GetValue(); got != 5 {
		t.Errorf("marked read = %v, want 5", got)
	}
	if got := findMetric(t, reg, "socialhub_cleanup_deleted_total", map[string]string{"kind": "sessions"}).GetCounter().GetValue(); got != 7 {
		t.Errorf("cleanup = %v, want 7", got)
	}
}

func TestRecordRealtimeConnections(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRealtimeConnections(1)
	c.RecordRealtimeConnections(1)
	c.RecordRealtimeConnections(-1)

	if got := findMetric(t, reg, "socialhub_realtime_connections", map[string]string{}).GetGauge().GetValue(); got != 1 {
		t.Errorf("connections = %v, want 1", got)
	}
}
