package notification

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/socialhub/internal/metrics"
)

// EventChanged はユーザーの通知に変更があったことを示すイベント名。
const EventChanged = "notifications.changed"

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 50 * time.Second
	sendBuffer   = 8
)

// Event はWebSocketで送信するメッセージ。
type Event struct {
	Type string `json:"type"`
}

// subscriber は1つのWebSocket接続を表す。
type subscriber struct {
	userID string
	send   chan []byte
}

// Hub はユーザーごとのWebSocket購読者へ通知変更イベントを配信する。
// 送信バッファが詰まった購読者はイベントを取りこぼすが、クライアントは
// 受信時に一覧を再取得するため次のイベントで整合する。
type Hub struct {
	mu       sync.Mutex
	subs     map[string]map[*subscriber]struct{}
	upgrader websocket.Upgrader
	metrics  metrics.MetricsCollector
}

// NewHub はHubを生成する。allowedOriginが空の場合は同一オリジンのみ許可する。
func NewHub(allowedOrigin string, collector metrics.MetricsCollector) *Hub {
	if collector == nil {
		collector = metrics.Nop{}
	}
	h := &Hub{
		subs:    make(map[string]map[*subscriber]struct{}),
		metrics: collector,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if allowedOrigin != "" {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origin == allowedOrigin || origin == "http://"+r.Host || origin == "https://"+r.Host
		}
	}
	return h
}

// Notify は指定ユーザーの全接続へ変更イベントを送る。
func (h *Hub) Notify(userID string) {
	payload, _ := json.Marshal(Event{Type: EventChanged})

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[userID] {
		select {
		case sub.send <- payload:
		default:
			slog.Warn("notification event dropped", slog.String("user_id", userID))
		}
	}
}

// Subscribers は指定ユーザーの接続数を返す。
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

func (h *Hub) register(userID string) *subscriber {
	sub := &subscriber{userID: userID, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscriber]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()

	h.metrics.RecordRealtimeConnections(1)
	return sub
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[sub.userID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.userID)
		}
	}
	h.mu.Unlock()

	h.metrics.RecordRealtimeConnections(-1)
}

// ServeUser はリクエストをWebSocketへアップグレードし、切断までイベントを送信する。
// 認証はこのハンドラより前段のミドルウェアで済ませておくこと。
func (h *Hub) ServeUser(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeが失敗時のレスポンスを書き込み済み
		slog.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	sub := h.register(userID)
	defer h.unregister(sub)

	done := make(chan struct{})
	go readPump(conn, done)
	writePump(conn, sub.send, done)
}

// readPump はクライアントからのメッセージを読み捨て、切断を検知する。
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
