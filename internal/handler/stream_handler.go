package handler

import (
	"net/http"

	"github.com/hitoshi/socialhub/internal/middleware"
	"github.com/hitoshi/socialhub/internal/model"
)

// NotificationStreamer はユーザー単位の通知変更ストリームを提供する。
type NotificationStreamer interface {
	ServeUser(w http.ResponseWriter, r *http.Request, userID string)
}

// NewNotificationStreamHandler は通知変更イベントのWebSocketハンドラーを返す。
// GET /api/notifications/stream
func NewNotificationStreamHandler(streamer NotificationStreamer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		streamer.ServeUser(w, r, userID)
	}
}
