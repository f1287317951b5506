package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/socialhub/internal/api"
	"github.com/hitoshi/socialhub/internal/middleware"
	"github.com/hitoshi/socialhub/internal/rpc"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRF              middleware.CSRFConfig
	Logger            *slog.Logger
	HTTPMetrics       middleware.HTTPMetricsRecorder

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// RPCプロシージャ
	PostService         PostServiceInterface
	NotificationService NotificationServiceInterface

	// ページ
	Pages PageConfig

	// 通知ストリーム
	NotificationStreamer NotificationStreamer

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// 全体のミドルウェアの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//
// ページは RequireSession でセッションを確認し、未ログインならサインインへリダイレクトする。
// /api/trpc と通知ストリームは Session → RateLimit(General) → CSRF の内側に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	pages := NewPageHandler(deps.Pages)
	csrf := middleware.NewCSRFMiddleware(deps.CSRF)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Handle("/images/*", StaticHandler())

	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/signin", authHandler.SignIn)
		r.Get("/callback/google", authHandler.Callback)
		r.Post("/signout", authHandler.SignOut)
		r.Get("/session", authHandler.Session)
		r.Handle("/csrf", middleware.NewCSRFTokenHandler(deps.CSRF))
	})

	// --- セッションが必要なページ ---
	// CSRFミドルウェアはGETでトークンCookieを発行する
	r.Group(func(r chi.Router) {
		r.Use(csrf)
		r.Method(http.MethodGet, "/", middleware.RequireSession(deps.SessionFinder, pages.Home))
		r.Method(http.MethodGet, "/create-post", middleware.RequireSession(deps.SessionFinder, pages.CreatePost))
		r.Method(http.MethodGet, "/notifications", middleware.RequireSession(deps.SessionFinder, pages.Notifications))
	})

	// --- セッションが必要なAPI ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(csrf)

		if deps.NotificationStreamer != nil {
			r.Get(NotificationStreamPath, NewNotificationStreamHandler(deps.NotificationStreamer))
		}

		rpcServer := rpc.NewServer(rpc.DateTransformer{})
		NewProcedures(deps.PostService, deps.NotificationService).Register(rpcServer)

		// 投稿作成のみ専用のレート制限を追加
		r.With(deps.RateLimiter.PostCreateMiddleware()).Handle(rpc.Path+"/"+api.ProcPostsCreate, rpcServer)
		r.Handle(rpc.Path+"/{procedure}", rpcServer)
	})

	return r
}
