package handler

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/hitoshi/socialhub/internal/api"
	"github.com/hitoshi/socialhub/internal/middleware"
	"github.com/hitoshi/socialhub/internal/model"
	"github.com/hitoshi/socialhub/internal/rpc"
)

// AvatarFallbackPath はアバター未設定時に表示する画像のパス。
const AvatarFallbackPath = "/images/avatar-fallback.svg"

// NotificationStreamPath は通知変更イベントのWebSocketエンドポイント。
const NotificationStreamPath = api.NotificationStreamPath

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// pageUser はページに表示するログインユーザー。
type pageUser struct {
	ID    string
	Name  string
	Image string
}

// pageData はテンプレートに渡す値。
// データはクライアントがRPCで取得するため、サーバー描画では一覧を埋め込まない。
type pageData struct {
	Title  string
	User   pageUser
	RPCURL string

	FeedProcedure    string
	CreateProcedure  string
	ListProcedure    string
	MarkAllProcedure string
	StreamPath       string

	Visibilities     []model.Visibility
	Communities      []string
	Filters          []string
	MaxContentLength int
	MaxImages        int
	MaxUploadBytes   int64
}

// defaultMaxUploadBytes は画像1枚あたりのサイズ上限の既定値（10MiB）。
const defaultMaxUploadBytes = 10 << 20

// PageConfig はページ描画の設定。
type PageConfig struct {
	// MaxUploadBytes は投稿作成ページで添付できる画像1枚あたりの上限。
	// 0の場合は10MiB。
	MaxUploadBytes int64
}

// PageHandler はセッション確認済みのHTMLページを描画する。
type PageHandler struct {
	pages  map[string]*template.Template
	config PageConfig
}

// NewPageHandler はテンプレートを読み込んでPageHandlerを生成する。
func NewPageHandler(config PageConfig) *PageHandler {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = defaultMaxUploadBytes
	}
	h := &PageHandler{pages: make(map[string]*template.Template), config: config}
	for _, name := range []string{"home", "create_post", "notifications"} {
		h.pages[name] = template.Must(template.ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		))
	}
	return h
}

func newPageData(title string, session *model.Session) pageData {
	image := session.UserImage
	if image == "" {
		image = AvatarFallbackPath
	}
	return pageData{
		Title: title,
		User: pageUser{
			ID:    session.UserID,
			Name:  session.UserName,
			Image: image,
		},
		// ブラウザからは相対パスで呼び出す
		RPCURL: rpc.Endpoint(rpc.BaseURL(true, "", "")),
	}
}

// Home はフィードページを描画する。
// GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request, session *model.Session) {
	data := newPageData("Home", session)
	data.FeedProcedure = api.ProcPostsFeed
	h.render(w, "home", data)
}

// CreatePost は投稿作成ページを描画する。
// GET /create-post
func (h *PageHandler) CreatePost(w http.ResponseWriter, r *http.Request, session *model.Session) {
	data := newPageData("Create post", session)
	data.CreateProcedure = api.ProcPostsCreate
	data.Visibilities = []model.Visibility{model.VisibilityEveryone, model.VisibilityOnlyMe}
	data.Communities = model.Communities
	data.MaxContentLength = model.MaxPostContentLength
	data.MaxImages = model.MaxPostImages
	data.MaxUploadBytes = h.config.MaxUploadBytes
	h.render(w, "create_post", data)
}

// Notifications は通知ページを描画する。
// GET /notifications
func (h *PageHandler) Notifications(w http.ResponseWriter, r *http.Request, session *model.Session) {
	data := newPageData("Notifications", session)
	data.ListProcedure = api.ProcNotificationsList
	data.MarkAllProcedure = api.ProcNotificationsMarkAllAsRead
	data.StreamPath = NotificationStreamPath
	data.Filters = model.NotificationFilterKeys()
	h.render(w, "notifications", data)
}

// render は描画結果をバッファしてから書き込む。途中で失敗した場合は500を返す。
func (h *PageHandler) render(w http.ResponseWriter, name string, data pageData) {
	var buf bytes.Buffer
	if err := h.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// StaticHandler は埋め込みの静的ファイル（アバターの代替画像など）を配信する。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
