package middleware

import (
	"net/http"

	"github.com/hitoshi/socialhub/internal/model"
)

// SignInPath は未認証時のリダイレクト先。
const SignInPath = "/api/auth/signin"

// PageFunc はセッション確認済みのページを描画する関数。
// セッションは必ず非nilで渡される。
type PageFunc func(w http.ResponseWriter, r *http.Request, session *model.Session)

// RequireSession はページ描画前にセッションを確認するハンドラーを返す。
// セッションがなければ302でサインインへ誘導し、ページ本体は実行しない。
// セッション検索のエラーも未認証と同じ扱いにする。
func RequireSession(finder SessionFinder, page PageFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := lookupSession(r, finder)
		if session == nil {
			http.Redirect(w, r, SignInPath, http.StatusFound)
			return
		}

		annotateUserID(r.Context(), session.UserID)
		page(w, r, session)
	})
}
