// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, post, notification, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeInvalidContent    = "INVALID_CONTENT"
	ErrCodeInvalidVisibility = "INVALID_VISIBILITY"
	ErrCodeInvalidCommunity  = "INVALID_COMMUNITY"
	ErrCodeTooManyImages     = "TOO_MANY_IMAGES"
	ErrCodeInvalidFilter     = "INVALID_FILTER"
	ErrCodeInvalidCursor     = "INVALID_CURSOR"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeProcedureNotFound = "PROCEDURE_NOT_FOUND"
	ErrCodeMethodNotAllowed  = "METHOD_NOT_SUPPORTED"
	ErrCodeRateLimited       = "TOO_MANY_REQUESTS"
	ErrCodeCSRF              = "CSRF_TOKEN_INVALID"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidInputError はリクエスト入力の解析失敗エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力の解析に失敗しました: %s", reason),
		Category: "validation",
		Action:   "正しい形式で入力を送信してください。",
	}
}

// NewInvalidContentError は投稿本文のバリデーションエラーを生成する。
func NewInvalidContentError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidContent,
		Message:  fmt.Sprintf("投稿本文は1文字以上%d文字以内で入力してください。", MaxPostContentLength),
		Category: "validation",
		Action:   "本文を入力し直してください。",
	}
}

// NewInvalidVisibilityError は公開範囲のバリデーションエラーを生成する。
func NewInvalidVisibilityError(v string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidVisibility,
		Message:  fmt.Sprintf("無効な公開範囲です: %s", v),
		Category: "validation",
		Action:   "公開範囲には everyone または only me を指定してください。",
	}
}

// NewInvalidCommunityError は投稿先コミュニティのバリデーションエラーを生成する。
func NewInvalidCommunityError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCommunity,
		Message:  fmt.Sprintf("無効な投稿先です: %s", name),
		Category: "validation",
		Action:   "一覧から投稿先を選択してください。",
	}
}

// NewTooManyImagesError は添付画像数の上限超過エラーを生成する。
func NewTooManyImagesError() *APIError {
	return &APIError{
		Code:     ErrCodeTooManyImages,
		Message:  fmt.Sprintf("添付できる画像は%d枚までです。", MaxPostImages),
		Category: "post",
		Action:   "添付画像を減らしてください。",
	}
}

// NewInvalidFilterError は無効なフィルタエラーを生成する。
func NewInvalidFilterError(filter string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("無効なフィルタです: %s", filter),
		Category: "validation",
		Action:   "フィルタには all、unread、likes、replies、follows、mentions のいずれかを指定してください。",
	}
}

// NewInvalidCursorError は無効なページネーションカーソルエラーを生成する。
func NewInvalidCursorError(cursor string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCursor,
		Message:  fmt.Sprintf("無効なカーソル値です: %s", cursor),
		Category: "validation",
		Action:   "一覧を先頭から読み込み直してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewProcedureNotFoundError は未定義のRPCプロシージャ呼び出しエラーを生成する。
func NewProcedureNotFoundError(path string) *APIError {
	return &APIError{
		Code:     ErrCodeProcedureNotFound,
		Message:  fmt.Sprintf("プロシージャが見つかりません: %s", path),
		Category: "system",
		Action:   "クライアントのバージョンを確認してください。",
	}
}

// NewMethodNotAllowedError はプロシージャ種別とHTTPメソッドの不一致エラーを生成する。
func NewMethodNotAllowedError(path, method string) *APIError {
	return &APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  fmt.Sprintf("%s は %s で呼び出せません。", path, method),
		Category: "system",
		Action:   "クエリはGET、ミューテーションはPOSTで呼び出してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエスト数が上限に達しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCSRFError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
