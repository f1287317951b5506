// Package security はユーザー入力の無害化を提供する。
//
// 投稿本文は入力された文字列をそのまま保存し、表示時にテンプレートでエスケープする。
// 保存前に行うのは改行と制御文字の正規化のみで、タグ風の文字列も本文として残す。
// 通知メッセージはプロデューサーが書いたHTML断片として届くため、
// bluemondayのStrictPolicyでタグを除いたプレーンテキストに変換して返す。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/socialhub/internal/model"
)

// ContentSanitizerService は投稿本文と添付URLの無害化インターフェース。
type ContentSanitizerService interface {
	// SanitizeText は保存用に正規化した本文を返す。
	// SanitizeText(SanitizeText(x)) == SanitizeText(x) を満たす。
	SanitizeText(raw string) string
	// SanitizeImageURL は添付画像URLを検証する。公開ホストを指すhttpsの絶対URLのみ許可する。
	SanitizeImageURL(raw string) (string, bool)
}

// contentSanitizer はContentSanitizerServiceの実装。
type contentSanitizer struct{}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{}
}

// SanitizeText は改行と制御文字を正規化する。HTMLとして解釈しないので "a<b" もそのまま残る。
// 出力はHTMLとして扱わないため、表示側で必ずエスケープすること。
func (s *contentSanitizer) SanitizeText(raw string) string {
	return model.NormalizePostContent(raw)
}

// SanitizeImageURL はhttpsスキームかつ公開ホストを持つURLのみ受け付ける。
// javascript:, data:, http:, 相対URL、内部ネットワークを指すURLは拒否する。
func (s *contentSanitizer) SanitizeImageURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Scheme != "https" || u.Host == "" || u.User != nil {
		return "", false
	}
	if !IsPublicHost(u.Hostname()) {
		return "", false
	}
	return u.String(), true
}

// compile-time interface check
var _ ContentSanitizerService = (*contentSanitizer)(nil)

// MessageTextService は通知メッセージのHTML断片を表示用のテキストに変換する。
type MessageTextService interface {
	PlainText(fragment string) string
}

// messageText はMessageTextServiceの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type messageText struct {
	policy *bluemonday.Policy
}

// NewMessageText はMessageTextServiceの新しいインスタンスを生成する。
func NewMessageText() *messageText {
	return &messageText{
		policy: bluemonday.StrictPolicy(),
	}
}

// PlainText はタグを除去し、エンティティを元の文字に戻す。
func (m *messageText) PlainText(fragment string) string {
	if fragment == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(m.policy.Sanitize(fragment)))
}

var _ MessageTextService = (*messageText)(nil)
