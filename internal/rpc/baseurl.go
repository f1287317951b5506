package rpc

import "fmt"

// DefaultPort はPORT未設定時のローカル開発ポート。
const DefaultPort = "3000"

// BaseURL はRPCクライアントが使う基底URLを決める。
// ブラウザ内では相対パスで呼ぶため空文字列を返す。
// サーバー側ではデプロイ先ホストがあればhttps、なければlocalhostのhttpを使う。
func BaseURL(inBrowser bool, deploymentHost, port string) string {
	if inBrowser {
		return ""
	}
	if deploymentHost != "" {
		return "https://" + deploymentHost
	}
	if port == "" {
		port = DefaultPort
	}
	return fmt.Sprintf("http://localhost:%s", port)
}

// Endpoint は基底URLにRPCのマウント位置を連結する。
func Endpoint(baseURL string) string {
	return baseURL + Path
}
