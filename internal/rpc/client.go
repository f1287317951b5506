package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Config はRPCクライアントの設定。
type Config struct {
	// URL はエンドポイント（例: http://localhost:3000/api/trpc）。
	URL string
	// Transformer は入出力の変換器。nilの場合はDateTransformer。
	Transformer Transformer
	// SSR はサーバー描画時にデータを先読みするかどうか。このアプリでは常にfalse。
	SSR bool
	// HTTPClient はnilの場合にタイムアウト付きの既定クライアントを使う。
	HTTPClient *http.Client
	// Header は全リクエストに付与するヘッダー（Cookie、X-CSRF-Token等）。
	Header http.Header
}

// NewConfig は基底URLから既定のクライアント設定を組み立てる。
func NewConfig(baseURL string) Config {
	return Config{
		URL:         Endpoint(baseURL),
		Transformer: DateTransformer{},
		SSR:         false,
	}
}

// Error はプロシージャ呼び出しの失敗を表す。
// サーバーのエラー応答だけでなく、通信エラーもこの型で返す。
type Error struct {
	Message    string
	Code       string // BAD_REQUEST, UNAUTHORIZED, NETWORK_ERROR 等
	HTTPStatus int    // 通信エラーの場合は0
	APICode    string
	Category   string
	Action     string
	Path       string

	cause error
}

// CodeNetworkError は応答を得られなかった場合のCode。
const CodeNetworkError = "NETWORK_ERROR"

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.HTTPStatus == 0 {
		return fmt.Sprintf("rpc %s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("rpc %s: %s (%d): %s", e.Path, e.Code, e.HTTPStatus, e.Message)
}

// Unwrap は通信エラーの原因を返す。
func (e *Error) Unwrap() error {
	return e.cause
}

// Client はRPCクライアント。失敗時の再試行は行わない。
type Client struct {
	config Config
}

// NewClient はClientを生成する。
func NewClient(config Config) *Client {
	if config.Transformer == nil {
		config.Transformer = DateTransformer{}
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{config: config}
}

// Config はクライアントの設定を返す。
func (c *Client) Config() Config {
	return c.config
}

// Query はクエリプロシージャを呼び出し、結果をoutに復元する。
// outがnilの場合は結果を捨てる。
func (c *Client) Query(ctx context.Context, path string, input, out any) error {
	env, err := c.config.Transformer.Serialize(input)
	if err != nil {
		return &Error{Path: path, Code: "BAD_REQUEST", Message: err.Error(), cause: err}
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return &Error{Path: path, Code: "BAD_REQUEST", Message: err.Error(), cause: err}
	}

	target := c.config.URL + "/" + path
	if input != nil {
		target += "?input=" + url.QueryEscape(string(raw))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &Error{Path: path, Code: CodeNetworkError, Message: err.Error(), cause: err}
	}
	return c.do(req, path, out)
}

// Mutation はミューテーションプロシージャを呼び出し、結果をoutに復元する。
func (c *Client) Mutation(ctx context.Context, path string, input, out any) error {
	env, err := c.config.Transformer.Serialize(input)
	if err != nil {
		return &Error{Path: path, Code: "BAD_REQUEST", Message: err.Error(), cause: err}
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return &Error{Path: path, Code: "BAD_REQUEST", Message: err.Error(), cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL+"/"+path, bytes.NewReader(raw))
	if err != nil {
		return &Error{Path: path, Code: CodeNetworkError, Message: err.Error(), cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	for k, vs := range c.config.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return &Error{Path: path, Code: CodeNetworkError, Message: err.Error(), cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Path: path, Code: CodeNetworkError, HTTPStatus: resp.StatusCode, Message: err.Error(), cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return decodeError(path, resp.StatusCode, body)
	}

	var success successResponse
	if err := json.Unmarshal(body, &success); err != nil {
		return &Error{Path: path, Code: "PARSE_ERROR", HTTPStatus: resp.StatusCode, Message: err.Error(), cause: err}
	}
	if out == nil {
		return nil
	}
	if err := c.config.Transformer.Deserialize(success.Result.Data, out); err != nil {
		return &Error{Path: path, Code: "PARSE_ERROR", HTTPStatus: resp.StatusCode, Message: err.Error(), cause: err}
	}
	return nil
}

// decodeError はエラー応答をErrorへ変換する。形式外の応答でもErrorを返す。
func decodeError(path string, status int, body []byte) error {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Error.Data.Code == "" {
		return &Error{
			Path:       path,
			Code:       http.StatusText(status),
			HTTPStatus: status,
			Message:    string(bytes.TrimSpace(body)),
		}
	}
	return &Error{
		Path:       path,
		Code:       resp.Error.Data.Code,
		HTTPStatus: status,
		Message:    resp.Error.Message,
		APICode:    resp.Error.Data.APICode,
		Category:   resp.Error.Data.Category,
		Action:     resp.Error.Data.Action,
	}
}
