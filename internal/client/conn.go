package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/socialhub/internal/api"
	"github.com/hitoshi/socialhub/internal/middleware"
	"github.com/hitoshi/socialhub/internal/rpc"
)

// Conn はログイン済みセッションでサーバーに接続した状態。
type Conn struct {
	BaseURL string
	// Header はセッションCookie・CSRF Cookie・CSRFヘッダーを含む。
	Header http.Header
	RPC    *rpc.Client
	HTTP   *http.Client
}

// Connect はCSRFトークンを取得し、ミューテーションを送れるRPCクライアントを組み立てる。
func Connect(ctx context.Context, cfg *Config, httpClient *http.Client) (*Conn, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	token, err := fetchCSRFToken(ctx, httpClient, baseURL, cfg.Session)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Add("Cookie", (&http.Cookie{Name: middleware.SessionCookieName, Value: cfg.Session}).String())
	header.Add("Cookie", (&http.Cookie{Name: middleware.CSRFCookieName, Value: token}).String())
	header.Set(middleware.CSRFHeaderName, token)

	rpcConfig := rpc.NewConfig(baseURL)
	rpcConfig.HTTPClient = httpClient
	rpcConfig.Header = header

	return &Conn{
		BaseURL: baseURL,
		Header:  header,
		RPC:     rpc.NewClient(rpcConfig),
		HTTP:    httpClient,
	}, nil
}

func fetchCSRFToken(ctx context.Context, httpClient *http.Client, baseURL, session string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+api.CSRFTokenPath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create csrf request: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: session})

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch csrf token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("csrf token request returned status %d", resp.StatusCode)
	}

	var body api.CSRFToken
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode csrf token: %w", err)
	}
	if body.CSRFToken == "" {
		return "", fmt.Errorf("empty csrf token")
	}
	return body.CSRFToken, nil
}

// StreamURL は通知ストリームのWebSocket URLを返す。
func (c *Conn) StreamURL() string {
	switch {
	case strings.HasPrefix(c.BaseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.BaseURL, "https://") + api.NotificationStreamPath
	case strings.HasPrefix(c.BaseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.BaseURL, "http://") + api.NotificationStreamPath
	}
	return c.BaseURL + api.NotificationStreamPath
}
