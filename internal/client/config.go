package client

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/socialhub/internal/rpc"
)

// Config はクライアントの接続設定。
//
//	base_url: https://socialhub.example.com
//	session: <session_id Cookieの値>
//	upload_url: https://uploads.example.com/images
type Config struct {
	BaseURL   string `yaml:"base_url"`
	Session   string `yaml:"session"`
	UploadURL string `yaml:"upload_url"`
}

// LoadConfig は設定ファイルと環境変数から設定を読み込む。
// pathが空の場合はファイルを読まない。環境変数はファイルの値を上書きする。
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if v := os.Getenv("SOCIALHUB_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("SOCIALHUB_SESSION"); v != "" {
		cfg.Session = v
	}
	if v := os.Getenv("SOCIALHUB_UPLOAD_URL"); v != "" {
		cfg.UploadURL = v
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = rpc.BaseURL(false, os.Getenv("DEPLOYMENT_HOST"), os.Getenv("PORT"))
	}
	if cfg.Session == "" {
		return nil, errors.New("session is not set (SOCIALHUB_SESSION or session in config file)")
	}
	return cfg, nil
}
