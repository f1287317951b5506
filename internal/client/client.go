// Package client は端末から投稿の作成と通知の確認を行うクライアントを提供する。
// ログイン済みのセッションCookieの値を使ってサーバーのRPCを呼び出す。
package client

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/socialhub/internal/logger"
)

const usage = `usage: socialhubctl [-config file] <command> [flags]

commands:
  post           create a post (-visibility, -community, -image)
  notifications  list notifications (-filter, -mark-all-read, -watch)
`

// ErrUsage はコマンドの指定が誤っている場合のエラー。
var ErrUsage = errors.New("invalid usage")

// Run はクライアントのエントリーポイント。argsにはos.Args[1:]を渡す。
// httpClientがnilの場合は既定のクライアントを使う。
func Run(ctx context.Context, stdout, stderr io.Writer, args []string, httpClient *http.Client) error {
	logger.SetupDefault(stderr, slog.LevelWarn)

	fs := flag.NewFlagSet("socialhubctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "", "path to a YAML config file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return ErrUsage
	}

	// ヘルプや引数の誤りは接続せずに返す
	var run func(cfg *Config, conn *Conn) error
	switch cmd, rest := fs.Arg(0), fs.Args()[1:]; cmd {
	case "post":
		opts, err := parsePostArgs(rest, stderr)
		if err != nil {
			return err
		}
		run = func(cfg *Config, conn *Conn) error { return runPost(ctx, cfg, conn, stdout, opts) }
	case "notifications":
		opts, err := parseNotificationsArgs(rest, stderr)
		if err != nil {
			return err
		}
		run = func(cfg *Config, conn *Conn) error { return runNotifications(ctx, conn, stdout, opts) }
	default:
		fs.Usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}
	conn, err := Connect(ctx, cfg, httpClient)
	if err != nil {
		return err
	}
	return run(cfg, conn)
}

// parseFlags はflag.ErrHelp以外の解析エラーをErrUsageで包む。
func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUsage, err)
}
