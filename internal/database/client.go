package database

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"
)

// ClientOptions はClientの動作設定。
type ClientOptions struct {
	// LogQueries が真の場合、発行したSQLをDebugレベルでログ出力する。
	LogQueries bool
	Logger     *slog.Logger
}

// Client はプロセスで1つだけ生成するデータベースクライアント。
// 起動処理で生成し、全リポジトリに注入して共有する。
// 並行実行の制御は*sql.DBのコネクションプールに任せる。
type Client struct {
	db         *sql.DB
	logQueries bool
	logger     *slog.Logger
}

// NewClient は*sql.DBをラップしたClientを生成する。
func NewClient(db *sql.DB, opts ClientOptions) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		db:         db,
		logQueries: opts.LogQueries,
		logger:     logger,
	}
}

// DB は内部の*sql.DBを返す。
func (c *Client) DB() *sql.DB {
	return c.db
}

// ExecContext はクエリを実行する。
func (c *Client) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := c.db.ExecContext(ctx, query, args...)
	c.logQuery(ctx, query, start, err)
	return res, err
}

// QueryContext は複数行を返すクエリを実行する。
func (c *Client) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := c.db.QueryContext(ctx, query, args...)
	c.logQuery(ctx, query, start, err)
	return rows, err
}

// QueryRowContext は1行を返すクエリを実行する。
// エラーはScan時に判明するため、ログにはエラーを含めない。
func (c *Client) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := c.db.QueryRowContext(ctx, query, args...)
	c.logQuery(ctx, query, start, nil)
	return row
}

// BeginTx はトランザクションを開始する。
func (c *Client) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return c.db.BeginTx(ctx, opts)
}

// PingContext はデータベースへの疎通を確認する。
func (c *Client) PingContext(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close はコネクションプールを閉じる。
func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) logQuery(ctx context.Context, query string, start time.Time, err error) {
	if !c.logQueries {
		return
	}
	attrs := []any{
		slog.String("query", compactQuery(query)),
		slog.Float64("duration_ms", float64(time.Since(start).Nanoseconds())/float64(time.Millisecond)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	c.logger.DebugContext(ctx, "sql_query", attrs...)
}

// compactQuery は改行やインデントを1つの空白にまとめる。
func compactQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
