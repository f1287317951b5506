package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OpenListenPool はLISTEN/NOTIFY用のpgxコネクションプールを開く。
// LISTENはコネクション単位の状態を持つため、database/sqlのプールとは分けて管理する。
func OpenListenPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listen pool config: %w", err)
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open listen pool: %w", err)
	}
	return pool, nil
}
