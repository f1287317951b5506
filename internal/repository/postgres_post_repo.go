package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/socialhub/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db DBTX
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db DBTX) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// Create は投稿を作成する。画像URLは添付順にTEXT[]として保存する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	imageURLs := post.ImageURLs
	if imageURLs == nil {
		imageURLs = []string{}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, author_id, content, visibility, community, image_urls, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		post.ID, post.AuthorID, post.Content, string(post.Visibility), post.Community,
		pq.Array(imageURLs), post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}
	return nil
}

// ListFeed は閲覧者に見える投稿を (created_at, id) の降順で取得する。
// 同時刻の投稿がページ境界をまたいでも重複や欠落が起きないよう、行値比較でidも比べる。
func (r *PostgresPostRepo) ListFeed(ctx context.Context, viewerID string, cursor model.FeedCursor, limit int) ([]model.PostWithAuthor, error) {
	query := `
		SELECT p.id, p.author_id, p.content, p.visibility, p.community, p.image_urls, p.created_at,
		       u.name, u.image
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE (p.visibility = 'everyone' OR p.author_id = $1)`

	args := []interface{}{viewerID}
	argIndex := 2

	if !cursor.IsZero() {
		query += fmt.Sprintf(" AND (p.created_at, p.id) < ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, cursor.CreatedAt, cursor.ID)
		argIndex += 2
	}

	query += fmt.Sprintf(" ORDER BY p.created_at DESC, p.id DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var posts []model.PostWithAuthor
	for rows.Next() {
		var p model.PostWithAuthor
		var visibility string
		var imageURLs pq.StringArray
		if err := rows.Scan(
			&p.ID, &p.AuthorID, &p.Content, &visibility, &p.Community, &imageURLs, &p.CreatedAt,
			&p.AuthorName, &p.AuthorImage,
		); err != nil {
			return nil, fmt.Errorf("投稿行の読み取りに失敗しました: %w", err)
		}
		p.Visibility = model.Visibility(visibility)
		p.ImageURLs = []string(imageURLs)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィードの走査に失敗しました: %w", err)
	}

	return posts, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
