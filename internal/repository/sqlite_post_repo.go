package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shokal/postfeed/internal/model"
)

// SQLitePostRepo はSQLiteを使用した投稿キャッシュリポジトリ。
type SQLitePostRepo struct {
	db *sql.DB
}

// NewSQLitePostRepo はSQLitePostRepoを生成する。
func NewSQLitePostRepo(db *sql.DB) *SQLitePostRepo {
	return &SQLitePostRepo{db: db}
}

// UpsertPosts は投稿をまとめてINSERT-OR-REPLACEする。
// 既存レコードのis_favoriteフラグは置き換え時も維持される。
func (r *SQLitePostRepo) UpsertPosts(ctx context.Context, posts []model.Post) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("投稿保存のトランザクション開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO posts (id, user_id, title, body, is_favorite)
		 VALUES (?, ?, ?, ?, 0)
		 ON CONFLICT (id) DO UPDATE SET
		    user_id = excluded.user_id,
		    title   = excluded.title,
		    body    = excluded.body`,
	)
	if err != nil {
		return fmt.Errorf("投稿保存のステートメント準備に失敗しました: %w", err)
	}
	defer stmt.Close()

	for _, p := range posts {
		if _, err := stmt.ExecContext(ctx, p.ID, p.UserID, p.Title, p.Body); err != nil {
			return fmt.Errorf("投稿の保存に失敗しました (id=%d): %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("投稿保存のコミットに失敗しました: %w", err)
	}
	return nil
}

// ListAll は全キャッシュ投稿をid降順で返す。
func (r *SQLitePostRepo) ListAll(ctx context.Context) ([]model.Post, error) {
	return r.queryPosts(ctx,
		`SELECT id, user_id, title, body, is_favorite
		 FROM posts ORDER BY id DESC`,
	)
}

// ListFavoriteFlagged はis_favorite=trueの投稿をid降順で返す。
func (r *SQLitePostRepo) ListFavoriteFlagged(ctx context.Context) ([]model.Post, error) {
	return r.queryPosts(ctx,
		`SELECT id, user_id, title, body, is_favorite
		 FROM posts WHERE is_favorite = 1 ORDER BY id DESC`,
	)
}

// Search はタイトルまたは本文に部分一致する投稿をid降順で返す。
// 大文字小文字は区別しない。
func (r *SQLitePostRepo) Search(ctx context.Context, query string) ([]model.Post, error) {
	pattern := "%" + query + "%"
	return r.queryPosts(ctx,
		`SELECT id, user_id, title, body, is_favorite
		 FROM posts
		 WHERE LOWER(title) LIKE LOWER(?) OR LOWER(body) LIKE LOWER(?)
		 ORDER BY id DESC`,
		pattern, pattern,
	)
}

// SetFavoriteFlag は指定投稿のお気に入りフラグを更新する。
func (r *SQLitePostRepo) SetFavoriteFlag(ctx context.Context, postID int, isFavorite bool) error {
	flag := 0
	if isFavorite {
		flag = 1
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE posts SET is_favorite = ? WHERE id = ?`,
		flag, postID,
	)
	if err != nil {
		return fmt.Errorf("お気に入りフラグの更新に失敗しました (id=%d): %w", postID, err)
	}
	return nil
}

// ClearAll は全キャッシュ投稿を削除する。
func (r *SQLitePostRepo) ClearAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM posts`); err != nil {
		return fmt.Errorf("投稿キャッシュの全削除に失敗しました: %w", err)
	}
	return nil
}

// queryPosts は投稿クエリを実行して結果をスキャンする。
func (r *SQLitePostRepo) queryPosts(ctx context.Context, query string, args ...any) ([]model.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		var p model.Post
		var fav int
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Body, &fav); err != nil {
			return nil, fmt.Errorf("投稿行の読み取りに失敗しました: %w", err)
		}
		p.IsFavorite = fav != 0
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿一覧の走査に失敗しました: %w", err)
	}

	return posts, nil
}

// compile-time interface check
var _ PostRepository = (*SQLitePostRepo)(nil)
