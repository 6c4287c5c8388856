package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shokal/postfeed/internal/model"
)

// SQLiteFavoriteRepo はSQLiteを使用したお気に入りリポジトリ。
type SQLiteFavoriteRepo struct {
	db *sql.DB
}

// NewSQLiteFavoriteRepo はSQLiteFavoriteRepoを生成する。
func NewSQLiteFavoriteRepo(db *sql.DB) *SQLiteFavoriteRepo {
	return &SQLiteFavoriteRepo{db: db}
}

// ListByUser は指定ユーザーのお気に入り一覧をpost_id降順で返す。
func (r *SQLiteFavoriteRepo) ListByUser(ctx context.Context, userKey string) ([]model.Favorite, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT post_id, user_key, title, body, original_user_id
		 FROM favorites WHERE user_key = ? ORDER BY post_id DESC`,
		userKey,
	)
	if err != nil {
		return nil, fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var favorites []model.Favorite
	for rows.Next() {
		var f model.Favorite
		if err := rows.Scan(&f.PostID, &f.UserKey, &f.Title, &f.Body, &f.OriginalUserID); err != nil {
			return nil, fmt.Errorf("お気に入り行の読み取りに失敗しました: %w", err)
		}
		favorites = append(favorites, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("お気に入り一覧の走査に失敗しました: %w", err)
	}

	return favorites, nil
}

// Find は複合キーでお気に入りを検索する。見つからない場合はnilを返す。
func (r *SQLiteFavoriteRepo) Find(ctx context.Context, postID int, userKey string) (*model.Favorite, error) {
	f := &model.Favorite{}
	err := r.db.QueryRowContext(ctx,
		`SELECT post_id, user_key, title, body, original_user_id
		 FROM favorites WHERE post_id = ? AND user_key = ?`,
		postID, userKey,
	).Scan(&f.PostID, &f.UserKey, &f.Title, &f.Body, &f.OriginalUserID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("お気に入りの検索に失敗しました: %w", err)
	}

	return f, nil
}

// Upsert はお気に入りを冪等にUPSERTする。
// タイトルと本文は登録時点のスナップショットとして保存される。
func (r *SQLiteFavoriteRepo) Upsert(ctx context.Context, favorite *model.Favorite) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO favorites (post_id, user_key, title, body, original_user_id)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (post_id, user_key) DO UPDATE SET
		    title            = excluded.title,
		    body             = excluded.body,
		    original_user_id = excluded.original_user_id`,
		favorite.PostID, favorite.UserKey, favorite.Title, favorite.Body, favorite.OriginalUserID,
	)
	if err != nil {
		return fmt.Errorf("お気に入りの保存に失敗しました: %w", err)
	}
	return nil
}

// Delete は複合キーでお気に入りを削除する。
func (r *SQLiteFavoriteRepo) Delete(ctx context.Context, postID int, userKey string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE post_id = ? AND user_key = ?`,
		postID, userKey,
	)
	if err != nil {
		return fmt.Errorf("お気に入りの削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteAllForUser は指定ユーザーの全お気に入りを削除する。
func (r *SQLiteFavoriteRepo) DeleteAllForUser(ctx context.Context, userKey string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_key = ?`,
		userKey,
	)
	if err != nil {
		return fmt.Errorf("ユーザーのお気に入り全削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ FavoriteRepository = (*SQLiteFavoriteRepo)(nil)
