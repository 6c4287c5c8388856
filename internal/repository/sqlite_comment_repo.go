package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shokal/postfeed/internal/model"
)

// SQLiteCommentRepo はSQLiteを使用したコメントキャッシュリポジトリ。
type SQLiteCommentRepo struct {
	db *sql.DB
}

// NewSQLiteCommentRepo はSQLiteCommentRepoを生成する。
func NewSQLiteCommentRepo(db *sql.DB) *SQLiteCommentRepo {
	return &SQLiteCommentRepo{db: db}
}

// ListByPost は指定投稿のコメントをid昇順で返す。
func (r *SQLiteCommentRepo) ListByPost(ctx context.Context, postID int) ([]model.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, post_id, name, email, body
		 FROM comments WHERE post_id = ? ORDER BY id ASC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.Name, &c.Email, &c.Body); err != nil {
			return nil, fmt.Errorf("コメント行の読み取りに失敗しました: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コメント一覧の走査に失敗しました: %w", err)
	}

	return comments, nil
}

// UpsertComments はコメントをまとめてINSERT-OR-REPLACEする。
func (r *SQLiteCommentRepo) UpsertComments(ctx context.Context, comments []model.Comment) error {
	if len(comments) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("コメント保存のトランザクション開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO comments (id, post_id, name, email, body)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		    post_id = excluded.post_id,
		    name    = excluded.name,
		    email   = excluded.email,
		    body    = excluded.body`,
	)
	if err != nil {
		return fmt.Errorf("コメント保存のステートメント準備に失敗しました: %w", err)
	}
	defer stmt.Close()

	for _, c := range comments {
		if _, err := stmt.ExecContext(ctx, c.ID, c.PostID, c.Name, c.Email, c.Body); err != nil {
			return fmt.Errorf("コメントの保存に失敗しました (id=%d): %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コメント保存のコミットに失敗しました: %w", err)
	}
	return nil
}

// CountByPost は指定投稿のキャッシュ済みコメント数を返す。
func (r *SQLiteCommentRepo) CountByPost(ctx context.Context, postID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE post_id = ?`,
		postID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("コメント数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// DeleteByPost は指定投稿のコメントを全て削除する。
func (r *SQLiteCommentRepo) DeleteByPost(ctx context.Context, postID int) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("コメントの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CommentRepository = (*SQLiteCommentRepo)(nil)
