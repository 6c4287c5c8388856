package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLitePreferenceRepo はSQLiteを使用したキーバリュー設定リポジトリ。
// ログイン状態とユーザー識別子の永続化に使用される。
type SQLitePreferenceRepo struct {
	db *sql.DB
}

// NewSQLitePreferenceRepo はSQLitePreferenceRepoを生成する。
func NewSQLitePreferenceRepo(db *sql.DB) *SQLitePreferenceRepo {
	return &SQLitePreferenceRepo{db: db}
}

// Get は指定キーの値を取得する。存在しない場合は第2戻り値がfalse。
func (r *SQLitePreferenceRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE key = ?`, key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("設定値の取得に失敗しました (key=%s): %w", key, err)
	}

	return value, true, nil
}

// Set は指定キーの値を冪等にUPSERTする。
func (r *SQLitePreferenceRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("設定値の保存に失敗しました (key=%s): %w", key, err)
	}
	return nil
}

// Delete は指定キーを削除する。存在しない場合もエラーにしない。
func (r *SQLitePreferenceRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, key); err != nil {
		return fmt.Errorf("設定値の削除に失敗しました (key=%s): %w", key, err)
	}
	return nil
}

// compile-time interface check
var _ PreferenceRepository = (*SQLitePreferenceRepo)(nil)
