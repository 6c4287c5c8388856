// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/shokal/postfeed/internal/model"
)

// PostRepository は投稿キャッシュの永続化インターフェース。
// キャッシュの正準順序はid降順であり、ListAll/ListFavoriteFlagged/Searchの
// すべてがこの順序で結果を返す。オフラインフォールバックの「残り」計算も
// ListAllの返すリストの位置に基づいて行われる。
type PostRepository interface {
	// UpsertPosts は投稿をまとめてINSERT-OR-REPLACEする。
	// 既存レコードのis_favoriteフラグは置き換え時も維持される
	// （フラグを変更できるのはSetFavoriteFlagのみ）。
	UpsertPosts(ctx context.Context, posts []model.Post) error

	// ListAll は全キャッシュ投稿をid降順で返す。
	ListAll(ctx context.Context) ([]model.Post, error)

	// ListFavoriteFlagged はis_favorite=trueの投稿をid降順で返す。
	ListFavoriteFlagged(ctx context.Context) ([]model.Post, error)

	// Search はタイトルまたは本文に部分一致する投稿をid降順で返す。
	// 大文字小文字は区別しない。
	Search(ctx context.Context, query string) ([]model.Post, error)

	// SetFavoriteFlag は指定投稿のお気に入りフラグを更新する。
	SetFavoriteFlag(ctx context.Context, postID int, isFavorite bool) error

	// ClearAll は全キャッシュ投稿を削除する。
	ClearAll(ctx context.Context) error
}

// FavoriteRepository はユーザーごとのお気に入りの永続化インターフェース。
// (post_id, user_key) の複合キーで一意。
type FavoriteRepository interface {
	// ListByUser は指定ユーザーのお気に入り一覧をpost_id降順で返す。
	ListByUser(ctx context.Context, userKey string) ([]model.Favorite, error)

	// Find は複合キーでお気に入りを検索する。見つからない場合はnilを返す。
	Find(ctx context.Context, postID int, userKey string) (*model.Favorite, error)

	// Upsert はお気に入りを冪等にUPSERTする。
	Upsert(ctx context.Context, favorite *model.Favorite) error

	// Delete は複合キーでお気に入りを削除する。
	Delete(ctx context.Context, postID int, userKey string) error

	// DeleteAllForUser は指定ユーザーの全お気に入りを削除する。
	DeleteAllForUser(ctx context.Context, userKey string) error
}

// CommentRepository はコメントキャッシュの永続化インターフェース。
type CommentRepository interface {
	// ListByPost は指定投稿のコメントをid昇順で返す。
	ListByPost(ctx context.Context, postID int) ([]model.Comment, error)

	// UpsertComments はコメントをまとめてINSERT-OR-REPLACEする。
	UpsertComments(ctx context.Context, comments []model.Comment) error

	// CountByPost は指定投稿のキャッシュ済みコメント数を返す。
	CountByPost(ctx context.Context, postID int) (int, error)

	// DeleteByPost は指定投稿のコメントを全て削除する。
	DeleteByPost(ctx context.Context, postID int) error
}

// UserRepository はユーザーアカウントの永続化インターフェース。
type UserRepository interface {
	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByEmailAndPassword はメールアドレスとパスワードの組でユーザーを検索する。
	// 参照実装と同様、パスワードは平文比較。見つからない場合はnilを返す。
	FindByEmailAndPassword(ctx context.Context, email, password string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteByUserEmail は指定ユーザーの全セッションを削除する。
	DeleteByUserEmail(ctx context.Context, userEmail string) error
}

// PreferenceRepository はキーバリュー形式の設定値の永続化インターフェース。
// ログイン状態やユーザー識別子の保存に使用される。
type PreferenceRepository interface {
	// Get は指定キーの値を取得する。存在しない場合は第2戻り値がfalse。
	Get(ctx context.Context, key string) (string, bool, error)

	// Set は指定キーの値を冪等にUPSERTする。
	Set(ctx context.Context, key, value string) error

	// Delete は指定キーを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, key string) error
}
