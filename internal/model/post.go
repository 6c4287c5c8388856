// Package model はドメインモデルを定義する。
package model

// Post はリモートフィードから取得した投稿を表す。
// IDはリモート側で採番される安定した一意な識別子。
// IsFavoriteはキャッシュローカルな注釈であり、リモートには存在しない。
type Post struct {
	ID         int    `json:"id"`
	UserID     int    `json:"userId"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	IsFavorite bool   `json:"isFavorite"`
}

// Favorite はユーザーごとの投稿ブックマークを表す。
// (PostID, UserKey) の複合キーで一意。
// TitleとBodyはお気に入り登録時点のスナップショットであり、
// 元のPostが後から変わっても更新されない。
type Favorite struct {
	PostID         int    `json:"postId"`
	UserKey        string `json:"userKey"` // ログインユーザーのメールアドレス
	Title          string `json:"title"`
	Body           string `json:"body"`
	OriginalUserID int    `json:"originalUserId"` // リモートフィード上の投稿者ID
}
