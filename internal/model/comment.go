package model

// Comment は投稿に紐づくコメントを表す。
// リモートフィードから取得し、オフライン閲覧用にキャッシュされる。
type Comment struct {
	ID     int    `json:"id"`
	PostID int    `json:"postId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Body   string `json:"body"`
}
