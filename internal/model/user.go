package model

import "time"

// User はローカル登録されたユーザーアカウントを表す。
// メールアドレスが主キー。
// パスワードは参照実装と同様に平文で保存・比較される。
type User struct {
	Email     string
	Password  string
	CreatedAt time.Time
}

// Session は認証済みセッションを表す。
// IDはHTTP Only Cookieに格納される。
type Session struct {
	ID        string
	UserEmail string
	ExpiresAt time.Time
	CreatedAt time.Time
}
