// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shokal/postfeed/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userKeyContextKey はリクエストコンテキストにユーザー識別子を格納するためのキー。
var userKeyContextKey = contextKey("user_key")

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効性を検証するミドルウェアを返す。
// 認証済みユーザーの識別子（メールアドレス）をリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからセッションIDを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotLoggedInError())
				return
			}

			// 2. セッションの有効性を検証（期限切れはnilで返る）
			session, err := sessionFinder.FindByID(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("セッションの検索に失敗しました",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotLoggedInError())
				return
			}
			if session == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotLoggedInError())
				return
			}

			// 3. 認証済みユーザー識別子をコンテキストに注入
			ctx := context.WithValue(r.Context(), userKeyContextKey, session.UserEmail)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserKeyFromContext はリクエストコンテキストからユーザー識別子を取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserKeyFromContext(ctx context.Context) (string, error) {
	userKey, ok := ctx.Value(userKeyContextKey).(string)
	if !ok || userKey == "" {
		return "", fmt.Errorf("user key not found in context")
	}
	return userKey, nil
}

// ContextWithUserKey はコンテキストにユーザー識別子を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserKey(ctx context.Context, userKey string) context.Context {
	return context.WithValue(ctx, userKeyContextKey, userKey)
}
