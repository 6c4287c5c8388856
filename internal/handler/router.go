package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shokal/postfeed/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// フィード
	Engine         FeedEngineInterface
	CommentService CommentServiceInterface

	// お気に入り
	FavoriteService FavoriteServiceInterface

	// メトリクス
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → SessionMiddleware → RateLimitMiddleware
//
// 認証ルート（/auth/*）、/health、/metrics はセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	postsHandler := NewPostsHandler(deps.Engine, deps.CommentService)
	favoritesHandler := NewFavoritesHandler(deps.FavoriteService)

	// --- 認証不要のルート ---

	r.Get("/health", handleHealth)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.Middleware())

		// フィード操作
		r.Route("/api/posts", func(r chi.Router) {
			r.Get("/", postsHandler.GetSnapshot)
			r.Post("/refresh", postsHandler.Refresh)
			r.Post("/load-more", postsHandler.LoadMore)
			r.Put("/search", postsHandler.Search)
			r.Put("/view", postsHandler.SetView)
			r.Post("/clear-error", postsHandler.ClearError)

			r.Route("/{id}", func(r chi.Router) {
				r.Post("/favorite", postsHandler.ToggleFavorite)
				r.Get("/comments", postsHandler.GetComments)
			})
		})

		// お気に入り管理
		r.Route("/api/favorites", func(r chi.Router) {
			r.Get("/", favoritesHandler.List)
			r.Delete("/", favoritesHandler.Clear)
			r.Delete("/{postID}", favoritesHandler.Remove)
		})
	})

	return r
}

// handleHealth はヘルスチェックエンドポイント。
// GET /health
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
