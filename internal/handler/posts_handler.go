package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shokal/postfeed/internal/feed"
	"github.com/shokal/postfeed/internal/middleware"
	"github.com/shokal/postfeed/internal/model"
)

// FeedEngineInterface は投稿ハンドラーが必要とするエンジンのインターフェース。
// 各操作は状態を更新するだけで、結果は常にSnapshotで返される。
type FeedEngineInterface interface {
	Refresh(ctx context.Context)
	ForceRefresh(ctx context.Context)
	LoadMore(ctx context.Context)
	Search(query string)
	ToggleFavorite(ctx context.Context, post model.Post)
	SetShowFavoritesOnly(ctx context.Context, flag bool)
	ClearError()
	Snapshot() feed.Snapshot
}

// CommentServiceInterface はコメント取得サービスのインターフェース。
type CommentServiceInterface interface {
	LoadForPost(ctx context.Context, postID int) ([]model.Comment, error)
}

// PostsHandler は投稿フィードのHTTPハンドラー。
// エンジンの各インテントをエンドポイントとして公開する。
type PostsHandler struct {
	engine   FeedEngineInterface
	comments CommentServiceInterface
}

// NewPostsHandler はPostsHandlerを生成する。
func NewPostsHandler(engine FeedEngineInterface, comments CommentServiceInterface) *PostsHandler {
	return &PostsHandler{
		engine:   engine,
		comments: comments,
	}
}

// searchRequest は検索クエリ更新リクエストのボディ。
type searchRequest struct {
	Query string `json:"query"`
}

// viewRequest は表示モード切り替えリクエストのボディ。
type viewRequest struct {
	FavoritesOnly bool `json:"favorites_only"`
}

// commentsResponse はコメント一覧のAPIレスポンス。
type commentsResponse struct {
	Comments []model.Comment `json:"comments"`
	Count    int             `json:"count"`
}

// GetSnapshot は現在のフィード状態を返す。
// GET /api/posts
func (h *PostsHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	writeSnapshot(w, h.engine.Snapshot())
}

// Refresh はフィードをリフレッシュする。?force=true で完全リセット付き。
// POST /api/posts/refresh
func (h *PostsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("force") == "true" {
		h.engine.ForceRefresh(r.Context())
	} else {
		h.engine.Refresh(r.Context())
	}
	writeSnapshot(w, h.engine.Snapshot())
}

// LoadMore は次ページを読み込む。前提条件を満たさない場合は
// 静かに何もせず現在のスナップショットを返す。
// POST /api/posts/load-more
func (h *PostsHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	h.engine.LoadMore(r.Context())
	writeSnapshot(w, h.engine.Snapshot())
}

// Search は検索クエリを更新する。空クエリで検索を解除する。
// PUT /api/posts/search
func (h *PostsHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	h.engine.Search(req.Query)
	writeSnapshot(w, h.engine.Snapshot())
}

// SetView はお気に入りのみ表示モードを切り替える。
// PUT /api/posts/view
func (h *PostsHandler) SetView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	h.engine.SetShowFavoritesOnly(r.Context(), req.FavoritesOnly)
	writeSnapshot(w, h.engine.Snapshot())
}

// ToggleFavorite は表示中の投稿のお気に入り状態を反転する。
// POST /api/posts/{id}/favorite
func (h *PostsHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "投稿IDは数値で指定してください。",
			Category: "validation",
			Action:   "URLの投稿IDを確認してください。",
		})
		return
	}

	// 対象の投稿は現在の表示リストから引く
	var target *model.Post
	for _, p := range h.engine.Snapshot().Posts {
		if p.ID == postID {
			target = &p
			break
		}
	}
	if target == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewPostNotFoundError(postID))
		return
	}

	h.engine.ToggleFavorite(r.Context(), *target)
	writeSnapshot(w, h.engine.Snapshot())
}

// ClearError は表示中のエラーメッセージをクリアする。
// POST /api/posts/clear-error
func (h *PostsHandler) ClearError(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearError()
	writeSnapshot(w, h.engine.Snapshot())
}

// GetComments は投稿のコメント一覧を返す。
// GET /api/posts/{id}/comments
func (h *PostsHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "投稿IDは数値で指定してください。",
			Category: "validation",
			Action:   "URLの投稿IDを確認してください。",
		})
		return
	}

	comments, err := h.comments.LoadForPost(r.Context(), postID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(commentsResponse{
		Comments: comments,
		Count:    len(comments),
	})
}

// --- ヘルパー関数 ---

// writeSnapshot はエンジンのスナップショットをJSONで書き込む。
func writeSnapshot(w http.ResponseWriter, snap feed.Snapshot) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// writeInvalidRequestBody はリクエストボディ解析失敗の400レスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeNotLoggedIn, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeDuplicateUser:
		return http.StatusConflict
	case model.ErrCodeInvalidEmail, model.ErrCodeWeakPassword, model.ErrCodePasswordMismatch:
		return http.StatusBadRequest
	case model.ErrCodePostNotFound:
		return http.StatusNotFound
	case model.ErrCodeCommentsUnavailable:
		return http.StatusBadGateway
	case model.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
