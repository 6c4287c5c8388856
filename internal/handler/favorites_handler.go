package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shokal/postfeed/internal/middleware"
	"github.com/shokal/postfeed/internal/model"
)

// FavoriteServiceInterface はお気に入りハンドラーが必要とするサービスインターフェース。
type FavoriteServiceInterface interface {
	ListForUser(ctx context.Context, userKey string) ([]model.Favorite, error)
	Remove(ctx context.Context, postID int, userKey string) error
	ClearForUser(ctx context.Context, userKey string) error
}

// FavoritesHandler はお気に入り管理のHTTPハンドラー。
type FavoritesHandler struct {
	service FavoriteServiceInterface
}

// NewFavoritesHandler はFavoritesHandlerを生成する。
func NewFavoritesHandler(service FavoriteServiceInterface) *FavoritesHandler {
	return &FavoritesHandler{service: service}
}

// favoritesResponse はお気に入り一覧のAPIレスポンス。
type favoritesResponse struct {
	Favorites []model.Favorite `json:"favorites"`
	Count     int              `json:"count"`
}

// List はログインユーザーのお気に入り一覧を返す。
// GET /api/favorites
func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	userKey, err := middleware.UserKeyFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotLoggedInError())
		return
	}

	favorites, err := h.service.ListForUser(r.Context(), userKey)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(favoritesResponse{
		Favorites: favorites,
		Count:     len(favorites),
	})
}

// Remove は指定投稿のお気に入りを削除する。
// DELETE /api/favorites/{postID}
func (h *FavoritesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userKey, err := middleware.UserKeyFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotLoggedInError())
		return
	}

	postID, err := strconv.Atoi(chi.URLParam(r, "postID"))
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "投稿IDは数値で指定してください。",
			Category: "validation",
			Action:   "URLの投稿IDを確認してください。",
		})
		return
	}

	if err := h.service.Remove(r.Context(), postID, userKey); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Clear はログインユーザーの全お気に入りを削除する。
// DELETE /api/favorites
func (h *FavoritesHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userKey, err := middleware.UserKeyFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotLoggedInError())
		return
	}

	if err := h.service.ClearForUser(r.Context(), userKey); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
