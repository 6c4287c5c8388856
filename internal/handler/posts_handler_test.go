package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/shokal/postfeed/internal/feed"
	"github.com/shokal/postfeed/internal/model"
)

// --- モック定義 ---

// mockEngine はインテント呼び出しを記録し、固定のスナップショットを返す。
type mockEngine struct {
	snapshot feed.Snapshot

	refreshCalls      int
	forceRefreshCalls int
	loadMoreCalls     int
	searchQueries     []string
	toggledPosts      []model.Post
	viewFlags         []bool
	clearErrorCalls   int
}

func (m *mockEngine) Refresh(ctx context.Context)      { m.refreshCalls++ }
func (m *mockEngine) ForceRefresh(ctx context.Context) { m.forceRefreshCalls++ }
func (m *mockEngine) LoadMore(ctx context.Context)     { m.loadMoreCalls++ }
func (m *mockEngine) Search(query string)              { m.searchQueries = append(m.searchQueries, query) }
func (m *mockEngine) ClearError()                      { m.clearErrorCalls++ }
func (m *mockEngine) Snapshot() feed.Snapshot          { return m.snapshot }

func (m *mockEngine) ToggleFavorite(ctx context.Context, post model.Post) {
	m.toggledPosts = append(m.toggledPosts, post)
}

func (m *mockEngine) SetShowFavoritesOnly(ctx context.Context, flag bool) {
	m.viewFlags = append(m.viewFlags, flag)
}

type mockCommentService struct {
	loadForPostFn func(ctx context.Context, postID int) ([]model.Comment, error)
}

func (m *mockCommentService) LoadForPost(ctx context.Context, postID int) ([]model.Comment, error) {
	return m.loadForPostFn(ctx, postID)
}

// withURLParam はchiのURLパラメータをリクエストコンテキストに注入する。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// --- テスト ---

func TestPostsHandler_GetSnapshot_ReturnsState(t *testing.T) {
	engine := &mockEngine{
		snapshot: feed.Snapshot{
			Posts:        []model.Post{{ID: 2, Title: "b"}, {ID: 1, Title: "a"}},
			HasMorePosts: true,
			CurrentPage:  1,
		},
	}
	h := NewPostsHandler(engine, &mockCommentService{})

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	w := httptest.NewRecorder()

	h.GetSnapshot(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got feed.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got.Posts) != 2 {
		t.Errorf("posts count = %d, want 2", len(got.Posts))
	}
	if !got.HasMorePosts {
		t.Error("expected hasMorePosts = true")
	}
}

func TestPostsHandler_Refresh_CallsRefresh(t *testing.T) {
	engine := &mockEngine{}
	h := NewPostsHandler(engine, &mockCommentService{})

	req := httptest.NewRequest(http.MethodPost, "/api/posts/refresh", nil)
	w := httptest.NewRecorder()

	h.Refresh(w, req)

	if engine.refreshCalls != 1 {
		t.Errorf("refresh calls = %d, want 1", engine.refreshCalls)
	}
	if engine.forceRefreshCalls != 0 {
		t.Errorf("force refresh calls = %d, want 0", engine.forceRefreshCalls)
	}
}

func TestPostsHandler_Refresh_ForceTrue_CallsForceRefresh(t *testing.T) {
	engine := &mockEngine{}
	h := NewPostsHandler(engine, &mockCommentService{})

	req := httptest.NewRequest(http.MethodPost, "/api/posts/refresh?force=true", nil)
	w := httptest.NewRecorder()

	h.Refresh(w, req)

	if engine.forceRefreshCalls != 1 {
		t.Errorf("force refresh calls = %d, want 1", engine.forceRefreshCalls)
	}
	if engine.refreshCalls != 0 {
		t.Errorf("refresh calls = %d, want 0", engine.refreshCalls)
	}
}

func TestPostsHandler_LoadMore_ReturnsSnapshot(t *testing.T) {
	engine := &mockEngine{
		snapshot: feed.Snapshot{CurrentPage: 2},
	}
	h := NewPostsHandler(engine, &mockCommentService{})

	req := httptest.NewRequest(http.MethodPost, "/api/posts/load-more", nil)
	w := httptest.NewRecorder()

	h.LoadMore(w, req)

	if engine.loadMoreCalls != 1 {
		t.Errorf("load more calls = %d, want 1", engine.loadMoreCalls)
	}

	var got feed.Snapshot
	if err := json.NewDecoder(w.Result().Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.CurrentPage != 2 {
		t.Errorf("currentPage = %d, want 2", got.CurrentPage)
	}
}

func TestPostsHandler_Search_PassesQuery(t *testing.T) {
	engine := &mockEngine{}
	h := NewPostsHandler(engine, &mockCommentService{})

	req := httptest.NewRequest(http.MethodPut, "/api/posts/search", strings.NewReader(`{"query":"golang"}`))
	w := httptest.NewRecorder()

	h.Search(w, req)

	if len(engine.searchQueries) != 1 || engine.searchQueries[0] != "golang" {
		t.Errorf("search queries = %v, want [golang]", engine.searchQueries)
	}
}

func TestPostsHandler_Search_InvalidBody_Returns400(t *testing.T) {
	engine := &mockEngine{}
	h := NewPostsHandler(engine, &mockCommentService{})

	req := httptest.NewRequest(http.MethodPut, "/api/posts/search", strings.NewReader("{invalid"))
	w := httptest.NewRecorder()

	h.Search(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
	if len(engine.searchQueries) != 0 {
		t.Error("engine should not be called for invalid body")
	}
}

func TestPostsHandler_SetView_PassesFlag(t *testing.T) {
	engine := &mockEngine{}
	h := NewPostsHandler(engine, &mockCommentService{})

	req := httptest.NewRequest(http.MethodPut, "/api/posts/view", strings.NewReader(`{"favorites_only":true}`))
	w := httptest.NewRecorder()

	h.SetView(w, req)

	if len(engine.viewFlags) != 1 || !engine.viewFlags[0] {
		t.Errorf("view flags = %v, want [true]", engine.viewFlags)
	}
}

func TestPostsHandler_ToggleFavorite_VisiblePost(t *testing.T) {
	engine := &mockEngine{
		snapshot: feed.Snapshot{
			Posts: []model.Post{{ID: 5, Title: "target"}, {ID: 4, Title: "other"}},
		},
	}
	h := NewPostsHandler(engine, &mockCommentService{})

	req := httptest.NewRequest(http.MethodPost, "/api/posts/5/favorite", nil)
	req = withURLParam(req, "id", "5")
	w := httptest.NewRecorder()

	h.ToggleFavorite(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if len(engine.toggledPosts) != 1 || engine.toggledPosts[0].ID != 5 {
		t.Errorf("toggled posts = %v, want post 5", engine.toggledPosts)
	}
}

func TestPostsHandler_ToggleFavorite_NotVisible_Returns404(t *testing.T) {
	engine := &mockEngine{
		snapshot: feed.Snapshot{Posts: []model.Post{{ID: 4}}},
	}
	h := NewPostsHandler(engine, &mockCommentService{})

	req := httptest.NewRequest(http.MethodPost, "/api/posts/99/favorite", nil)
	req = withURLParam(req, "id", "99")
	w := httptest.NewRecorder()

	h.ToggleFavorite(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
	if len(engine.toggledPosts) != 0 {
		t.Error("engine should not be called for invisible post")
	}
}

func TestPostsHandler_ToggleFavorite_NonNumericID_Returns400(t *testing.T) {
	engine := &mockEngine{}
	h := NewPostsHandler(engine, &mockCommentService{})

	req := httptest.NewRequest(http.MethodPost, "/api/posts/abc/favorite", nil)
	req = withURLParam(req, "id", "abc")
	w := httptest.NewRecorder()

	h.ToggleFavorite(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestPostsHandler_ClearError_CallsEngine(t *testing.T) {
	engine := &mockEngine{}
	h := NewPostsHandler(engine, &mockCommentService{})

	req := httptest.NewRequest(http.MethodPost, "/api/posts/clear-error", nil)
	w := httptest.NewRecorder()

	h.ClearError(w, req)

	if engine.clearErrorCalls != 1 {
		t.Errorf("clear error calls = %d, want 1", engine.clearErrorCalls)
	}
}

func TestPostsHandler_GetComments_ReturnsList(t *testing.T) {
	engine := &mockEngine{}
	comments := &mockCommentService{
		loadForPostFn: func(ctx context.Context, postID int) ([]model.Comment, error) {
			if postID != 7 {
				t.Errorf("postID = %d, want 7", postID)
			}
			return []model.Comment{
				{ID: 1, PostID: 7, Name: "a"},
				{ID: 2, PostID: 7, Name: "b"},
			}, nil
		},
	}
	h := NewPostsHandler(engine, comments)

	req := httptest.NewRequest(http.MethodGet, "/api/posts/7/comments", nil)
	req = withURLParam(req, "id", "7")
	w := httptest.NewRecorder()

	h.GetComments(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got commentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Count != 2 {
		t.Errorf("count = %d, want 2", got.Count)
	}
}

func TestPostsHandler_GetComments_Unavailable_Returns502(t *testing.T) {
	engine := &mockEngine{}
	comments := &mockCommentService{
		loadForPostFn: func(ctx context.Context, postID int) ([]model.Comment, error) {
			return nil, model.NewCommentsUnavailableError(postID)
		},
	}
	h := NewPostsHandler(engine, comments)

	req := httptest.NewRequest(http.MethodGet, "/api/posts/7/comments", nil)
	req = withURLParam(req, "id", "7")
	w := httptest.NewRecorder()

	h.GetComments(w, req)

	if w.Result().StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadGateway)
	}
}
