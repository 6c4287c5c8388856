// Package feed は投稿フィードの同期・ページネーションエンジンを提供する。
// リモートの投稿APIとローカルキャッシュを仲介し、読み込み済み投稿リストの
// 正本をメモリ上に保持する。
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shokal/postfeed/internal/metrics"
	"github.com/shokal/postfeed/internal/model"
	"github.com/shokal/postfeed/internal/session"
)

// デフォルト設定値。
const (
	defaultPageSize = 10
	defaultDebounce = time.Second
)

// ユーザーに表示されるエラーメッセージ。
const (
	msgOfflineCacheFmt  = "オフラインモード: キャッシュされた投稿 %d 件を表示しています。"
	msgOfflineMode      = "オフラインモード: キャッシュされた投稿を表示しています。"
	msgNoPostsAvailable = "投稿を取得できませんでした。ネットワーク接続を確認してください。"
	msgNoMorePosts      = "これ以上表示できる投稿はありません。"
)

// RemoteClient はリモート投稿APIのインターフェース。
type RemoteClient interface {
	// FetchAll は全投稿を一括取得する。
	FetchAll(ctx context.Context) ([]model.Post, error)
	// FetchPage は1始まりのページ番号で投稿を取得する。
	FetchPage(ctx context.Context, page, limit int) ([]model.Post, error)
}

// PostStore はローカル投稿キャッシュのインターフェース。
type PostStore interface {
	UpsertPosts(ctx context.Context, posts []model.Post) error
	// ListAll はid降順で全キャッシュ投稿を返す。
	ListAll(ctx context.Context) ([]model.Post, error)
	ListFavoriteFlagged(ctx context.Context) ([]model.Post, error)
	SetFavoriteFlag(ctx context.Context, postID int, isFavorite bool) error
}

// FavoriteStore はお気に入りストアのインターフェース。
type FavoriteStore interface {
	ListByUser(ctx context.Context, userKey string) ([]model.Favorite, error)
	Upsert(ctx context.Context, favorite *model.Favorite) error
	Delete(ctx context.Context, postID int, userKey string) error
}

// SessionSource は現在のログイン状態を提供するインターフェース。
type SessionSource interface {
	Current(ctx context.Context) (session.Identity, error)
	Subscribe() <-chan session.Identity
}

// Config はエンジンの設定。
type Config struct {
	PageSize         int
	LoadMoreDebounce time.Duration
}

// Snapshot はエンジンの公開状態。表示用リストは導出済み。
type Snapshot struct {
	Posts             []model.Post `json:"posts"`
	IsLoading         bool         `json:"isLoading"`
	IsLoadingMore     bool         `json:"isLoadingMore"`
	ErrorMessage      string       `json:"errorMessage,omitempty"`
	SearchQuery       string       `json:"searchQuery"`
	ShowFavoritesOnly bool         `json:"showFavoritesOnly"`
	FavoritePostIDs   []int        `json:"favoritePostIds"`
	HasMorePosts      bool         `json:"hasMorePosts"`
	CurrentPage       int          `json:"currentPage"`
	IsSearching       bool         `json:"isSearching"`
}

// state はエンジンが保持する正本の内部状態。
// 全フィールドはEngine.muの保護下でのみ読み書きされる。
type state struct {
	allLoadedPosts       []model.Post
	currentPage          int
	hasMorePosts         bool
	searchQuery          string
	showFavoritesOnly    bool
	favoritePostIDs      map[int]struct{}
	favoriteFlaggedCache []model.Post
	isLoading            bool
	isLoadingMore        bool
	errorMessage         string
}

// Engine は同期・ページネーションエンジン。
//
// 状態の書き込みは単一のミューテックスで直列化される。リモート・ストア呼び出しは
// ロック外で実行し、結果の適用だけをロック下で行うため、フェッチ中も状態の
// 読み取りはブロックされない。ForceRefreshは世代カウンタを進め、
// 古い世代のフェッチ結果は適用時に破棄される。
type Engine struct {
	remote    RemoteClient
	posts     PostStore
	favorites FavoriteStore
	sessions  SessionSource
	recorder  metrics.Recorder
	logger    *slog.Logger

	pageSize int

	mu         sync.Mutex
	st         state
	generation uint64
	limiter    *rate.Limiter
	subs       []chan Snapshot
}

// NewEngine はEngineの新しいインスタンスを生成する。
func NewEngine(
	remote RemoteClient,
	posts PostStore,
	favorites FavoriteStore,
	sessions SessionSource,
	recorder metrics.Recorder,
	logger *slog.Logger,
	cfg Config,
) *Engine {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	debounce := cfg.LoadMoreDebounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	return &Engine{
		remote:    remote,
		posts:     posts,
		favorites: favorites,
		sessions:  sessions,
		recorder:  recorder,
		logger:    logger,
		pageSize:  pageSize,
		st: state{
			currentPage:     1,
			hasMorePosts:    true,
			favoritePostIDs: make(map[int]struct{}),
		},
		limiter: rate.NewLimiter(rate.Every(debounce), 1),
	}
}

// Start は初期状態の復元とセッション監視を開始する。
// お気に入りID集合を読み込み、投稿が未読み込みなら初回リフレッシュを行う。
// セッション変更の監視はctxが取り消されるまで継続する。
func (e *Engine) Start(ctx context.Context) {
	e.reloadFavoriteIDs(ctx)

	e.mu.Lock()
	empty := len(e.st.allLoadedPosts) == 0
	e.mu.Unlock()
	if empty {
		e.Refresh(ctx)
	}

	ch := e.sessions.Subscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case identity := <-ch:
				e.applyIdentity(ctx, identity)
			}
		}
	}()
}

// Refresh は全投稿の再取得を行う。
// リモート取得成功時は全件をキャッシュへ保存し、1ページ目を読み込み直す。
// リモート取得失敗時はキャッシュにフォールバックし、非致命的なオフライン
// メッセージを設定する。キャッシュも空の場合のみ致命的エラーを報告する。
// 完了時、isLoadingは必ずfalseになる。
func (e *Engine) Refresh(ctx context.Context) {
	e.mu.Lock()
	e.st.isLoading = true
	e.st.errorMessage = ""
	gen := e.generation
	e.mu.Unlock()
	e.publish()

	e.reloadFavoriteIDs(ctx)

	start := time.Now()
	firstPage, err := e.fetchAndPersistAll(ctx)
	if err == nil {
		e.recorder.RecordFetchSuccess()
		e.recorder.RecordFetchLatency(time.Since(start))
		e.recorder.RecordPageLoaded()

		e.mu.Lock()
		if gen != e.generation {
			e.mu.Unlock()
			return
		}
		e.st.allLoadedPosts = firstPage
		e.st.currentPage = 1
		e.st.hasMorePosts = len(firstPage) == e.pageSize
		e.st.isLoading = false
		e.mu.Unlock()
		e.publish()
		return
	}

	e.recorder.RecordFetchFailure("remote")
	e.logger.Warn("リモート取得に失敗しました。キャッシュにフォールバックします",
		slog.String("error", err.Error()),
	)

	cached, cacheErr := e.posts.ListAll(ctx)
	e.recorder.RecordCacheFallback()

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return
	}
	if cacheErr != nil || len(cached) == 0 {
		e.st.allLoadedPosts = nil
		e.st.hasMorePosts = false
		e.st.errorMessage = msgNoPostsAvailable
	} else {
		take := min(e.pageSize, len(cached))
		e.st.allLoadedPosts = append([]model.Post(nil), cached[:take]...)
		e.st.currentPage = 1
		e.st.hasMorePosts = len(cached) > e.pageSize
		e.st.errorMessage = fmt.Sprintf(msgOfflineCacheFmt, len(cached))
	}
	e.st.isLoading = false
	e.mu.Unlock()
	e.publish()
}

// fetchAndPersistAll は全件取得とキャッシュ保存を行い、1ページ目を返す。
func (e *Engine) fetchAndPersistAll(ctx context.Context) ([]model.Post, error) {
	posts, err := e.remote.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.posts.UpsertPosts(ctx, posts); err != nil {
		return nil, fmt.Errorf("投稿のキャッシュ保存に失敗しました: %w", err)
	}
	e.recorder.RecordPostsUpserted(len(posts))

	firstPage, err := e.remote.FetchPage(ctx, 1, e.pageSize)
	if err != nil {
		return nil, err
	}
	return firstPage, nil
}

// ForceRefresh は投稿リスト・ページ番号・検索状態を完全にリセットしてから
// リフレッシュを行う。進行中のフェッチは世代カウンタにより論理的に破棄される。
// お気に入り表示モードはリセットの対象外。
func (e *Engine) ForceRefresh(ctx context.Context) {
	e.mu.Lock()
	e.generation++
	e.st.allLoadedPosts = nil
	e.st.currentPage = 1
	e.st.hasMorePosts = true
	e.st.searchQuery = ""
	e.st.isLoadingMore = false
	e.mu.Unlock()

	e.Refresh(ctx)
}

// LoadMore は次ページの読み込みを行う。
// 前提条件（読み込み中でない、次ページがある、検索中でない、お気に入り
// 表示モードでない、前回から1秒以上経過）のいずれかを満たさない場合は
// 黙って何もしない。これはUIイベントの重複発火を想定した仕様で、エラー扱いしない。
func (e *Engine) LoadMore(ctx context.Context) {
	e.mu.Lock()
	if e.st.isLoadingMore || !e.st.hasMorePosts ||
		strings.TrimSpace(e.st.searchQuery) != "" || e.st.showFavoritesOnly {
		e.mu.Unlock()
		return
	}
	// デバウンストークンは状態の前提条件を全て満たした場合のみ消費する
	if !e.limiter.Allow() {
		e.mu.Unlock()
		return
	}
	e.st.isLoadingMore = true
	gen := e.generation
	nextPage := e.st.currentPage + 1
	loadedCount := len(e.st.allLoadedPosts)
	e.mu.Unlock()
	e.publish()

	page, err := e.remote.FetchPage(ctx, nextPage, e.pageSize)
	if err == nil {
		if upErr := e.posts.UpsertPosts(ctx, page); upErr != nil {
			e.logger.Warn("ページのキャッシュ保存に失敗しました",
				slog.Int("page", nextPage),
				slog.String("error", upErr.Error()),
			)
		} else {
			e.recorder.RecordPostsUpserted(len(page))
		}

		e.mu.Lock()
		if gen != e.generation {
			e.mu.Unlock()
			return
		}
		if len(page) == 0 {
			e.st.hasMorePosts = false
		} else {
			e.st.allLoadedPosts = append(e.st.allLoadedPosts, page...)
			e.st.currentPage = nextPage
			e.st.hasMorePosts = len(page) == e.pageSize
			e.recorder.RecordPageLoaded()
		}
		e.st.isLoadingMore = false
		e.mu.Unlock()
		e.publish()
		return
	}

	e.recorder.RecordFetchFailure("remote")
	e.logger.Warn("次ページの取得に失敗しました。キャッシュにフォールバックします",
		slog.Int("page", nextPage),
		slog.String("error", err.Error()),
	)

	cached, cacheErr := e.posts.ListAll(ctx)
	e.recorder.RecordCacheFallback()

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return
	}
	switch {
	case cacheErr != nil:
		e.st.errorMessage = msgNoPostsAvailable
	case len(cached) <= loadedCount:
		// 未表示のキャッシュが残っていない
		e.st.hasMorePosts = false
		e.st.errorMessage = msgNoMorePosts
	default:
		// 残りはid順ではなくリスト位置で計算する（キャッシュの並び順契約に従う）
		remaining := cached[loadedCount:]
		take := min(e.pageSize, len(remaining))
		e.st.allLoadedPosts = append(e.st.allLoadedPosts, remaining[:take]...)
		e.st.currentPage = nextPage
		e.st.hasMorePosts = len(remaining) > e.pageSize
		e.st.errorMessage = msgOfflineMode
	}
	e.st.isLoadingMore = false
	e.mu.Unlock()
	e.publish()
}

// Search は検索クエリを設定する。表示リストの再計算はProjectが行い、
// リモートへの再取得は発生しない。空のクエリは検索モードを解除する。
func (e *Engine) Search(query string) {
	e.mu.Lock()
	e.st.searchQuery = query
	e.mu.Unlock()
	e.publish()
}

// ToggleFavorite は投稿のお気に入り状態を反転する。
// 楽観的更新: ID集合を先に反転して公開し、その後ストアへ永続化する。
// 永続化に失敗した場合は反転を取り消し、失敗メッセージを公開する。
// 未ログインの場合は状態を変更せず検証エラーメッセージのみ設定する。
func (e *Engine) ToggleFavorite(ctx context.Context, post model.Post) {
	identity, err := e.sessions.Current(ctx)
	if err != nil || !identity.LoggedIn {
		e.mu.Lock()
		e.st.errorMessage = model.NewNotLoggedInError().Message
		e.mu.Unlock()
		e.publish()
		return
	}
	userKey := identity.UserKey()

	e.mu.Lock()
	_, wasFavorite := e.st.favoritePostIDs[post.ID]
	if wasFavorite {
		delete(e.st.favoritePostIDs, post.ID)
	} else {
		e.st.favoritePostIDs[post.ID] = struct{}{}
	}
	e.mu.Unlock()
	e.publish()

	var persistErr error
	if wasFavorite {
		persistErr = e.favorites.Delete(ctx, post.ID, userKey)
		if persistErr == nil {
			persistErr = e.posts.SetFavoriteFlag(ctx, post.ID, false)
		}
	} else {
		fav := &model.Favorite{
			PostID:         post.ID,
			UserKey:        userKey,
			Title:          post.Title,
			Body:           post.Body,
			OriginalUserID: post.UserID,
		}
		persistErr = e.favorites.Upsert(ctx, fav)
		if persistErr == nil {
			persistErr = e.posts.SetFavoriteFlag(ctx, post.ID, true)
		}
	}

	if persistErr != nil {
		// 永続化失敗: 楽観的更新を取り消す
		e.mu.Lock()
		if wasFavorite {
			e.st.favoritePostIDs[post.ID] = struct{}{}
		} else {
			delete(e.st.favoritePostIDs, post.ID)
		}
		e.st.errorMessage = persistErr.Error()
		e.mu.Unlock()
		e.publish()
		return
	}

	e.recorder.RecordFavoriteToggle()

	e.mu.Lock()
	favoritesOnly := e.st.showFavoritesOnly
	e.mu.Unlock()
	if favoritesOnly {
		e.reloadFlaggedCache(ctx)
	}
	e.publish()
}

// SetShowFavoritesOnly はお気に入り表示モードを設定する。
// 有効化時はキャッシュのお気に入りフラグ付き投稿を読み込み直す。
// モード有効中はページングと検索が抑止される。
func (e *Engine) SetShowFavoritesOnly(ctx context.Context, flag bool) {
	e.mu.Lock()
	e.st.showFavoritesOnly = flag
	e.mu.Unlock()

	if flag {
		e.reloadFlaggedCache(ctx)
	}
	e.publish()
}

// ToggleShowFavoritesOnly はお気に入り表示モードを反転する。
func (e *Engine) ToggleShowFavoritesOnly(ctx context.Context) {
	e.mu.Lock()
	next := !e.st.showFavoritesOnly
	e.mu.Unlock()
	e.SetShowFavoritesOnly(ctx, next)
}

// ClearError はエラーメッセージを消去する。
func (e *Engine) ClearError() {
	e.mu.Lock()
	e.st.errorMessage = ""
	e.mu.Unlock()
	e.publish()
}

// Snapshot は現在の公開状態を返す。
// 表示リストはProjectにより毎回導出される。
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// snapshotLocked は公開状態を構築する。呼び出し側がロックを保持していること。
func (e *Engine) snapshotLocked() Snapshot {
	visible := Project(ProjectionInput{
		SearchQuery:               e.st.searchQuery,
		ShowFavoritesOnly:         e.st.showFavoritesOnly,
		FavoritePostIDs:           e.st.favoritePostIDs,
		AllLoadedPosts:            e.st.allLoadedPosts,
		FavoriteFlaggedCachePosts: e.st.favoriteFlaggedCache,
	})

	ids := make([]int, 0, len(e.st.favoritePostIDs))
	for id := range e.st.favoritePostIDs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	return Snapshot{
		Posts:             visible,
		IsLoading:         e.st.isLoading,
		IsLoadingMore:     e.st.isLoadingMore,
		ErrorMessage:      e.st.errorMessage,
		SearchQuery:       e.st.searchQuery,
		ShowFavoritesOnly: e.st.showFavoritesOnly,
		FavoritePostIDs:   ids,
		HasMorePosts:      e.st.hasMorePosts,
		CurrentPage:       e.st.currentPage,
		IsSearching:       strings.TrimSpace(e.st.searchQuery) != "",
	}
}

// Subscribe は状態変更の通知チャネルを返す。
// チャネルはバッファ付きで、受信が追いつかない場合は古いスナップショットが
// 破棄され最新だけが残る。
func (e *Engine) Subscribe() <-chan Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan Snapshot, 1)
	e.subs = append(e.subs, ch)
	return ch
}

// publish は現在のスナップショットを全購読者へ通知する。
func (e *Engine) publish() {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.snapshotLocked()
	for _, ch := range e.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// applyIdentity はセッション変更をお気に入りID集合へ反映する。
func (e *Engine) applyIdentity(ctx context.Context, identity session.Identity) {
	if !identity.LoggedIn {
		e.mu.Lock()
		e.st.favoritePostIDs = make(map[int]struct{})
		e.mu.Unlock()
		e.publish()
		return
	}

	favorites, err := e.favorites.ListByUser(ctx, identity.UserKey())
	if err != nil {
		e.logger.Warn("お気に入りの再読み込みに失敗しました",
			slog.String("user_key", identity.UserKey()),
			slog.String("error", err.Error()),
		)
		return
	}

	ids := make(map[int]struct{}, len(favorites))
	for _, fav := range favorites {
		ids[fav.PostID] = struct{}{}
	}

	e.mu.Lock()
	e.st.favoritePostIDs = ids
	e.mu.Unlock()
	e.publish()
}

// reloadFavoriteIDs は現在のセッション識別子でお気に入りID集合を読み込み直す。
// お気に入り依存の操作前に毎回識別子を再取得し、古い識別子を持ち越さない。
func (e *Engine) reloadFavoriteIDs(ctx context.Context) {
	identity, err := e.sessions.Current(ctx)
	if err != nil {
		e.logger.Warn("セッション状態の取得に失敗しました", slog.String("error", err.Error()))
		return
	}
	e.applyIdentity(ctx, identity)
}

// reloadFlaggedCache はお気に入りフラグ付きキャッシュ投稿を読み込み直す。
func (e *Engine) reloadFlaggedCache(ctx context.Context) {
	flagged, err := e.posts.ListFavoriteFlagged(ctx)
	if err != nil {
		e.logger.Warn("お気に入りフラグ付き投稿の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	e.mu.Lock()
	e.st.favoriteFlaggedCache = flagged
	e.mu.Unlock()
}
