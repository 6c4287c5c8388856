package feed

import (
	"strings"

	"github.com/shokal/postfeed/internal/model"
)

// ProjectionInput は表示状態の導出に必要な入力。
type ProjectionInput struct {
	SearchQuery               string
	ShowFavoritesOnly         bool
	FavoritePostIDs           map[int]struct{}
	AllLoadedPosts            []model.Post
	FavoriteFlaggedCachePosts []model.Post
}

// Project は内部状態から表示用の投稿リストを導出する純粋関数。
// 優先順位: お気に入り表示モード > 検索モード > 全件表示。
// 常にいずれか1つのモードだけが有効になる。
// 返される投稿のIsFavoriteはお気に入りID集合への所属で上書きされる。
// 導出結果はキャッシュせず、呼び出しごとに再計算する。
func Project(in ProjectionInput) []model.Post {
	var source []model.Post

	switch {
	case in.ShowFavoritesOnly:
		source = in.FavoriteFlaggedCachePosts
	case strings.TrimSpace(in.SearchQuery) != "":
		source = filterByQuery(in.AllLoadedPosts, in.SearchQuery)
	default:
		source = in.AllLoadedPosts
	}

	// 入力を変更しないようコピーしてから注釈を付ける
	visible := make([]model.Post, len(source))
	copy(visible, source)
	for i := range visible {
		_, fav := in.FavoritePostIDs[visible[i].ID]
		visible[i].IsFavorite = fav || visible[i].IsFavorite
	}

	return visible
}

// filterByQuery はタイトルまたは本文に対する大文字小文字を無視した部分一致で絞り込む。
// 検索対象は読み込み済みの投稿のみで、未読み込みページは対象外。
func filterByQuery(posts []model.Post, query string) []model.Post {
	q := strings.ToLower(strings.TrimSpace(query))

	var matched []model.Post
	for _, p := range posts {
		if strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Body), q) {
			matched = append(matched, p)
		}
	}
	return matched
}
