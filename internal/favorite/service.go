// Package favorite はお気に入りの登録・解除・一覧機能を提供する。
package favorite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shokal/postfeed/internal/model"
	"github.com/shokal/postfeed/internal/repository"
)

// Service はお気に入りに関するビジネスロジックを提供する。
// お気に入りはユーザー識別子ごとに分離され、登録時点の投稿内容を
// スナップショットとして保持する。投稿キャッシュ側のフラグも同時に更新される。
type Service struct {
	favoriteRepo repository.FavoriteRepository
	postRepo     repository.PostRepository
}

// NewService はServiceを生成する。
func NewService(favoriteRepo repository.FavoriteRepository, postRepo repository.PostRepository) *Service {
	return &Service{
		favoriteRepo: favoriteRepo,
		postRepo:     postRepo,
	}
}

// ListForUser は指定ユーザーのお気に入り一覧を返す。
func (s *Service) ListForUser(ctx context.Context, userKey string) ([]model.Favorite, error) {
	if userKey == "" {
		return nil, model.NewNotLoggedInError()
	}
	return s.favoriteRepo.ListByUser(ctx, userKey)
}

// Add は投稿をお気に入りに登録する。
// タイトルと本文は登録時点の内容がスナップショットとして保存され、
// 後続の投稿再取得では更新されない。
func (s *Service) Add(ctx context.Context, userKey string, post model.Post) error {
	if userKey == "" {
		return model.NewNotLoggedInError()
	}

	fav := &model.Favorite{
		PostID:         post.ID,
		UserKey:        userKey,
		Title:          post.Title,
		Body:           post.Body,
		OriginalUserID: post.UserID,
	}
	if err := s.favoriteRepo.Upsert(ctx, fav); err != nil {
		return fmt.Errorf("お気に入りの登録に失敗しました: %w", err)
	}

	if err := s.postRepo.SetFavoriteFlag(ctx, post.ID, true); err != nil {
		return fmt.Errorf("投稿キャッシュのフラグ更新に失敗しました: %w", err)
	}

	slog.Debug("お気に入りを登録しました",
		slog.Int("post_id", post.ID),
		slog.String("user_key", userKey),
	)
	return nil
}

// Remove は投稿をお気に入りから解除する。
func (s *Service) Remove(ctx context.Context, postID int, userKey string) error {
	if userKey == "" {
		return model.NewNotLoggedInError()
	}

	if err := s.favoriteRepo.Delete(ctx, postID, userKey); err != nil {
		return fmt.Errorf("お気に入りの解除に失敗しました: %w", err)
	}

	if err := s.postRepo.SetFavoriteFlag(ctx, postID, false); err != nil {
		return fmt.Errorf("投稿キャッシュのフラグ更新に失敗しました: %w", err)
	}

	slog.Debug("お気に入りを解除しました",
		slog.Int("post_id", postID),
		slog.String("user_key", userKey),
	)
	return nil
}

// IsFavorite は投稿がお気に入り登録済みかを返す。
// 未ログインの場合は常にfalse。
func (s *Service) IsFavorite(ctx context.Context, postID int, userKey string) (bool, error) {
	if userKey == "" {
		return false, nil
	}

	fav, err := s.favoriteRepo.Find(ctx, postID, userKey)
	if err != nil {
		return false, err
	}
	return fav != nil, nil
}

// ClearForUser は指定ユーザーの全お気に入りを解除する。
// 投稿キャッシュ側のフラグも合わせて消去される。
func (s *Service) ClearForUser(ctx context.Context, userKey string) error {
	if userKey == "" {
		return model.NewNotLoggedInError()
	}

	favorites, err := s.favoriteRepo.ListByUser(ctx, userKey)
	if err != nil {
		return fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}

	if err := s.favoriteRepo.DeleteAllForUser(ctx, userKey); err != nil {
		return fmt.Errorf("お気に入りの全解除に失敗しました: %w", err)
	}

	for _, fav := range favorites {
		if err := s.postRepo.SetFavoriteFlag(ctx, fav.PostID, false); err != nil {
			return fmt.Errorf("投稿キャッシュのフラグ更新に失敗しました: %w", err)
		}
	}

	slog.Info("お気に入りを全解除しました",
		slog.String("user_key", userKey),
		slog.Int("count", len(favorites)),
	)
	return nil
}
