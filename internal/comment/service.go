// Package comment は投稿コメントの取得とキャッシュ機能を提供する。
package comment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shokal/postfeed/internal/model"
	"github.com/shokal/postfeed/internal/repository"
)

// Fetcher はコメントのリモート取得機能のインターフェース。
type Fetcher interface {
	FetchComments(ctx context.Context, postID int) ([]model.Comment, error)
}

// Service はコメントに関するビジネスロジックを提供する。
// リモート取得を優先し、失敗時はキャッシュにフォールバックする。
type Service struct {
	fetcher     Fetcher
	commentRepo repository.CommentRepository
	logger      *slog.Logger
}

// NewService はServiceを生成する。
func NewService(fetcher Fetcher, commentRepo repository.CommentRepository, logger *slog.Logger) *Service {
	return &Service{
		fetcher:     fetcher,
		commentRepo: commentRepo,
		logger:      logger,
	}
}

// LoadForPost は指定投稿のコメント一覧を返す。
// リモート取得に成功した場合はキャッシュを更新してから返す。
// リモート取得に失敗した場合はキャッシュ済みコメントを返し、
// キャッシュも空の場合のみエラーを返す。
func (s *Service) LoadForPost(ctx context.Context, postID int) ([]model.Comment, error) {
	comments, err := s.fetcher.FetchComments(ctx, postID)
	if err == nil {
		if err := s.commentRepo.UpsertComments(ctx, comments); err != nil {
			// キャッシュ更新の失敗は取得結果の返却を妨げない
			s.logger.Warn("コメントキャッシュの更新に失敗しました",
				slog.Int("post_id", postID),
				slog.String("error", err.Error()),
			)
		}
		return comments, nil
	}

	s.logger.Warn("コメントのリモート取得に失敗しました。キャッシュにフォールバックします",
		slog.Int("post_id", postID),
		slog.String("error", err.Error()),
	)

	cached, cacheErr := s.commentRepo.ListByPost(ctx, postID)
	if cacheErr != nil {
		return nil, fmt.Errorf("コメントキャッシュの取得に失敗しました: %w", cacheErr)
	}
	if len(cached) == 0 {
		return nil, model.NewCommentsUnavailableError(postID)
	}

	return cached, nil
}

// CountForPost は指定投稿のキャッシュ済みコメント数を返す。
func (s *Service) CountForPost(ctx context.Context, postID int) (int, error) {
	return s.commentRepo.CountByPost(ctx, postID)
}
