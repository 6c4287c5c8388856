// Package auth はユーザー登録、ログイン、セッション管理を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shokal/postfeed/internal/model"
	"github.com/shokal/postfeed/internal/repository"
	"github.com/shokal/postfeed/internal/session"
)

// emailPattern はメールアドレスの形式検証に使用する。
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
//
// 注意: パスワードは平文で保存・比較される。移行元の挙動を維持するためで、
// 将来のマイグレーションでハッシュ化に置き換える。
type Service struct {
	userRepo     repository.UserRepository
	sessionRepo  repository.SessionRepository
	sessionStore *session.Store
	config       ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	sessionStore *session.Store,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:     userRepo,
		sessionRepo:  sessionRepo,
		sessionStore: sessionStore,
		config:       config,
	}
}

// Register は新規ユーザーを登録する。
// メールアドレスの形式、パスワードの要件、確認パスワードの一致、
// メールアドレスの重複を順に検証する。
func (s *Service) Register(ctx context.Context, email, password, confirmPassword string) (*model.User, error) {
	email = strings.TrimSpace(email)

	// 1. メールアドレスの形式検証
	if !emailPattern.MatchString(email) {
		return nil, model.NewInvalidEmailError()
	}

	// 2. パスワード要件の検証
	if reasons := ValidatePassword(password); len(reasons) > 0 {
		return nil, model.NewWeakPasswordError(reasons)
	}

	// 3. 確認パスワードの一致検証
	if password != confirmPassword {
		return nil, model.NewPasswordMismatchError()
	}

	// 4. 重複チェック
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの重複チェックに失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateUserError(email)
	}

	// 5. ユーザー作成
	user := &model.User{
		Email:     email,
		Password:  password,
		CreatedAt: time.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("新規ユーザーを登録しました", slog.String("email", email))
	return user, nil
}

// Login はメールアドレスとパスワードで認証し、セッションを発行する。
// 認証成功時はログイン状態ストアも更新される。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, error) {
	email = strings.TrimSpace(email)

	user, err := s.userRepo.FindByEmailAndPassword(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("認証照会に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	sess := &model.Session{
		ID:        uuid.New().String(),
		UserEmail: user.Email,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	// 表示名はメールアドレスのローカル部を使用する
	name := user.Email
	if at := strings.Index(name, "@"); at > 0 {
		name = name[:at]
	}
	if err := s.sessionStore.SetLoggedIn(ctx, user.Email, name); err != nil {
		return nil, fmt.Errorf("ログイン状態の保存に失敗しました: %w", err)
	}

	slog.Info("ユーザーがログインしました", slog.String("email", user.Email))
	return sess, nil
}

// Logout はセッションを破棄し、ログイン状態を消去する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID != "" {
		if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.sessionStore.Logout(ctx); err != nil {
		return fmt.Errorf("ログイン状態の消去に失敗しました: %w", err)
	}

	slog.Info("ユーザーがログアウトしました")
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.NewNotLoggedInError()
	}

	sess, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの検索に失敗しました: %w", err)
	}
	if sess == nil {
		return nil, model.NewNotLoggedInError()
	}

	user, err := s.userRepo.FindByEmail(ctx, sess.UserEmail)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewNotLoggedInError()
	}

	return user, nil
}
