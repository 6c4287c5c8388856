// Package session はログイン状態の永続化と通知を提供する。
// 状態はキーバリュー設定テーブルに保存され、プロセス再起動後も維持される。
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/shokal/postfeed/internal/repository"
)

// 設定テーブルに保存されるキー。
const (
	keyIsLoggedIn = "is_logged_in"
	keyUserEmail  = "user_email"
	keyUserName   = "user_name"
)

// Identity は現在のログイン状態を表す。
// LoggedInがfalseの場合、EmailとNameは空文字列。
type Identity struct {
	Email    string
	Name     string
	LoggedIn bool
}

// UserKey はお気に入りの帰属に使用するユーザー識別子を返す。
// 未ログインの場合は空文字列。
func (i Identity) UserKey() string {
	if !i.LoggedIn {
		return ""
	}
	return i.Email
}

// Store はログイン状態の読み書きと変更通知を提供する。
// 変更通知はSubscribeで購読できる。
type Store struct {
	prefs repository.PreferenceRepository

	mu   sync.Mutex
	subs []chan Identity
}

// NewStore はStoreの新しいインスタンスを生成する。
func NewStore(prefs repository.PreferenceRepository) *Store {
	return &Store{prefs: prefs}
}

// Current は現在のログイン状態を返す。
func (s *Store) Current(ctx context.Context) (Identity, error) {
	loggedIn, ok, err := s.prefs.Get(ctx, keyIsLoggedIn)
	if err != nil {
		return Identity{}, fmt.Errorf("ログイン状態の取得に失敗しました: %w", err)
	}
	if !ok || loggedIn != "true" {
		return Identity{}, nil
	}

	email, _, err := s.prefs.Get(ctx, keyUserEmail)
	if err != nil {
		return Identity{}, fmt.Errorf("ユーザー情報の取得に失敗しました: %w", err)
	}
	name, _, err := s.prefs.Get(ctx, keyUserName)
	if err != nil {
		return Identity{}, fmt.Errorf("ユーザー情報の取得に失敗しました: %w", err)
	}

	return Identity{Email: email, Name: name, LoggedIn: true}, nil
}

// SetLoggedIn はログイン状態を保存し、購読者に通知する。
func (s *Store) SetLoggedIn(ctx context.Context, email, name string) error {
	if err := s.prefs.Set(ctx, keyUserEmail, email); err != nil {
		return err
	}
	if err := s.prefs.Set(ctx, keyUserName, name); err != nil {
		return err
	}
	if err := s.prefs.Set(ctx, keyIsLoggedIn, "true"); err != nil {
		return err
	}

	s.notify(Identity{Email: email, Name: name, LoggedIn: true})
	return nil
}

// Logout はログイン状態を消去し、購読者に通知する。
func (s *Store) Logout(ctx context.Context) error {
	if err := s.prefs.Set(ctx, keyIsLoggedIn, "false"); err != nil {
		return err
	}
	if err := s.prefs.Delete(ctx, keyUserEmail); err != nil {
		return err
	}
	if err := s.prefs.Delete(ctx, keyUserName); err != nil {
		return err
	}

	s.notify(Identity{})
	return nil
}

// Subscribe はログイン状態の変更通知チャネルを返す。
// チャネルはバッファ付きで、受信が追いつかない場合は古い通知が破棄される。
func (s *Store) Subscribe() <-chan Identity {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Identity, 1)
	s.subs = append(s.subs, ch)
	return ch
}

// notify は全購読者に状態変更を通知する。
// バッファが埋まっている場合は古い通知を破棄して最新を入れる。
func (s *Store) notify(identity Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- identity:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- identity:
			default:
			}
		}
	}
}
