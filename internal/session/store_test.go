package session

import (
	"context"
	"testing"
)

// memPrefs はテスト用のインメモリ設定リポジトリ。
type memPrefs struct {
	values map[string]string
}

func newMemPrefs() *memPrefs {
	return &memPrefs{values: make(map[string]string)}
}

func (m *memPrefs) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memPrefs) Set(ctx context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func (m *memPrefs) Delete(ctx context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func TestStore_CurrentDefaultsToLoggedOut(t *testing.T) {
	store := NewStore(newMemPrefs())

	identity, err := store.Current(context.Background())
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if identity.LoggedIn {
		t.Error("LoggedIn = true, want false")
	}
	if identity.UserKey() != "" {
		t.Errorf("UserKey = %q, want empty", identity.UserKey())
	}
}

func TestStore_SetLoggedInPersists(t *testing.T) {
	prefs := newMemPrefs()
	store := NewStore(prefs)
	ctx := context.Background()

	if err := store.SetLoggedIn(ctx, "alice@example.com", "alice"); err != nil {
		t.Fatalf("SetLoggedIn failed: %v", err)
	}

	identity, err := store.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if !identity.LoggedIn {
		t.Fatal("LoggedIn = false, want true")
	}
	if identity.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", identity.Email, "alice@example.com")
	}
	if identity.UserKey() != "alice@example.com" {
		t.Errorf("UserKey = %q, want %q", identity.UserKey(), "alice@example.com")
	}

	// 別のStoreインスタンスでも同じ状態が見える（永続化の確認）
	other := NewStore(prefs)
	identity, err = other.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if !identity.LoggedIn {
		t.Error("LoggedIn on fresh store = false, want true")
	}
}

func TestStore_Logout(t *testing.T) {
	store := NewStore(newMemPrefs())
	ctx := context.Background()

	if err := store.SetLoggedIn(ctx, "alice@example.com", "alice"); err != nil {
		t.Fatalf("SetLoggedIn failed: %v", err)
	}
	if err := store.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	identity, err := store.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if identity.LoggedIn {
		t.Error("LoggedIn = true after Logout, want false")
	}
	if identity.Email != "" {
		t.Errorf("email = %q after Logout, want empty", identity.Email)
	}
}

func TestStore_SubscribeReceivesChanges(t *testing.T) {
	store := NewStore(newMemPrefs())
	ctx := context.Background()

	ch := store.Subscribe()

	if err := store.SetLoggedIn(ctx, "alice@example.com", "alice"); err != nil {
		t.Fatalf("SetLoggedIn failed: %v", err)
	}

	identity := <-ch
	if !identity.LoggedIn || identity.Email != "alice@example.com" {
		t.Errorf("received %+v, want logged-in alice", identity)
	}

	if err := store.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	identity = <-ch
	if identity.LoggedIn {
		t.Errorf("received %+v after Logout, want logged-out", identity)
	}
}

func TestStore_SubscribeDropsStaleNotifications(t *testing.T) {
	store := NewStore(newMemPrefs())
	ctx := context.Background()

	ch := store.Subscribe()

	// 受信しないまま2回変更すると、最新の通知だけが残る
	if err := store.SetLoggedIn(ctx, "alice@example.com", "alice"); err != nil {
		t.Fatalf("SetLoggedIn failed: %v", err)
	}
	if err := store.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	identity := <-ch
	if identity.LoggedIn {
		t.Errorf("received %+v, want latest logged-out state", identity)
	}
}
