package repository

import (
	"context"
	"testing"
)

func TestSQLitePreferenceRepo_SetAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLitePreferenceRepo(db)
	ctx := context.Background()

	if err := repo.Set(ctx, "user_email", "alice@example.com"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, ok, err := repo.Get(ctx, "user_email")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("Get returned ok=false, want true")
	}
	if value != "alice@example.com" {
		t.Errorf("value = %q, want %q", value, "alice@example.com")
	}
}

func TestSQLitePreferenceRepo_GetMissingKey(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLitePreferenceRepo(db)

	value, ok, err := repo.Get(context.Background(), "no_such_key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Errorf("Get returned ok=true with value %q, want false", value)
	}
}

func TestSQLitePreferenceRepo_SetOverwrites(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLitePreferenceRepo(db)
	ctx := context.Background()

	if err := repo.Set(ctx, "is_logged_in", "false"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := repo.Set(ctx, "is_logged_in", "true"); err != nil {
		t.Fatalf("second Set failed: %v", err)
	}

	value, ok, err := repo.Get(ctx, "is_logged_in")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || value != "true" {
		t.Errorf("Get = (%q, %v), want (%q, true)", value, ok, "true")
	}
}

func TestSQLitePreferenceRepo_Delete(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLitePreferenceRepo(db)
	ctx := context.Background()

	if err := repo.Set(ctx, "user_name", "alice"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := repo.Delete(ctx, "user_name"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, ok, err := repo.Get(ctx, "user_name")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("Get returned ok=true after Delete, want false")
	}

	// 存在しないキーの削除もエラーにしない
	if err := repo.Delete(ctx, "user_name"); err != nil {
		t.Errorf("Delete of missing key returned error: %v", err)
	}
}
