package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shokal/postfeed/internal/model"
)

func TestSQLiteSessionRepo_CreateAndFindByID(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLiteSessionRepo(db)
	ctx := context.Background()

	session := &model.Session{
		ID:        "session-1",
		UserEmail: "alice@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.FindByID(ctx, "session-1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("FindByID returned nil, want session")
	}
	if got.UserEmail != "alice@example.com" {
		t.Errorf("user email = %q, want %q", got.UserEmail, "alice@example.com")
	}
}

func TestSQLiteSessionRepo_FindByIDExpired(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLiteSessionRepo(db)
	ctx := context.Background()

	session := &model.Session{
		ID:        "session-expired",
		UserEmail: "alice@example.com",
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-time.Hour),
	}
	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.FindByID(ctx, "session-expired")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got != nil {
		t.Errorf("FindByID returned expired session %+v, want nil", got)
	}
}

func TestSQLiteSessionRepo_DeleteByID(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLiteSessionRepo(db)
	ctx := context.Background()

	session := &model.Session{
		ID:        "session-1",
		UserEmail: "alice@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.DeleteByID(ctx, "session-1"); err != nil {
		t.Fatalf("DeleteByID failed: %v", err)
	}

	got, err := repo.FindByID(ctx, "session-1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got != nil {
		t.Errorf("FindByID after delete returned %+v, want nil", got)
	}
}

func TestSQLiteSessionRepo_DeleteByUserEmail(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLiteSessionRepo(db)
	ctx := context.Background()

	for _, id := range []string{"s1", "s2"} {
		session := &model.Session{
			ID:        id,
			UserEmail: "alice@example.com",
			ExpiresAt: time.Now().Add(time.Hour),
			CreatedAt: time.Now(),
		}
		if err := repo.Create(ctx, session); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	if err := repo.DeleteByUserEmail(ctx, "alice@example.com"); err != nil {
		t.Fatalf("DeleteByUserEmail failed: %v", err)
	}

	for _, id := range []string{"s1", "s2"} {
		got, err := repo.FindByID(ctx, id)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if got != nil {
			t.Errorf("session %q still present after DeleteByUserEmail", id)
		}
	}
}
