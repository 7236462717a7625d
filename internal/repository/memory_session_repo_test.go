package repository

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/gamehub/internal/model"
)

func newTestMemoryRepo(now time.Time) *MemorySessionRepo {
	r := NewMemorySessionRepo()
	r.now = func() time.Time { return now }
	return r
}

func TestMemorySessionRepo_CreateAndFind(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := newTestMemoryRepo(now)
	ctx := context.Background()

	err := r.Create(ctx, &model.SessionRecord{ID: "s1", ExpiresAt: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("Create: expected no error, got %v", err)
	}

	got, err := r.FindByID(ctx, "s1")
	if err != nil {
		t.Fatalf("FindByID: expected no error, got %v", err)
	}
	if got == nil || got.ID != "s1" {
		t.Fatalf("FindByID = %+v, want session s1", got)
	}
	if got.SignedIn() {
		t.Error("new session should not be signed in")
	}

	missing, err := r.FindByID(ctx, "unknown")
	if err != nil || missing != nil {
		t.Errorf("FindByID(unknown) = %+v, %v; want nil, nil", missing, err)
	}
}

func TestMemorySessionRepo_FindByID_ExpiredSessionReturnsNil(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := newTestMemoryRepo(now)
	ctx := context.Background()

	r.Create(ctx, &model.SessionRecord{ID: "old", ExpiresAt: now.Add(-time.Second)})

	got, err := r.FindByID(ctx, "old")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != nil {
		t.Errorf("expired session should not be returned, got %+v", got)
	}
}

func TestMemorySessionRepo_SaveAndClearCredential(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := newTestMemoryRepo(now)
	ctx := context.Background()

	r.Create(ctx, &model.SessionRecord{ID: "s1", ExpiresAt: now.Add(time.Hour), CreatedAt: now})

	err := r.SaveCredential(ctx, &model.SessionRecord{
		ID:             "s1",
		UID:            "uid-1",
		IDToken:        "id-token",
		RefreshToken:   "refresh-token",
		TokenExpiresAt: now.Add(time.Hour),
		ExpiresAt:      now.Add(48 * time.Hour),
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("SaveCredential: expected no error, got %v", err)
	}

	got, _ := r.FindByID(ctx, "s1")
	if !got.SignedIn() || got.UID != "uid-1" {
		t.Fatalf("session after save = %+v", got)
	}
	if !got.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, saving a credential must not extend the session", got.ExpiresAt)
	}

	if err := r.ClearCredential(ctx, "s1"); err != nil {
		t.Fatalf("ClearCredential: expected no error, got %v", err)
	}
	got, _ = r.FindByID(ctx, "s1")
	if got == nil {
		t.Fatal("session should remain after clearing the credential")
	}
	if got.SignedIn() || got.IDToken != "" {
		t.Errorf("credential should be cleared, got %+v", got)
	}
}

func TestMemorySessionRepo_SaveCredential_CreatesMissingSession(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := newTestMemoryRepo(now)
	ctx := context.Background()

	err := r.SaveCredential(ctx, &model.SessionRecord{
		ID: "s2", UID: "uid-2", RefreshToken: "rt", ExpiresAt: now.Add(time.Hour), UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got, _ := r.FindByID(ctx, "s2")
	if got == nil || got.UID != "uid-2" || !got.CreatedAt.Equal(now) {
		t.Errorf("session = %+v", got)
	}
}

func TestMemorySessionRepo_DeleteExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := newTestMemoryRepo(now)
	ctx := context.Background()

	r.Create(ctx, &model.SessionRecord{ID: "live", ExpiresAt: now.Add(time.Hour)})
	r.Create(ctx, &model.SessionRecord{ID: "dead-1", ExpiresAt: now.Add(-time.Hour)})
	r.Create(ctx, &model.SessionRecord{ID: "dead-2", ExpiresAt: now.Add(-time.Minute)})

	deleted, err := r.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	// 冪等性確認
	deleted, err = r.DeleteExpired(ctx)
	if err != nil || deleted != 0 {
		t.Errorf("second DeleteExpired = %d, %v; want 0, nil", deleted, err)
	}
	if got, _ := r.FindByID(ctx, "live"); got == nil {
		t.Error("live session should remain")
	}
}

func TestMemorySessionRepo_DeleteByID(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := newTestMemoryRepo(now)
	ctx := context.Background()

	r.Create(ctx, &model.SessionRecord{ID: "s1", ExpiresAt: now.Add(time.Hour)})
	if err := r.DeleteByID(ctx, "s1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got, _ := r.FindByID(ctx, "s1"); got != nil {
		t.Error("session should be deleted")
	}
}
