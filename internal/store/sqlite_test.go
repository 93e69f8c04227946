package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/memkeep/memkeep/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "memories.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newMemory(s *SQLiteStore, content string) *model.Memory {
	now := time.Now().UTC()
	return &model.Memory{
		ID:        s.NewID(),
		Content:   content,
		Category:  model.CategoryFactual,
		Scope:     model.ScopeProject,
		Source:    model.SourceUserExplicit,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := newMemory(s, "use tabs not spaces")
	mem.ProjectPath = "/work/app"
	mem.Metadata = map[string]string{"origin": "test"}
	if err := s.Put(ctx, mem); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, mem.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != "use tabs not spaces" {
		t.Errorf("expected content round-trip, got %q", got.Content)
	}
	if got.ProjectPath != "/work/app" {
		t.Errorf("expected project path, got %q", got.ProjectPath)
	}
	if got.Metadata["origin"] != "test" {
		t.Errorf("expected metadata round-trip, got %v", got.Metadata)
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "mem_nope")
	if _, ok := err.(*model.NotFoundError); !ok {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := newMemory(s, "project decision: prefer sqlite")
	a.Category = model.CategoryDecision
	a.Pinned = true
	b := newMemory(s, "global fact")
	b.Scope = model.ScopeGlobal
	c := newMemory(s, "shared with backend team")
	c.Scope = model.ScopeGroup
	c.Groups = []string{"backend", "infra"}
	for _, m := range []*model.Memory{a, b, c} {
		if err := s.Put(ctx, m); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	got, err := s.Query(ctx, Filter{Scope: model.ScopeGroup, Groups: []string{"backend"}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].ID != c.ID {
		t.Fatalf("expected the group memory, got %v", got)
	}

	got, _ = s.Query(ctx, Filter{Scope: model.ScopeGroup, Groups: []string{"frontend"}})
	if len(got) != 0 {
		t.Fatalf("expected no match for non-owner group, got %d", len(got))
	}

	got, _ = s.Query(ctx, Filter{PinnedOnly: true})
	if len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("expected only the pinned memory, got %d", len(got))
	}

	got, _ = s.Query(ctx, Filter{Category: model.CategoryDecision})
	if len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("expected the decision memory, got %d", len(got))
	}

	got, _ = s.Query(ctx, Filter{ContentLike: "backend team"})
	if len(got) != 1 || got[0].ID != c.ID {
		t.Fatalf("expected substring match, got %d", len(got))
	}
}

func TestQueryExcludesExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	fresh := newMemory(s, "still valid")
	stale := newMemory(s, "long gone")
	past := time.Now().UTC().Add(-time.Hour)
	stale.ExpiresAt = &past
	s.Put(ctx, fresh)
	s.Put(ctx, stale)

	got, err := s.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].ID != fresh.ID {
		t.Fatalf("expected only the fresh memory, got %d", len(got))
	}

	got, _ = s.Query(ctx, Filter{IncludeExpired: true})
	if len(got) != 2 {
		t.Fatalf("expected both with IncludeExpired, got %d", len(got))
	}
}

func TestUpdateSetScope(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := newMemory(s, "will become shared")
	mem.Scope = model.ScopeGlobal
	s.Put(ctx, mem)

	scope := model.ScopeGroup
	groups := []string{"backend"}
	updated, err := s.Update(ctx, mem.ID, UpdateParams{SetScope: &scope, Groups: &groups})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Scope != model.ScopeGroup {
		t.Errorf("expected group scope, got %s", updated.Scope)
	}
	if len(updated.Groups) != 1 || updated.Groups[0] != "backend" {
		t.Errorf("expected owner groups rewritten, got %v", updated.Groups)
	}
	if !updated.UpdatedAt.After(mem.UpdatedAt) && !updated.UpdatedAt.Equal(mem.UpdatedAt) {
		t.Errorf("expected updated_at bumped")
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := newMemory(s, "temporary")
	s.Put(ctx, mem)

	deleted, err := s.Delete(ctx, mem.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Error("expected a row deleted")
	}

	deleted, _ = s.Delete(ctx, mem.ID)
	if deleted {
		t.Error("expected second delete to be a no-op")
	}
}

func TestRecordAccess(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := newMemory(s, "popular")
	s.Put(ctx, mem)

	s.RecordAccess(ctx, mem.ID)
	s.RecordAccess(ctx, mem.ID)

	got, _ := s.Get(ctx, mem.ID)
	if got.AccessCount != 2 {
		t.Errorf("expected access_count 2, got %d", got.AccessCount)
	}
	if got.LastAccessedAt == nil {
		t.Error("expected last_accessed_at set")
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Put(ctx, newMemory(s, "one"))
	s.Put(ctx, newMemory(s, "two"))

	n, err := s.Reset(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}
	count, _ := s.Count(ctx)
	if count != 0 {
		t.Errorf("expected empty store, got %d", count)
	}
}
