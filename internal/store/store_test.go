package store

import (
	"path/filepath"
	"testing"

	"github.com/jit-dev/jit/internal/errkind"
	"github.com/jit-dev/jit/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	return New(types.WorktreePaths{
		WorktreeRoot: root,
		LocalJIT:     filepath.Join(root, ".jit"),
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	issue := &types.Issue{ID: "abc123", Title: "hello", Priority: types.PriorityNormal, State: types.StateBacklog}
	if err := s.Save(issue); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := s.LoadFull("abc123")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Title != issue.Title || loaded.ID != issue.ID {
		t.Fatalf("round-trip mismatch: %+v", loaded)
	}
}

func TestResolvePartialIDUnique(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(&types.Issue{ID: "abc123", Title: "a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	id, err := s.Resolve("abc")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != "abc123" {
		t.Fatalf("expected abc123, got %s", id)
	}
}

func TestResolvePartialIDAmbiguous(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(&types.Issue{ID: "abc123", Title: "a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(&types.Issue{ID: "abc456", Title: "b"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	_, err := s.Resolve("abc")
	if !errkind.Is(err, errkind.AmbiguousID) {
		t.Fatalf("expected AmbiguousID, got %v", err)
	}
}

func TestResolveNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Resolve("nope")
	if !errkind.Is(err, errkind.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestListDeduplicatesAndSorts(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(&types.Issue{ID: "b", Title: "b"}); err != nil {
		t.Fatalf("save b: %v", err)
	}
	if err := s.Save(&types.Issue{ID: "a", Title: "a"}); err != nil {
		t.Fatalf("save a: %v", err)
	}
	issues, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(issues) != 2 || issues[0].ID != "a" || issues[1].ID != "b" {
		t.Fatalf("expected sorted [a b], got %+v", issues)
	}
}

func TestDeleteRejectsWhenDependedOn(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(&types.Issue{ID: "a", Title: "a"}); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := s.Save(&types.Issue{ID: "b", Title: "b", Dependencies: []string{"a"}}); err != nil {
		t.Fatalf("save b: %v", err)
	}
	if err := s.Delete("a"); err == nil {
		t.Fatal("expected delete of a depended-upon issue to fail")
	}
}

func TestDeleteSucceedsWhenUnreferenced(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(&types.Issue{ID: "a", Title: "a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Delete("a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Exists("a") {
		t.Fatal("expected a to no longer exist")
	}
}

func TestDeleteMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	if err := s.Delete("missing"); !errkind.Is(err, errkind.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
