package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/promptree/promptree/internal/tree"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustInsert(t *testing.T, s *Store, p tree.InsertParams) int64 {
	t.Helper()
	id, err := s.Insert(p)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return id
}

// ─── Lifecycle ───────────────────────────────────────────────────────────────

func TestNew_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	s, err := New(Config{DataDir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = s.Close() }()

	if _, err := os.Stat(filepath.Join(dir, "promptree.db")); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestNew_Reopen(t *testing.T) {
	dir := t.TempDir()

	s, err := New(Config{DataDir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id := mustInsert(t, s, tree.InsertParams{Subject: "Survivor", Model: "m", Prompt: "p"})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = New(Config{DataDir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s.Close() }()

	n, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if n.Subject != "Survivor" {
		t.Errorf("subject = %q, want %q", n.Subject, "Survivor")
	}
}

func TestNew_OpenFailure(t *testing.T) {
	original := openDB
	t.Cleanup(func() { openDB = original })
	openDB = func(driver, dsn string) (*sql.DB, error) {
		return nil, errors.New("boom")
	}

	_, err := New(Config{DataDir: t.TempDir()})
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StoreError", err)
	}
}

// ─── Nodes ───────────────────────────────────────────────────────────────────

func TestInsertGet_Roundtrip(t *testing.T) {
	s := newTestStore(t)

	parent := mustInsert(t, s, tree.InsertParams{Subject: "Parent", Model: "m", Prompt: "p"})
	id := mustInsert(t, s, tree.InsertParams{
		Subject:    "Child",
		Model:      "llama3",
		Prompt:     "what is a tree?",
		Response:   "a connected acyclic graph",
		ParentID:   &parent,
		PromptAt:   "2026-01-02 10:00:00",
		ResponseAt: "2026-01-02 10:00:05",
	})

	n, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n.ID != id || n.Subject != "Child" || n.Model != "llama3" {
		t.Errorf("unexpected node: %+v", n)
	}
	if n.Prompt != "what is a tree?" || n.Response != "a connected acyclic graph" {
		t.Errorf("prompt/response mismatch: %+v", n)
	}
	if n.ParentID == nil || *n.ParentID != parent {
		t.Errorf("parent = %v, want %d", n.ParentID, parent)
	}
	if n.PromptAt != "2026-01-02 10:00:00" {
		t.Errorf("promptAt = %q", n.PromptAt)
	}
	if n.ResponseAt == nil || *n.ResponseAt != "2026-01-02 10:00:05" {
		t.Errorf("responseAt = %v", n.ResponseAt)
	}
}

func TestInsert_DefaultsPromptAt(t *testing.T) {
	s := newTestStore(t)

	id := mustInsert(t, s, tree.InsertParams{Subject: "S", Model: "m", Prompt: "p"})
	n, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n.PromptAt == "" {
		t.Error("promptAt should default to the current time")
	}
	if n.Response != "" || n.ResponseAt != nil {
		t.Errorf("pending node should have empty response, got %+v", n)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(42)
	var nf *tree.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want *NotFoundError", err)
	}
	if nf.ID != 42 {
		t.Errorf("NotFoundError.ID = %d, want 42", nf.ID)
	}
}

func TestIDsNeverReused(t *testing.T) {
	s := newTestStore(t)

	first := mustInsert(t, s, tree.InsertParams{Subject: "First", Model: "m", Prompt: "p"})
	if err := s.DeleteMany([]int64{first}); err != nil {
		t.Fatalf("DeleteMany: %v", err)
	}

	second := mustInsert(t, s, tree.InsertParams{Subject: "Second", Model: "m", Prompt: "p"})
	if second <= first {
		t.Errorf("id %d reused after deleting %d", second, first)
	}
}

func TestSetSubject(t *testing.T) {
	s := newTestStore(t)
	id := mustInsert(t, s, tree.InsertParams{Subject: "Old", Model: "m", Prompt: "p"})

	if err := s.SetSubject(id, "New"); err != nil {
		t.Fatalf("SetSubject: %v", err)
	}
	n, err := s.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if n.Subject != "New" {
		t.Errorf("subject = %q, want %q", n.Subject, "New")
	}

	var nf *tree.NotFoundError
	if err := s.SetSubject(999, "X"); !errors.As(err, &nf) {
		t.Errorf("SetSubject on missing id = %v, want *NotFoundError", err)
	}
}

func TestSetResponse(t *testing.T) {
	s := newTestStore(t)
	id := mustInsert(t, s, tree.InsertParams{Subject: "S", Model: "m", Prompt: "p"})

	if err := s.SetResponse(id, "answer", "2026-01-02 11:00:00"); err != nil {
		t.Fatalf("SetResponse: %v", err)
	}
	n, err := s.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if n.Response != "answer" {
		t.Errorf("response = %q", n.Response)
	}
	if n.ResponseAt == nil || *n.ResponseAt != "2026-01-02 11:00:00" {
		t.Errorf("responseAt = %v", n.ResponseAt)
	}
}

func TestChildren_Ordering(t *testing.T) {
	s := newTestStore(t)
	root := mustInsert(t, s, tree.InsertParams{Subject: "Root", Model: "m", Prompt: "p"})

	later := mustInsert(t, s, tree.InsertParams{
		Subject: "Later", Model: "m", Prompt: "p",
		ParentID: &root, PromptAt: "2026-01-02 12:00:00",
	})
	earlier := mustInsert(t, s, tree.InsertParams{
		Subject: "Earlier", Model: "m", Prompt: "p",
		ParentID: &root, PromptAt: "2026-01-02 09:00:00",
	})

	children, err := s.Children(root)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("len(children) = %d, want 2", len(children))
	}
	if children[0].ID != earlier || children[1].ID != later {
		t.Errorf("children not ordered by prompt time: [%d %d]", children[0].ID, children[1].ID)
	}
}

func TestRoots_AlphabeticalAndExcludesChildren(t *testing.T) {
	s := newTestStore(t)

	zebra := mustInsert(t, s, tree.InsertParams{Subject: "Zebra", Model: "m", Prompt: "p"})
	apple := mustInsert(t, s, tree.InsertParams{Subject: "Apple", Model: "m", Prompt: "p"})
	mustInsert(t, s, tree.InsertParams{Subject: "Child", Model: "m", Prompt: "p", ParentID: &zebra})

	roots, err := s.Roots()
	if err != nil {
		t.Fatalf("Roots: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("len(roots) = %d, want 2", len(roots))
	}
	if roots[0].ID != apple || roots[1].ID != zebra {
		t.Errorf("roots not alphabetical: [%q %q]", roots[0].Subject, roots[1].Subject)
	}
}

func TestAll_IDOrderWithLinks(t *testing.T) {
	s := newTestStore(t)

	a := mustInsert(t, s, tree.InsertParams{Subject: "A", Model: "m", Prompt: "p"})
	b := mustInsert(t, s, tree.InsertParams{Subject: "B", Model: "m", Prompt: "p"})
	if err := s.AddLink(a, b); err != nil {
		t.Fatalf("AddLink: %v", err)
	}

	all, err := s.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 || all[0].ID != a || all[1].ID != b {
		t.Fatalf("All not in id order: %+v", all)
	}
	if !all[0].Linked(b) || !all[1].Linked(a) {
		t.Error("All should load link ids for every node")
	}
}

func TestDeleteMany_ChildrenFirst(t *testing.T) {
	s := newTestStore(t)

	root := mustInsert(t, s, tree.InsertParams{Subject: "Root", Model: "m", Prompt: "p"})
	child := mustInsert(t, s, tree.InsertParams{Subject: "Child", Model: "m", Prompt: "p", ParentID: &root})
	grand := mustInsert(t, s, tree.InsertParams{Subject: "Grand", Model: "m", Prompt: "p", ParentID: &child})

	// BFS order, parents before children; DeleteMany must reverse it so the
	// parent foreign key never dangles mid-transaction.
	if err := s.DeleteMany([]int64{root, child, grand}); err != nil {
		t.Fatalf("DeleteMany: %v", err)
	}
	for _, id := range []int64{root, child, grand} {
		if _, err := s.Get(id); err == nil {
			t.Errorf("node %d should be gone", id)
		}
	}
}

func TestDeleteMany_Empty(t *testing.T) {
	s := newTestStore(t)
	if err := s.DeleteMany(nil); err != nil {
		t.Errorf("DeleteMany(nil) = %v, want nil", err)
	}
}

// ─── Links ───────────────────────────────────────────────────────────────────

func TestLinkIDs_BothDirections(t *testing.T) {
	s := newTestStore(t)

	a := mustInsert(t, s, tree.InsertParams{Subject: "A", Model: "m", Prompt: "p"})
	b := mustInsert(t, s, tree.InsertParams{Subject: "B", Model: "m", Prompt: "p"})
	c := mustInsert(t, s, tree.InsertParams{Subject: "C", Model: "m", Prompt: "p"})

	// One row stored as a→b, one as c→a: both must surface for a.
	if err := s.AddLink(a, b); err != nil {
		t.Fatal(err)
	}
	if err := s.AddLink(c, a); err != nil {
		t.Fatal(err)
	}

	ids, err := s.LinkIDs(a)
	if err != nil {
		t.Fatalf("LinkIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != b || ids[1] != c {
		t.Errorf("LinkIDs(a) = %v, want [%d %d]", ids, b, c)
	}
}

func TestRemoveLink_EitherDirection(t *testing.T) {
	s := newTestStore(t)

	a := mustInsert(t, s, tree.InsertParams{Subject: "A", Model: "m", Prompt: "p"})
	b := mustInsert(t, s, tree.InsertParams{Subject: "B", Model: "m", Prompt: "p"})
	if err := s.AddLink(a, b); err != nil {
		t.Fatal(err)
	}

	// Row is stored as a→b; removing b-a must still find it.
	if err := s.RemoveLink(b, a); err != nil {
		t.Fatalf("RemoveLink: %v", err)
	}
	ids, err := s.LinkIDs(a)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("LinkIDs(a) = %v, want empty", ids)
	}
}

func TestClearLinks_BothDirections(t *testing.T) {
	s := newTestStore(t)

	a := mustInsert(t, s, tree.InsertParams{Subject: "A", Model: "m", Prompt: "p"})
	b := mustInsert(t, s, tree.InsertParams{Subject: "B", Model: "m", Prompt: "p"})
	c := mustInsert(t, s, tree.InsertParams{Subject: "C", Model: "m", Prompt: "p"})
	if err := s.AddLink(a, b); err != nil {
		t.Fatal(err)
	}
	if err := s.AddLink(c, a); err != nil {
		t.Fatal(err)
	}

	if err := s.ClearLinks(a); err != nil {
		t.Fatalf("ClearLinks: %v", err)
	}
	ids, err := s.LinkIDs(a)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("LinkIDs(a) = %v, want empty", ids)
	}
}
