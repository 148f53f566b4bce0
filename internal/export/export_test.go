package export_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/promptree/promptree/internal/export"
	"github.com/promptree/promptree/internal/store"
	"github.com/promptree/promptree/internal/tree"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

func newExportFixture(t *testing.T) (*export.Exporter, *store.Store) {
	t.Helper()
	st, err := store.New(store.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return export.New(st), st
}

func insertNode(t *testing.T, st *store.Store, subject string, parent *int64) int64 {
	t.Helper()
	id, err := st.Insert(tree.InsertParams{
		Subject:  subject,
		Model:    "test-model",
		Prompt:   "prompt for " + subject,
		Response: "response for " + subject,
	})
	if err != nil {
		t.Fatalf("insert %q: %v", subject, err)
	}
	if parent != nil {
		if err := st.SetParent(id, parent); err != nil {
			t.Fatal(err)
		}
	}
	return id
}

// ─── Render ──────────────────────────────────────────────────────────────────

func TestRender_FullMode(t *testing.T) {
	exp, st := newExportFixture(t)
	root := insertNode(t, st, "Root", nil)
	insertNode(t, st, "Child", &root)

	var lines []string
	err := exp.Render(root, export.ModeFull, func(line string) error {
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	joined := strings.Join(lines, "\n")
	for _, want := range []string{"Root", "Child", "Prompt: prompt for Root", "Response: response for Child"} {
		if !strings.Contains(joined, want) {
			t.Errorf("output missing %q:\n%s", want, joined)
		}
	}
	// Child lines are indented one level deeper than root lines.
	if !strings.Contains(joined, "\n  Child") {
		t.Errorf("child subject not indented:\n%s", joined)
	}
}

func TestRender_SummaryMode(t *testing.T) {
	exp, st := newExportFixture(t)
	root := insertNode(t, st, "Root", nil)

	var lines []string
	err := exp.Render(root, export.ModeSummary, func(line string) error {
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("summary emitted %d lines, want 1", len(lines))
	}
	if strings.Contains(lines[0], "Prompt:") {
		t.Errorf("summary mode should omit prompt text: %q", lines[0])
	}
}

func TestRender_EmitErrorAborts(t *testing.T) {
	exp, st := newExportFixture(t)
	root := insertNode(t, st, "Root", nil)
	insertNode(t, st, "Child", &root)

	sentinel := errors.New("stop")
	calls := 0
	err := exp.Render(root, export.ModeSummary, func(string) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("error = %v, want sentinel", err)
	}
	if calls != 1 {
		t.Errorf("emit called %d times after error, want 1", calls)
	}
}

func TestRender_NotFound(t *testing.T) {
	exp, _ := newExportFixture(t)

	err := exp.Render(77, export.ModeFull, func(string) error { return nil })
	var nf *tree.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want *NotFoundError", err)
	}
}

// ─── Markdown ────────────────────────────────────────────────────────────────

func TestWriteMarkdown_HeadingsFollowDepth(t *testing.T) {
	exp, st := newExportFixture(t)
	root := insertNode(t, st, "Root", nil)
	child := insertNode(t, st, "Child", &root)
	insertNode(t, st, "Grandchild", &child)

	var buf bytes.Buffer
	if err := exp.WriteMarkdown(&buf, root); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Root\n",
		"## Child\n",
		"### Grandchild\n",
		"**Prompt:**\nprompt for Root\n",
		"**Response:**\nresponse for Root\n",
		"**Model:** test-model\n",
		"\n---\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
}

func TestWriteMarkdown_HeadingCapsAtH6(t *testing.T) {
	exp, st := newExportFixture(t)

	// Depth 8 chain; markdown headings stop at six #.
	var parent *int64
	var root int64
	for i := 0; i < 8; i++ {
		id := insertNode(t, st, "Level", parent)
		if i == 0 {
			root = id
		}
		parent = &id
	}

	var buf bytes.Buffer
	if err := exp.WriteMarkdown(&buf, root); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}
	if strings.Contains(buf.String(), "#######") {
		t.Error("headings deeper than h6 should be capped")
	}
}

// ─── Tree view ───────────────────────────────────────────────────────────────

func TestWriteTree_Connectors(t *testing.T) {
	exp, st := newExportFixture(t)
	root := insertNode(t, st, "Root", nil)
	insertNode(t, st, "First", &root)
	insertNode(t, st, "Last", &root)

	var buf bytes.Buffer
	if err := exp.WriteTree(&buf, root); err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "└─ Root") {
		t.Errorf("root line missing:\n%s", out)
	}
	if !strings.Contains(out, "├─ First") {
		t.Errorf("non-last child should use ├─:\n%s", out)
	}
	if !strings.Contains(out, "└─ Last") {
		t.Errorf("last child should use └─:\n%s", out)
	}
	if !strings.Contains(out, "(id: ") || !strings.Contains(out, "created on: ") {
		t.Errorf("lines should carry id and creation time:\n%s", out)
	}
}
