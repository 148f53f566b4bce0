// Package export renders conversation subtrees as line sequences: a compact
// ASCII tree view for the console and a markdown document for export.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/promptree/promptree/internal/tree"
)

// Mode selects how much of each node Render emits.
type Mode int

const (
	// ModeFull emits each node's subject, prompt and response.
	ModeFull Mode = iota
	// ModeSummary emits only subject lines, for compact overviews.
	ModeSummary
)

// Exporter walks subtrees depth-first and renders them.
type Exporter struct {
	store tree.Store
}

// New creates an Exporter over the given store.
func New(store tree.Store) *Exporter {
	return &Exporter{store: store}
}

// Render walks the subtree rooted at id in depth-first pre-order and hands
// each formatted line to emit as it is produced: one pass, nothing buffered,
// not restartable. An error from emit aborts the walk.
func (e *Exporter) Render(id int64, mode Mode, emit func(line string) error) error {
	return e.render(id, mode, 0, emit)
}

func (e *Exporter) render(id int64, mode Mode, depth int, emit func(string) error) error {
	node, err := e.store.Get(id)
	if err != nil {
		return err
	}

	indent := strings.Repeat("  ", depth)
	if err := emit(fmt.Sprintf("%s%s (id: %d)", indent, node.Subject, node.ID)); err != nil {
		return err
	}
	if mode == ModeFull {
		if err := emit(fmt.Sprintf("%s  Prompt: %s", indent, node.Prompt)); err != nil {
			return err
		}
		if node.Response != "" {
			if err := emit(fmt.Sprintf("%s  Response: %s", indent, node.Response)); err != nil {
				return err
			}
		}
	}

	children, err := e.store.Children(id)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := e.render(child.ID, mode, depth+1, emit); err != nil {
			return err
		}
	}
	return nil
}

// WriteMarkdown exports the subtree rooted at id as a markdown document:
// one heading per node (level follows depth), prompt and response sections,
// and a metadata block.
func (e *Exporter) WriteMarkdown(w io.Writer, id int64) error {
	return e.writeMarkdown(w, id, 0)
}

func (e *Exporter) writeMarkdown(w io.Writer, id int64, level int) error {
	node, err := e.store.Get(id)
	if err != nil {
		return err
	}

	heading := strings.Repeat("#", level+1)
	if level > 5 {
		heading = "######" // markdown stops at h6
	}

	fmt.Fprintf(w, "%s %s\n\n", heading, node.Subject)
	if node.Prompt != "" {
		fmt.Fprintf(w, "**Prompt:**\n%s\n\n", node.Prompt)
	}
	if node.Response != "" {
		fmt.Fprintf(w, "**Response:**\n%s\n\n", node.Response)
	}
	fmt.Fprintf(w, "**ID:** %d\n", node.ID)
	fmt.Fprintf(w, "**Model:** %s\n", node.Model)
	fmt.Fprintf(w, "**Created:** %s\n", node.PromptAt)
	if node.ResponseAt != nil {
		fmt.Fprintf(w, "**Responded:** %s\n", *node.ResponseAt)
	}
	fmt.Fprintf(w, "\n---\n\n")

	children, err := e.store.Children(id)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := e.writeMarkdown(w, child.ID, level+1); err != nil {
			return err
		}
	}
	return nil
}

// WriteTree renders the subtree rooted at id as an ASCII tree of subject
// lines with ids and creation times.
func (e *Exporter) WriteTree(w io.Writer, id int64) error {
	node, err := e.store.Get(id)
	if err != nil {
		return err
	}
	return e.writeTree(w, node, "", true)
}

func (e *Exporter) writeTree(w io.Writer, node *tree.Node, prefix string, last bool) error {
	connector := "├─ "
	if last {
		connector = "└─ "
	}
	fmt.Fprintf(w, "%s%s%s (id: %d, created on: %s)\n",
		prefix, connector, node.Subject, node.ID, node.PromptAt)

	extension := "│   "
	if last {
		extension = "    "
	}

	children, err := e.store.Children(node.ID)
	if err != nil {
		return err
	}
	for i := range children {
		if err := e.writeTree(w, &children[i], prefix+extension, i == len(children)-1); err != nil {
			return err
		}
	}
	return nil
}
