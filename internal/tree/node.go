// Package tree implements the conversation tree core: the node model, the
// integrity engine that validates structural mutations (reparent, link,
// delete-subtree), and the context assembler that walks a node's ancestor
// chain to build the history handed to the completion call.
//
// Persistence lives behind the Store contract so the engine never touches
// SQL directly; internal/store provides the SQLite implementation.
package tree

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Node is a single prompt/response record with its tree position.
type Node struct {
	ID       int64   `json:"id"`
	Subject  string  `json:"subject"`
	Model    string  `json:"model"`
	Prompt   string  `json:"prompt"`
	Response string  `json:"response,omitempty"`
	ParentID *int64  `json:"parent_id,omitempty"`
	Links    []int64 `json:"links,omitempty"`

	// Timestamps in SQLite datetime format ("2006-01-02 15:04:05", UTC).
	PromptAt   string  `json:"prompt_at"`
	ResponseAt *string `json:"response_at,omitempty"`
}

// Root reports whether the node has no parent.
func (n *Node) Root() bool {
	return n.ParentID == nil
}

// Linked reports whether id is in the node's link set.
func (n *Node) Linked(id int64) bool {
	for _, l := range n.Links {
		if l == id {
			return true
		}
	}
	return false
}

// InsertParams holds the input for creating a new node.
type InsertParams struct {
	Subject    string
	Model      string
	Prompt     string
	Response   string
	ParentID   *int64
	PromptAt   string
	ResponseAt string
}

// Store is the durable node store the engine runs against.
// Absent ids surface as *NotFoundError; other persistence failures
// as the implementation's storage error.
type Store interface {
	Get(id int64) (*Node, error)
	Insert(p InsertParams) (int64, error)
	SetSubject(id int64, subject string) error
	SetParent(id int64, parent *int64) error
	SetResponse(id int64, response, respondedAt string) error
	Children(id int64) ([]Node, error)
	Roots() ([]Node, error)
	All() ([]Node, error)

	// DeleteMany removes the given nodes and every link row touching them
	// in a single transaction.
	DeleteMany(ids []int64) error

	AddLink(a, b int64) error
	RemoveLink(a, b int64) error
	ClearLinks(id int64) error
}

// Now returns the current time in the timestamp format used throughout
// the store ("2006-01-02 15:04:05", UTC).
func Now() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}

// Truncate shortens a string to at most max bytes plus an ellipsis, cutting
// on a rune boundary so multi-byte characters never end up split.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut]) + "..."
}
