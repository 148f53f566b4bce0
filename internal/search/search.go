// Package search implements pattern matching over conversation nodes.
//
// Patterns are case-insensitive. A `*` matches any run of characters and
// anchors the pattern to the whole field, so "py*n" matches a field reading
// "python" but not "pine". A pattern without `*` matches by substring
// containment.
package search

import (
	"regexp"
	"strings"

	"github.com/promptree/promptree/internal/tree"
)

// Field names reported in matches.
const (
	FieldSubject  = "subject"
	FieldPrompt   = "prompt"
	FieldResponse = "response"
)

// Match is one matching node with the fields the pattern hit.
type Match struct {
	Node   tree.Node
	Fields []string
}

// Matcher is a compiled search pattern.
type Matcher struct {
	pattern  string
	wildcard bool
	re       *regexp.Regexp // set only for wildcard patterns
	needle   string         // lowercase substring for plain patterns
}

// Compile builds a Matcher from a user pattern.
func Compile(pattern string) (*Matcher, error) {
	m := &Matcher{pattern: pattern}

	if !strings.Contains(pattern, "*") {
		m.needle = strings.ToLower(pattern)
		return m, nil
	}

	m.wildcard = true
	var b strings.Builder
	b.WriteString(`(?is)\A`)
	for i, part := range strings.Split(pattern, "*") {
		if i > 0 {
			b.WriteString(`.*`)
		}
		b.WriteString(regexp.QuoteMeta(part))
	}
	b.WriteString(`\z`)

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}
	m.re = re
	return m, nil
}

// MatchField reports whether a single field value matches the pattern.
func (m *Matcher) MatchField(value string) bool {
	if value == "" {
		return false
	}
	if m.wildcard {
		return m.re.MatchString(value)
	}
	return strings.Contains(strings.ToLower(value), m.needle)
}

// MatchNode returns the fields of the node that match, in subject, prompt,
// response order. An empty slice means no match.
func (m *Matcher) MatchNode(n *tree.Node) []string {
	var fields []string
	if m.MatchField(n.Subject) {
		fields = append(fields, FieldSubject)
	}
	if m.MatchField(n.Prompt) {
		fields = append(fields, FieldPrompt)
	}
	if m.MatchField(n.Response) {
		fields = append(fields, FieldResponse)
	}
	return fields
}

// Engine scans the node store for pattern matches.
type Engine struct {
	store tree.Store
}

// NewEngine creates a search Engine over the given store.
func NewEngine(store tree.Store) *Engine {
	return &Engine{store: store}
}

// Search returns every node with at least one matching field, in ascending
// id order.
func (e *Engine) Search(pattern string) ([]Match, error) {
	m, err := Compile(pattern)
	if err != nil {
		return nil, err
	}

	nodes, err := e.store.All()
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, n := range nodes {
		fields := m.MatchNode(&n)
		if len(fields) > 0 {
			matches = append(matches, Match{Node: n, Fields: fields})
		}
	}
	return matches, nil
}
