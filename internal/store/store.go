// Package store implements the durable node store for Promptree.
//
// It keeps the conversation tree in SQLite: a conversations table holding
// one row per node (parent-pointer foreign key) and a conversation_links
// join table for the symmetric cross-links. The package satisfies
// tree.Store; all tree semantics live in internal/tree.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/promptree/promptree/internal/tree"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// StoreError wraps a persistence-layer failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Config holds store configuration.
type Config struct {
	// DataDir is where the database file lives.
	DataDir string
	// FileName is the database file name inside DataDir.
	FileName string
}

// DefaultConfig returns the default configuration, placing the database
// under ~/.promptree.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:  filepath.Join(home, ".promptree"),
		FileName: "promptree.db",
	}
}

// Store is the SQLite-backed node store.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database, applies the WAL pragmas,
// and runs the schema migration.
func New(cfg Config) (*Store, error) {
	if cfg.FileName == "" {
		cfg.FileName = "promptree.db"
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, &StoreError{Op: "create data dir", Err: err}
	}

	dbPath := filepath.Join(cfg.DataDir, cfg.FileName)
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, &StoreError{Op: "open database", Err: err}
	}

	// SQLite pragmas: WAL for durability without write stalls, foreign keys
	// on so link rows cascade with their nodes.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, &StoreError{Op: fmt.Sprintf("pragma %q", p), Err: err}
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, &StoreError{Op: "migration", Err: err}
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	// AUTOINCREMENT keeps ids monotonic and never reused after deletion.
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			subject     TEXT    NOT NULL,
			model_name  TEXT    NOT NULL,
			prompt      TEXT    NOT NULL,
			response    TEXT,
			parent_id   INTEGER,
			prompt_at   TEXT    NOT NULL DEFAULT (datetime('now')),
			response_at TEXT,
			FOREIGN KEY (parent_id) REFERENCES conversations(id)
		);

		CREATE INDEX IF NOT EXISTS idx_conv_parent ON conversations(parent_id);

		CREATE TABLE IF NOT EXISTS conversation_links (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			node_id   INTEGER NOT NULL,
			linked_id INTEGER NOT NULL,
			UNIQUE(node_id, linked_id),
			FOREIGN KEY (node_id)   REFERENCES conversations(id) ON DELETE CASCADE,
			FOREIGN KEY (linked_id) REFERENCES conversations(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_links_node   ON conversation_links(node_id);
		CREATE INDEX IF NOT EXISTS idx_links_linked ON conversation_links(linked_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Nodes ───────────────────────────────────────────────────────────────────

const nodeColumns = `id, subject, model_name, prompt, ifnull(response, ''), parent_id, prompt_at, response_at`

// Get retrieves a node by id, links included.
func (s *Store) Get(id int64) (*tree.Node, error) {
	row := s.db.QueryRow(
		`SELECT `+nodeColumns+` FROM conversations WHERE id = ?`, id,
	)
	n, err := scanNode(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &tree.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, &StoreError{Op: fmt.Sprintf("get node %d", id), Err: err}
	}

	links, err := s.LinkIDs(id)
	if err != nil {
		return nil, err
	}
	n.Links = links
	return n, nil
}

// Insert creates a new node and returns its id.
func (s *Store) Insert(p tree.InsertParams) (int64, error) {
	promptAt := p.PromptAt
	if promptAt == "" {
		promptAt = tree.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO conversations (subject, model_name, prompt, response, parent_id, prompt_at, response_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Subject, p.Model, p.Prompt,
		nullableString(p.Response), p.ParentID, promptAt, nullableString(p.ResponseAt),
	)
	if err != nil {
		return 0, &StoreError{Op: "insert node", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &StoreError{Op: "insert node", Err: err}
	}
	return id, nil
}

// SetSubject updates a node's subject.
func (s *Store) SetSubject(id int64, subject string) error {
	return s.updateOne(id, `UPDATE conversations SET subject = ? WHERE id = ?`, subject, id)
}

// SetParent updates a node's parent pointer. A nil parent moves the node to
// root level. Cycle validation is the engine's job, not the store's.
func (s *Store) SetParent(id int64, parent *int64) error {
	return s.updateOne(id, `UPDATE conversations SET parent_id = ? WHERE id = ?`, parent, id)
}

// SetResponse records a node's response text and response timestamp.
func (s *Store) SetResponse(id int64, response, respondedAt string) error {
	return s.updateOne(id,
		`UPDATE conversations SET response = ?, response_at = ? WHERE id = ?`,
		response, respondedAt, id,
	)
}

// Children returns the direct children of a node, ordered by prompt time
// then id.
func (s *Store) Children(id int64) ([]tree.Node, error) {
	return s.queryNodes(
		`SELECT `+nodeColumns+` FROM conversations WHERE parent_id = ? ORDER BY prompt_at ASC, id ASC`, id,
	)
}

// Roots returns all parentless nodes ordered alphabetically by subject.
func (s *Store) Roots() ([]tree.Node, error) {
	return s.queryNodes(
		`SELECT ` + nodeColumns + ` FROM conversations WHERE parent_id IS NULL ORDER BY subject ASC`,
	)
}

// All returns every node in ascending id order, links included.
func (s *Store) All() ([]tree.Node, error) {
	nodes, err := s.queryNodes(`SELECT ` + nodeColumns + ` FROM conversations ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	for i := range nodes {
		links, err := s.LinkIDs(nodes[i].ID)
		if err != nil {
			return nil, err
		}
		nodes[i].Links = links
	}
	return nodes, nil
}

// DeleteMany removes the given nodes and every link row touching them in a
// single transaction. The slice must already contain every descendant of
// each deleted node (the engine passes subtrees in BFS order); rows are
// deleted children-first so the parent foreign key holds throughout.
func (s *Store) DeleteMany(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return &StoreError{Op: "begin delete", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	for _, id := range ids {
		if _, err := tx.Exec(
			`DELETE FROM conversation_links WHERE node_id = ? OR linked_id = ?`, id, id,
		); err != nil {
			return &StoreError{Op: fmt.Sprintf("delete links of node %d", id), Err: err}
		}
	}
	for i := len(ids) - 1; i >= 0; i-- {
		if _, err := tx.Exec(`DELETE FROM conversations WHERE id = ?`, ids[i]); err != nil {
			return &StoreError{Op: fmt.Sprintf("delete node %d", ids[i]), Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "commit delete", Err: err}
	}
	return nil
}

// ─── Links ───────────────────────────────────────────────────────────────────

// AddLink records a symmetric link between two nodes. One row is stored per
// pair; lookups read both directions.
func (s *Store) AddLink(a, b int64) error {
	_, err := s.db.Exec(
		`INSERT INTO conversation_links (node_id, linked_id) VALUES (?, ?)`, a, b,
	)
	if err != nil {
		return &StoreError{Op: fmt.Sprintf("link %d-%d", a, b), Err: err}
	}
	return nil
}

// RemoveLink removes the link between two nodes, whichever direction the
// row was stored in.
func (s *Store) RemoveLink(a, b int64) error {
	_, err := s.db.Exec(
		`DELETE FROM conversation_links
		 WHERE (node_id = ? AND linked_id = ?) OR (node_id = ? AND linked_id = ?)`,
		a, b, b, a,
	)
	if err != nil {
		return &StoreError{Op: fmt.Sprintf("unlink %d-%d", a, b), Err: err}
	}
	return nil
}

// ClearLinks removes every link touching the node.
func (s *Store) ClearLinks(id int64) error {
	_, err := s.db.Exec(
		`DELETE FROM conversation_links WHERE node_id = ? OR linked_id = ?`, id, id,
	)
	if err != nil {
		return &StoreError{Op: fmt.Sprintf("clear links of node %d", id), Err: err}
	}
	return nil
}

// LinkIDs returns the ids linked to a node, both directions, ascending.
func (s *Store) LinkIDs(id int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT CASE WHEN node_id = ? THEN linked_id ELSE node_id END AS other
		 FROM conversation_links
		 WHERE node_id = ? OR linked_id = ?`,
		id, id, id,
	)
	if err != nil {
		return nil, &StoreError{Op: fmt.Sprintf("link ids of node %d", id), Err: err}
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var other int64
		if err := rows.Scan(&other); err != nil {
			return nil, &StoreError{Op: "scan link id", Err: err}
		}
		ids = append(ids, other)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "iterate link ids", Err: err}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (s *Store) updateOne(id int64, query string, args ...any) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return &StoreError{Op: fmt.Sprintf("update node %d", id), Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StoreError{Op: fmt.Sprintf("update node %d", id), Err: err}
	}
	if n == 0 {
		return &tree.NotFoundError{ID: id}
	}
	return nil
}

func (s *Store) queryNodes(query string, args ...any) ([]tree.Node, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &StoreError{Op: "query nodes", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var nodes []tree.Node
	for rows.Next() {
		n, err := scanNode(rows.Scan)
		if err != nil {
			return nil, &StoreError{Op: "scan node", Err: err}
		}
		nodes = append(nodes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "iterate nodes", Err: err}
	}
	return nodes, nil
}

func scanNode(scan func(dest ...any) error) (*tree.Node, error) {
	var n tree.Node
	if err := scan(
		&n.ID, &n.Subject, &n.Model, &n.Prompt, &n.Response,
		&n.ParentID, &n.PromptAt, &n.ResponseAt,
	); err != nil {
		return nil, err
	}
	return &n, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
