package tree

import (
	"fmt"
	"strings"
)

// Engine validates and applies structural mutations against the acyclicity
// and referential invariants, and assembles ancestor-chain context.
type Engine struct {
	store Store
}

// NewEngine creates an Engine over the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Store returns the underlying node store.
func (e *Engine) Store() Store {
	return e.store
}

// ─── Structural mutations ────────────────────────────────────────────────────

// Reparent moves a node under a new parent. A nil parent moves the node to
// root level and is always valid. It fails with *NotFoundError if either id
// is absent and with *CycleError if the new parent is the node itself or
// lies inside the node's descendant subtree.
func (e *Engine) Reparent(id int64, newParent *int64) error {
	if _, err := e.store.Get(id); err != nil {
		return err
	}

	if newParent != nil {
		if *newParent == id {
			return &CycleError{NodeID: id, ParentID: *newParent}
		}
		if _, err := e.store.Get(*newParent); err != nil {
			return err
		}
		// Walk upward from the candidate parent; hitting the node being
		// moved means the candidate is one of its descendants.
		onPath, err := e.onAncestorPath(*newParent, id)
		if err != nil {
			return err
		}
		if onPath {
			return &CycleError{NodeID: id, ParentID: *newParent}
		}
	}

	return e.store.SetParent(id, newParent)
}

// Link adds symmetric links between a node and each of the given ids.
// All ids are validated before any link is written, so a failed call
// leaves the link set untouched.
func (e *Engine) Link(id int64, others []int64) error {
	if err := e.validateLinkTargets(id, others); err != nil {
		return err
	}
	node, err := e.store.Get(id)
	if err != nil {
		return err
	}
	for _, other := range others {
		if node.Linked(other) {
			return &InvalidOperationError{
				Reason: fmt.Sprintf("nodes %d and %d are already linked", id, other),
			}
		}
	}

	for _, other := range others {
		if err := e.store.AddLink(id, other); err != nil {
			return err
		}
	}
	return nil
}

// Unlink removes the symmetric links between a node and each of the given
// ids. Unlinking a pair that is not linked is a no-op, matching how link
// rows are removed in either direction.
func (e *Engine) Unlink(id int64, others []int64) error {
	if err := e.validateLinkTargets(id, others); err != nil {
		return err
	}
	for _, other := range others {
		if err := e.store.RemoveLink(id, other); err != nil {
			return err
		}
	}
	return nil
}

// ClearLinks removes every link touching the node.
func (e *Engine) ClearLinks(id int64) error {
	if _, err := e.store.Get(id); err != nil {
		return err
	}
	return e.store.ClearLinks(id)
}

// DeleteSubtree deletes a node and its entire descendant subtree, and scrubs
// the deleted ids from every remaining node's link set. The whole mutation
// runs in one store transaction: either all of it lands or none does.
func (e *Engine) DeleteSubtree(id int64) ([]int64, error) {
	ids, err := e.Subtree(id)
	if err != nil {
		return nil, err
	}
	if err := e.store.DeleteMany(ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Subtree returns the ids of a node and all its transitive descendants in
// BFS order (the node itself first).
func (e *Engine) Subtree(id int64) ([]int64, error) {
	if _, err := e.store.Get(id); err != nil {
		return nil, err
	}

	ids := []int64{id}
	queue := []int64{id}
	seen := map[int64]bool{id: true}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children, err := e.store.Children(current)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if seen[child.ID] {
				// A child reachable twice means the parent graph is corrupt.
				return nil, &CycleError{NodeID: child.ID, ParentID: child.ID}
			}
			seen[child.ID] = true
			ids = append(ids, child.ID)
			queue = append(queue, child.ID)
		}
	}
	return ids, nil
}

// ─── Context assembly ────────────────────────────────────────────────────────

// AssembleContext returns the ordered ancestor chain [root, ..., parent, node]
// of full records. This chain, never the whole tree, is the history handed
// to the completion call. A cycle in stored parent pointers (possible only
// through external corruption) surfaces as *CycleError instead of looping.
func (e *Engine) AssembleContext(id int64) ([]Node, error) {
	var chain []Node
	visited := make(map[int64]bool)

	current := &id
	for current != nil {
		if visited[*current] {
			return nil, &CycleError{NodeID: *current, ParentID: *current}
		}
		visited[*current] = true

		node, err := e.store.Get(*current)
		if err != nil {
			return nil, err
		}
		chain = append(chain, *node)
		current = node.ParentID
	}

	// Walked leaf→root; callers want root first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Depth returns the number of ancestors above the node (0 for roots).
func (e *Engine) Depth(id int64) (int, error) {
	chain, err := e.AssembleContext(id)
	if err != nil {
		return 0, err
	}
	return len(chain) - 1, nil
}

// FormatContext renders an ancestor chain as the textual history given to
// the model: one Subject/User Prompt/LLM Response block per node, separated
// by "---" markers.
func FormatContext(chain []Node) string {
	if len(chain) == 0 {
		return ""
	}

	var b strings.Builder
	for _, n := range chain {
		fmt.Fprintf(&b, "Subject: %s\n", n.Subject)
		fmt.Fprintf(&b, "User Prompt (at %s): %s\n", n.PromptAt, n.Prompt)
		if n.Response != "" {
			at := ""
			if n.ResponseAt != nil {
				at = *n.ResponseAt
			}
			fmt.Fprintf(&b, "LLM Response (at %s): %s\n", at, n.Response)
		}
		b.WriteString("---\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// onAncestorPath walks parent pointers upward from start and reports whether
// target is encountered before the root. O(depth) per call, which is fine
// for conversation-sized trees.
func (e *Engine) onAncestorPath(start, target int64) (bool, error) {
	visited := make(map[int64]bool)

	current := &start
	for current != nil {
		if *current == target {
			return true, nil
		}
		if visited[*current] {
			return false, &CycleError{NodeID: *current, ParentID: *current}
		}
		visited[*current] = true

		node, err := e.store.Get(*current)
		if err != nil {
			return false, err
		}
		current = node.ParentID
	}
	return false, nil
}

func (e *Engine) validateLinkTargets(id int64, others []int64) error {
	if len(others) == 0 {
		return &InvalidOperationError{Reason: "no link ids given"}
	}
	if _, err := e.store.Get(id); err != nil {
		return err
	}
	seen := make(map[int64]bool, len(others))
	for _, other := range others {
		if other == id {
			return &InvalidOperationError{
				Reason: fmt.Sprintf("cannot link node %d to itself", id),
			}
		}
		if seen[other] {
			return &InvalidOperationError{
				Reason: fmt.Sprintf("id %d appears more than once", other),
			}
		}
		seen[other] = true
		if _, err := e.store.Get(other); err != nil {
			return err
		}
	}
	return nil
}
