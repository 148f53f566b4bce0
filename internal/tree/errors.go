package tree

import "fmt"

// NotFoundError reports a referenced node id that does not exist.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("node %d not found", e.ID)
}

// CycleError reports a structural mutation that would create a cycle, or
// a cycle detected while walking ancestors of corrupted data.
type CycleError struct {
	NodeID int64
	// ParentID is the rejected new parent for reparent attempts; equal to
	// NodeID when the cycle was found during an ancestor walk.
	ParentID int64
}

func (e *CycleError) Error() string {
	if e.NodeID == e.ParentID {
		return fmt.Sprintf("cycle detected in ancestor chain of node %d", e.NodeID)
	}
	return fmt.Sprintf("reparenting node %d under %d would create a cycle", e.NodeID, e.ParentID)
}

// InvalidOperationError reports a structurally well-formed request that is
// semantically invalid (self-link, duplicate link, empty id list).
type InvalidOperationError struct {
	Reason string
}

func (e *InvalidOperationError) Error() string {
	return e.Reason
}
