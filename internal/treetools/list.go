package treetools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/promptree/promptree/internal/tree"
)

// ListTool handles the tree_list MCP tool.
type ListTool struct {
	store tree.Store
}

// NewListTool creates a ListTool.
func NewListTool(store tree.Store) *ListTool {
	return &ListTool{store: store}
}

// Definition returns the MCP tool definition for tree_list.
func (t *ListTool) Definition() mcp.Tool {
	return mcp.NewTool("tree_list",
		mcp.WithDescription(
			"List all top-level (root) conversations with their ids and creation times.",
		),
	)
}

// Handle processes the tree_list tool call.
func (t *ListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roots, err := t.store.Roots()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if len(roots) == 0 {
		return mcp.NewToolResultText("No top-level conversations found."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Top-level conversations (%d):\n", len(roots))
	for i := range roots {
		fmt.Fprintf(&b, "- %s\n", nodeLine(&roots[i]))
	}
	return mcp.NewToolResultText(b.String()), nil
}
