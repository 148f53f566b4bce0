package treetools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/promptree/promptree/internal/tree"
)

// DeleteTool handles the tree_delete MCP tool.
type DeleteTool struct {
	engine *tree.Engine
}

// NewDeleteTool creates a DeleteTool.
func NewDeleteTool(engine *tree.Engine) *DeleteTool {
	return &DeleteTool{engine: engine}
}

// Definition returns the MCP tool definition for tree_delete.
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("tree_delete",
		mcp.WithDescription(
			"Delete a conversation and its entire descendant subtree. The delete "+
				"is atomic and scrubs the removed ids from every remaining "+
				"conversation's link set. This cannot be undone.",
		),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("The conversation id to delete"),
		),
	)
}

// Handle processes the tree_delete tool call.
func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "id", 0)
	if id == 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	deleted, err := t.engine.DeleteSubtree(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Deleted conversation %d and its subtree (%d nodes removed).", id, len(deleted),
	)), nil
}
