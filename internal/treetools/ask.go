package treetools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/promptree/promptree/internal/chat"
	"github.com/promptree/promptree/internal/tree"
)

// AskTool handles the tree_ask MCP tool.
type AskTool struct {
	manager *chat.Manager
	store   tree.Store
}

// NewAskTool creates an AskTool.
func NewAskTool(manager *chat.Manager, store tree.Store) *AskTool {
	return &AskTool{manager: manager, store: store}
}

// Definition returns the MCP tool definition for tree_ask.
func (t *AskTool) Definition() mcp.Tool {
	return mcp.NewTool("tree_ask",
		mcp.WithDescription(
			"Ask the language model a question and store the exchange as a new "+
				"conversation node. When parent_id is given, only that node's "+
				"ancestor chain (root to parent) is sent as context, never the "+
				"whole tree.",
		),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("The question to ask"),
		),
		mcp.WithNumber("parent_id",
			mcp.Description("Parent conversation id; omit to start a new root conversation"),
		),
	)
}

// Handle processes the tree_ask tool call. The completion runs unstreamed:
// the full response is accumulated and returned once.
func (t *AskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt := req.GetString("prompt", "")
	if strings.TrimSpace(prompt) == "" {
		return mcp.NewToolResultError("'prompt' is required"), nil
	}

	var parent *int64
	if id := intArg(req, "parent_id", 0); id > 0 {
		parent = &id
	}

	id, err := t.manager.Ask(ctx, prompt, parent, nil)
	if err != nil {
		if id != 0 {
			return mcp.NewToolResultError(fmt.Sprintf(
				"generation failed midway; partial response saved as conversation %d: %v", id, err,
			)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
	}

	node, err := t.store.Get(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("saved conversation %d but could not reload it: %v", id, err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Saved conversation %d - %s\n\n%s\n", node.ID, node.Subject, node.Response)
	return mcp.NewToolResultText(b.String()), nil
}
