package treetools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/promptree/promptree/internal/tree"
)

// EditTool handles the tree_edit MCP tool.
type EditTool struct {
	store  tree.Store
	engine *tree.Engine
}

// NewEditTool creates an EditTool.
func NewEditTool(store tree.Store, engine *tree.Engine) *EditTool {
	return &EditTool{store: store, engine: engine}
}

// Definition returns the MCP tool definition for tree_edit.
func (t *EditTool) Definition() mcp.Tool {
	return mcp.NewTool("tree_edit",
		mcp.WithDescription(
			"Edit a conversation's subject, parent, or links. Reparenting is "+
				"validated against the tree invariants: the new parent must exist "+
				"and must not lie inside the node's own subtree.",
		),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("The conversation id to edit"),
		),
		mcp.WithString("subject",
			mcp.Description("New subject text"),
		),
		mcp.WithNumber("parent_id",
			mcp.Description("New parent id; 0 moves the node to root level"),
		),
		mcp.WithString("link",
			mcp.Description("Comma-separated ids to link to, or 'none' to remove all links"),
		),
		mcp.WithString("unlink",
			mcp.Description("Comma-separated ids to unlink from"),
		),
	)
}

// Handle processes the tree_edit tool call.
func (t *EditTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "id", 0)
	if id == 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	if _, err := t.store.Get(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var changes []string

	if subject := req.GetString("subject", ""); subject != "" {
		if err := t.store.SetSubject(id, subject); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("updating subject: %v", err)), nil
		}
		changes = append(changes, "subject updated")
	}

	if _, ok := req.GetArguments()["parent_id"]; ok {
		var parent *int64
		if pid := intArg(req, "parent_id", 0); pid > 0 {
			parent = &pid
		}
		if err := t.engine.Reparent(id, parent); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("reparenting: %v", err)), nil
		}
		if parent == nil {
			changes = append(changes, "moved to root level")
		} else {
			changes = append(changes, fmt.Sprintf("parent set to %d", *parent))
		}
	}

	if raw := req.GetString("link", ""); raw != "" {
		if strings.EqualFold(raw, "none") {
			if err := t.engine.ClearLinks(id); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("clearing links: %v", err)), nil
			}
			changes = append(changes, "all links removed")
		} else {
			ids, err := idListArg(req, "link")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := t.engine.Link(id, ids); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("linking: %v", err)), nil
			}
			changes = append(changes, fmt.Sprintf("linked to %v", ids))
		}
	}

	if raw := req.GetString("unlink", ""); raw != "" {
		ids, err := idListArg(req, "unlink")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := t.engine.Unlink(id, ids); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("unlinking: %v", err)), nil
		}
		changes = append(changes, fmt.Sprintf("unlinked from %v", ids))
	}

	if len(changes) == 0 {
		return mcp.NewToolResultError("nothing to edit: give subject, parent_id, link, or unlink"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Conversation %d: %s.", id, strings.Join(changes, "; "))), nil
}
