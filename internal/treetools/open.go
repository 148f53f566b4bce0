package treetools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/promptree/promptree/internal/export"
	"github.com/promptree/promptree/internal/tree"
)

// OpenTool handles the tree_open MCP tool.
type OpenTool struct {
	store    tree.Store
	exporter *export.Exporter
}

// NewOpenTool creates an OpenTool.
func NewOpenTool(store tree.Store, exporter *export.Exporter) *OpenTool {
	return &OpenTool{store: store, exporter: exporter}
}

// Definition returns the MCP tool definition for tree_open.
func (t *OpenTool) Definition() mcp.Tool {
	return mcp.NewTool("tree_open",
		mcp.WithDescription(
			"Show one conversation in full (prompt, response, links) plus a "+
				"compact tree of its descendant subtree.",
		),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("The conversation id to open"),
		),
	)
}

// Handle processes the tree_open tool call.
func (t *OpenTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "id", 0)
	if id == 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	node, err := t.store.Get(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("open failed: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", nodeLine(node))
	fmt.Fprintf(&b, "Prompt:\n%s\n\n", node.Prompt)
	if node.Response != "" {
		fmt.Fprintf(&b, "Response:\n%s\n\n", node.Response)
	}
	if len(node.Links) > 0 {
		b.WriteString("Linked conversations:\n")
		for _, linkID := range node.Links {
			if linked, err := t.store.Get(linkID); err == nil {
				fmt.Fprintf(&b, "  • %s\n", nodeLine(linked))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("Subtree:\n")
	if err := t.exporter.WriteTree(&b, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("rendering subtree: %v", err)), nil
	}

	return mcp.NewToolResultText(b.String()), nil
}
