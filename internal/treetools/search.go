package treetools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/promptree/promptree/internal/search"
)

// SearchTool handles the tree_search MCP tool.
type SearchTool struct {
	searcher *search.Engine
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(searcher *search.Engine) *SearchTool {
	return &SearchTool{searcher: searcher}
}

// Definition returns the MCP tool definition for tree_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("tree_search",
		mcp.WithDescription(
			"Search conversation subjects, prompts and responses. Matching is "+
				"case-insensitive; '*' matches any run of characters and anchors "+
				"the pattern to the whole field, otherwise substring containment "+
				"applies.",
		),
		mcp.WithString("pattern",
			mcp.Required(),
			mcp.Description("Search pattern, e.g. 'para' or 'py*n'"),
		),
	)
}

// Handle processes the tree_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pattern := req.GetString("pattern", "")
	if pattern == "" {
		return mcp.NewToolResultError("'pattern' is required"), nil
	}

	matches, err := t.searcher.Search(pattern)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(matches) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No conversations found containing %q.", pattern)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d conversation(s):\n", len(matches))
	for _, m := range matches {
		fmt.Fprintf(&b, "- %s | matched: %s\n", nodeLine(&m.Node), strings.Join(m.Fields, ", "))
	}
	return mcp.NewToolResultText(b.String()), nil
}
