package treetools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/promptree/promptree/internal/export"
)

// ExportTool handles the tree_export MCP tool.
type ExportTool struct {
	exporter *export.Exporter
}

// NewExportTool creates an ExportTool.
func NewExportTool(exporter *export.Exporter) *ExportTool {
	return &ExportTool{exporter: exporter}
}

// Definition returns the MCP tool definition for tree_export.
func (t *ExportTool) Definition() mcp.Tool {
	return mcp.NewTool("tree_export",
		mcp.WithDescription(
			"Export a conversation subtree. Mode 'markdown' (default) produces a "+
				"full document with one heading per node; 'summary' produces an "+
				"indented subject outline.",
		),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Root conversation id of the subtree to export"),
		),
		mcp.WithString("mode",
			mcp.Description("'markdown' or 'summary' (default: markdown)"),
		),
	)
}

// Handle processes the tree_export tool call.
func (t *ExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "id", 0)
	if id == 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	var b strings.Builder
	switch mode := req.GetString("mode", "markdown"); mode {
	case "markdown":
		if err := t.exporter.WriteMarkdown(&b, id); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
		}
	case "summary":
		err := t.exporter.Render(id, export.ModeSummary, func(line string) error {
			b.WriteString(line)
			b.WriteString("\n")
			return nil
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
		}
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown mode %q: use 'markdown' or 'summary'", mode)), nil
	}

	return mcp.NewToolResultText(b.String()), nil
}
