// Package treetools provides MCP tool handlers over the conversation tree.
//
// Each handler follows the same pattern:
// - A struct with its dependencies injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// The tools mirror the shell's command surface so MCP clients can drive the
// same tree the interactive shell does.
package treetools

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/promptree/promptree/internal/tree"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int64) int64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int64(v)
}

// idListArg parses a comma-separated id list argument ("3,7,9").
func idListArg(req mcp.CallToolRequest, key string) ([]int64, error) {
	raw := req.GetString(key, "")
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		var id int64
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%d", &id); err != nil {
			return nil, fmt.Errorf("invalid id %q in %s", part, key)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// nodeLine formats a node the way list/search results show it.
func nodeLine(n *tree.Node) string {
	return fmt.Sprintf("%s (id: %d, created on: %s)", n.Subject, n.ID, n.PromptAt)
}
