// Package server wires the MCP surface: it creates the concrete store,
// engine, completion client and tool handlers, and registers everything on
// an MCP server instance. No business logic lives here, only wiring.
package server

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/promptree/promptree/internal/chat"
	"github.com/promptree/promptree/internal/export"
	"github.com/promptree/promptree/internal/ollama"
	"github.com/promptree/promptree/internal/search"
	"github.com/promptree/promptree/internal/store"
	"github.com/promptree/promptree/internal/tree"
	"github.com/promptree/promptree/internal/treetools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Options configures the server's collaborators.
type Options struct {
	Store  store.Config
	Ollama ollama.Config
	Log    *zap.Logger
}

// New creates the MCP server with all tree tools registered. The returned
// cleanup function closes the store and must be called on shutdown; it is
// always non-nil.
func New(opts Options) (*server.MCPServer, func(), error) {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}

	st, err := store.New(opts.Store)
	if err != nil {
		return nil, noop, fmt.Errorf("opening store: %w", err)
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			opts.Log.Warn("closing store", zap.Error(err))
		}
	}

	engine := tree.NewEngine(st)
	searcher := search.NewEngine(st)
	exporter := export.New(st)
	client := ollama.New(opts.Ollama)
	manager := chat.NewManager(st, engine, client, opts.Log)

	s := server.NewMCPServer(
		"promptree",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions()),
	)

	askTool := treetools.NewAskTool(manager, st)
	s.AddTool(askTool.Definition(), askTool.Handle)

	listTool := treetools.NewListTool(st)
	s.AddTool(listTool.Definition(), listTool.Handle)

	openTool := treetools.NewOpenTool(st, exporter)
	s.AddTool(openTool.Definition(), openTool.Handle)

	searchTool := treetools.NewSearchTool(searcher)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	editTool := treetools.NewEditTool(st, engine)
	s.AddTool(editTool.Definition(), editTool.Handle)

	deleteTool := treetools.NewDeleteTool(engine)
	s.AddTool(deleteTool.Definition(), deleteTool.Handle)

	exportTool := treetools.NewExportTool(exporter)
	s.AddTool(exportTool.Definition(), exportTool.Handle)

	return s, cleanup, nil
}

func noop() {}

func instructions() string {
	return `Promptree stores LLM conversations as a tree. Each node is one
prompt/response exchange with a parent link; asking under a node sends only
its ancestor chain (root to node) as context, never the whole tree.

Typical flow: tree_list to see roots, tree_open to inspect one, tree_ask
with parent_id to continue a thread, tree_search to find past exchanges,
tree_edit to restructure, tree_delete to prune a subtree, tree_export to
produce a markdown document.`
}
