// Promptree stores LLM conversations as a tree and talks to a local Ollama
// server. Asking under a node sends only that node's ancestor chain as
// context, never the whole tree.
//
// Usage:
//
//	promptree chat <model>     # interactive shell
//	promptree serve [<model>]  # MCP server (stdio transport)
//	promptree version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/promptree/promptree/internal/chat"
	"github.com/promptree/promptree/internal/config"
	"github.com/promptree/promptree/internal/export"
	"github.com/promptree/promptree/internal/ollama"
	"github.com/promptree/promptree/internal/search"
	"github.com/promptree/promptree/internal/server"
	"github.com/promptree/promptree/internal/shell"
	"github.com/promptree/promptree/internal/store"
	"github.com/promptree/promptree/internal/tree"
	"github.com/promptree/promptree/internal/updater"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "chat":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: promptree chat <model>")
			os.Exit(1)
		}
		if err := runChat(config.FromEnv(os.Args[2])); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "serve":
		model := ""
		if len(os.Args) > 2 {
			model = os.Args[2]
		}
		cfg := config.FromEnv(model)
		if cfg.Model == "" {
			fmt.Fprintln(os.Stderr, "Usage: promptree serve <model> (or set PROMPTREE_MODEL)")
			os.Exit(1)
		}
		if err := runServe(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
	case "--version", "-v", "version":
		fmt.Printf("promptree v%s\n", server.Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runChat(cfg config.Config) error {
	// The REPL owns stdout; diagnostics go to stderr at warn and above.
	log, err := newLogger(zapcore.WarnLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	st, err := store.New(cfg.Store())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() { _ = st.Close() }()

	go printUpdateNotice()

	engine := tree.NewEngine(st)
	client := ollama.New(cfg.Ollama())
	manager := chat.NewManager(st, engine, client, log)

	sh := shell.New(shell.Options{
		Store:    st,
		Engine:   engine,
		Manager:  manager,
		Searcher: search.NewEngine(st),
		Exporter: export.New(st),
		Model:    cfg.Model,
		Log:      log,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return sh.Run(ctx)
}

func runServe(cfg config.Config) error {
	log, err := newLogger(zapcore.InfoLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	s, cleanup, err := server.New(server.Options{
		Store:  cfg.Store(),
		Ollama: cfg.Ollama(),
		Log:    log,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	go printUpdateNotice()

	return mcpserver.ServeStdio(s)
}

// newLogger builds a production logger writing to stderr, keeping stdout
// free for the REPL and the MCP stdio transport.
func newLogger(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// printUpdateNotice runs a non-blocking version check and prints a notice to
// stderr when a newer release exists. Network failures stay silent.
func printUpdateNotice() {
	result := updater.CheckVersion(server.Version)
	if result.UpdateAvailable {
		fmt.Fprintf(os.Stderr, "\nUpdate available: v%s → v%s (%s)\n",
			result.CurrentVersion, result.LatestVersion, result.ReleaseURL)
	}
}

func printUsage() {
	fmt.Print(`promptree: LLM conversations as a tree

Usage:
  promptree chat <model>     Start the interactive shell
  promptree serve [<model>]  Start the MCP server (stdio transport)
  promptree version          Print version
  promptree help             Show this message

Environment:
  PROMPTREE_DATA_DIR  Database directory (default ~/.promptree)
  PROMPTREE_MODEL     Default model for 'serve'
  OLLAMA_HOST         Ollama base URL (default http://localhost:11434)
`)
}
