package server_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/promptree/promptree/internal/ollama"
	"github.com/promptree/promptree/internal/server"
	"github.com/promptree/promptree/internal/store"
)

func TestNew_WiresEverything(t *testing.T) {
	s, cleanup, err := server.New(server.Options{
		Store:  store.Config{DataDir: t.TempDir()},
		Ollama: ollama.DefaultConfig("test-model"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cleanup()

	if s == nil {
		t.Fatal("want a server instance")
	}
}

func TestNew_StoreFailure(t *testing.T) {
	// A file where the data dir should be makes store creation fail.
	blocked := filepath.Join(t.TempDir(), "blocked")
	if err := os.WriteFile(blocked, []byte("not a directory"), 0600); err != nil {
		t.Fatal(err)
	}

	_, cleanup, err := server.New(server.Options{
		Store: store.Config{DataDir: blocked},
	})
	if err == nil {
		t.Fatal("want an error when the store cannot open")
	}
	cleanup() // must be callable even on failure
}
