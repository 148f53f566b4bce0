// Package config resolves runtime configuration from the environment.
//
// Precedence is explicit value > environment variable > default. The
// recognized variables are PROMPTREE_DATA_DIR, PROMPTREE_MODEL and
// OLLAMA_HOST.
package config

import (
	"os"

	"github.com/promptree/promptree/internal/ollama"
	"github.com/promptree/promptree/internal/store"
)

// Environment variable names.
const (
	EnvDataDir    = "PROMPTREE_DATA_DIR"
	EnvModel      = "PROMPTREE_MODEL"
	EnvOllamaHost = "OLLAMA_HOST"
)

// getenv is a package-level var to allow test injection.
var getenv = os.Getenv

// Config is the resolved runtime configuration.
type Config struct {
	// DataDir is where the database lives.
	DataDir string
	// Model is the Ollama model name.
	Model string
	// OllamaHost is the Ollama base URL.
	OllamaHost string
}

// FromEnv resolves the configuration. model overrides PROMPTREE_MODEL when
// non-empty; Model may still end up empty and it is the caller's job to
// decide whether that is an error.
func FromEnv(model string) Config {
	cfg := Config{
		DataDir:    store.DefaultConfig().DataDir,
		Model:      model,
		OllamaHost: ollama.DefaultBaseURL,
	}
	if dir := getenv(EnvDataDir); dir != "" {
		cfg.DataDir = dir
	}
	if cfg.Model == "" {
		cfg.Model = getenv(EnvModel)
	}
	if host := getenv(EnvOllamaHost); host != "" {
		cfg.OllamaHost = host
	}
	return cfg
}

// Store returns the store configuration.
func (c Config) Store() store.Config {
	cfg := store.DefaultConfig()
	cfg.DataDir = c.DataDir
	return cfg
}

// Ollama returns the completion client configuration.
func (c Config) Ollama() ollama.Config {
	cfg := ollama.DefaultConfig(c.Model)
	cfg.BaseURL = c.OllamaHost
	return cfg
}
