// Package ollama is a minimal streaming client for a local Ollama server.
//
// Responses from /api/generate arrive as a sequence of JSON lines, each
// carrying a text chunk; the client forwards chunks to the caller as they
// arrive and returns the accumulated text once the stream reports done.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultBaseURL is the standard local Ollama endpoint.
const DefaultBaseURL = "http://localhost:11434"

// maxSubjectLen caps generated subject lines.
const maxSubjectLen = 50

// ServiceError reports a completion backend failure. Partial holds whatever
// text was already streamed before the failure.
type ServiceError struct {
	Op      string
	Partial string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("ollama: %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Config holds client configuration.
type Config struct {
	// BaseURL of the Ollama API server.
	BaseURL string
	// Model is the model name sent with every request.
	Model string
	// Timeout bounds the whole request including streaming. Zero means
	// no client-side timeout (generation time is unbounded).
	Timeout time.Duration
}

// DefaultConfig returns a config for a local server and the given model.
func DefaultConfig(model string) Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Model:   model,
	}
}

// Client talks to one Ollama server with one model.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a Client from the given config.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// generateRequest is the /api/generate request payload.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// generateChunk is one JSON line of a streamed response.
type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate streams a completion for prompt, with contextText prepended as
// conversation history when non-empty. Each chunk is forwarded to onChunk
// (may be nil) as it arrives; the accumulated text is returned at the end.
// On failure the returned *ServiceError carries the partial text, which is
// also returned so callers can keep what was already generated.
func (c *Client) Generate(ctx context.Context, prompt, contextText string, onChunk func(string)) (string, error) {
	fullPrompt := prompt
	if contextText != "" {
		fullPrompt = contextText + "\n\nUser: " + prompt
	}

	payload, err := json.Marshal(generateRequest{
		Model:  c.cfg.Model,
		Prompt: fullPrompt + "\n\nOnly output the final answer, no other text.",
		Stream: true,
	})
	if err != nil {
		return "", &ServiceError{Op: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", &ServiceError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ServiceError{Op: "request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &ServiceError{
			Op:  "request",
			Err: fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk generateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return full.String(), &ServiceError{Op: "decode chunk", Partial: full.String(), Err: err}
		}

		if chunk.Response != "" {
			full.WriteString(chunk.Response)
			if onChunk != nil {
				onChunk(chunk.Response)
			}
		}
		if chunk.Done {
			return full.String(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), &ServiceError{Op: "stream", Partial: full.String(), Err: err}
	}

	// Stream ended without a done marker; treat what we have as the answer.
	return full.String(), nil
}

// GenerateSubject asks the model for a short topic line describing a
// prompt/response pair. The result is cleaned and capped at 50 characters.
func (c *Client) GenerateSubject(ctx context.Context, prompt, response string) (string, error) {
	subjectPrompt := fmt.Sprintf(
		"Generate a concise, informative topic name (max 50 characters) for this conversation. "+
			"Only output the topic name, no extra content:<prompt>%s</prompt><response>%s</response>",
		prompt, response,
	)

	subject, err := c.Generate(ctx, subjectPrompt, "", nil)
	if err != nil {
		return "", err
	}
	return CleanSubject(subject), nil
}

// CleanSubject normalizes a model-generated subject line: quotes stripped,
// newlines collapsed, length capped on a rune boundary.
func CleanSubject(s string) string {
	s = strings.ReplaceAll(s, `"`, "")
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxSubjectLen {
		cut := maxSubjectLen - 3
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
