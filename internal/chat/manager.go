// Package chat drives a conversation turn end to end: assemble the
// ancestor-chain context, stream the completion, generate a subject line,
// and persist the new node.
package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/promptree/promptree/internal/tree"
)

// Completer is the text-completion capability the manager depends on.
// internal/ollama provides the real implementation.
type Completer interface {
	Generate(ctx context.Context, prompt, contextText string, onChunk func(string)) (string, error)
	GenerateSubject(ctx context.Context, prompt, response string) (string, error)
	Model() string
}

// Manager creates and summarizes conversations.
type Manager struct {
	store     tree.Store
	engine    *tree.Engine
	completer Completer
	log       *zap.Logger
}

// NewManager wires a Manager from its collaborators. A nil logger disables
// diagnostic logging.
func NewManager(store tree.Store, engine *tree.Engine, completer Completer, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{store: store, engine: engine, completer: completer, log: log}
}

// Ask runs one conversation turn under the given parent (nil for a new
// root). Only the parent's ancestor chain is sent as context, never the
// whole tree. Chunks are forwarded to onChunk as they stream in.
//
// If the stream fails midway, whatever text was already generated is still
// persisted and the new node id is returned together with the error.
func (m *Manager) Ask(ctx context.Context, prompt string, parent *int64, onChunk func(string)) (int64, error) {
	var contextText string
	if parent != nil {
		chain, err := m.engine.AssembleContext(*parent)
		if err != nil {
			return 0, err
		}
		contextText = tree.FormatContext(chain)
		m.log.Debug("assembled context",
			zap.Int64("parent", *parent),
			zap.Int("chain_len", len(chain)),
		)
	}

	promptAt := tree.Now()
	response, genErr := m.completer.Generate(ctx, prompt, contextText, onChunk)
	if genErr != nil && response == "" {
		return 0, genErr
	}

	responseAt := ""
	if response != "" {
		responseAt = tree.Now()
	}

	subject := m.subjectFor(ctx, prompt, response, genErr != nil)

	id, err := m.store.Insert(tree.InsertParams{
		Subject:    subject,
		Model:      m.completer.Model(),
		Prompt:     prompt,
		Response:   response,
		ParentID:   parent,
		PromptAt:   promptAt,
		ResponseAt: responseAt,
	})
	if err != nil {
		return 0, err
	}

	if genErr != nil {
		m.log.Warn("persisted partial response",
			zap.Int64("id", id),
			zap.Int("partial_len", len(response)),
			zap.Error(genErr),
		)
		return id, genErr
	}

	m.log.Info("conversation saved",
		zap.Int64("id", id),
		zap.String("subject", subject),
	)
	return id, nil
}

// Summarize streams a bullet-point summary of one node's prompt and
// response. The summary is not persisted.
func (m *Manager) Summarize(ctx context.Context, id int64, onChunk func(string)) (string, error) {
	node, err := m.store.Get(id)
	if err != nil {
		return "", err
	}

	content := "User Prompt: " + node.Prompt
	if node.Response != "" {
		content += "\n\nLLM Response: " + node.Response
	}

	summaryPrompt := fmt.Sprintf(
		"Please summarize the following conversation in bullet points:\n\n%s", content,
	)
	return m.completer.Generate(ctx, summaryPrompt, "", onChunk)
}

// subjectFor asks the model for a topic line, falling back to the truncated
// prompt when the turn already failed or subject generation fails itself.
func (m *Manager) subjectFor(ctx context.Context, prompt, response string, turnFailed bool) string {
	if turnFailed {
		return tree.Truncate(prompt, 50)
	}
	subject, err := m.completer.GenerateSubject(ctx, prompt, response)
	if err != nil || subject == "" {
		m.log.Warn("subject generation failed, using prompt", zap.Error(err))
		return tree.Truncate(prompt, 50)
	}
	return subject
}
