// Package llm wraps the local OpenAI-compatible endpoint behind the two call
// shapes the engine needs: one-shot generation and a persistent orchestrator
// session. The model is a single-instance resource, so each completion queues
// on a shared gate; the gate is held per call, never across a session, which
// lets orchestrator tools re-enter the LLM without deadlocking.
package llm

import "context"

// GenerateOptions tunes a one-shot completion.
type GenerateOptions struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
}

// PromptOptions tunes one turn of a persistent session.
type PromptOptions struct {
	MaxTokens   int
	Temperature float32
}

// Client is the LLM handle handed to node executors and the orchestrator.
type Client interface {
	// Generate runs a stateless completion.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// NewSession allocates a persistent chat context seeded with a system
	// prompt. Sessions do not reserve the model; each turn queues on the
	// gate like a one-shot Generate.
	NewSession(ctx context.Context, systemPrompt string) (Session, error)
}

// Session is a persistent conversation bound to the underlying model.
type Session interface {
	// Prompt appends a user turn, runs a completion over the full
	// transcript, records the assistant reply, and returns it.
	Prompt(ctx context.Context, prompt string, opts PromptOptions) (string, error)

	// Close releases any resources the session holds. Safe to call more
	// than once.
	Close()
}
