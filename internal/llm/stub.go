package llm

import (
	"context"
	"fmt"
	"sync"
)

// StubClient is a scripted Client for tests. Responses are served in order
// to both Generate calls and session turns; when the script runs out the
// fallback response is returned.
type StubClient struct {
	mu        sync.Mutex
	responses []string
	next      int

	// Fallback is returned once the scripted responses are exhausted.
	Fallback string

	// GenerateFunc, when set, overrides scripted behaviour for Generate.
	GenerateFunc func(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Prompts records every prompt seen, in order, across Generate and
	// session turns.
	Prompts []string

	// SystemPrompts records the system prompt of each opened session.
	SystemPrompts []string

	// SessionErr, when set, makes NewSession fail.
	SessionErr error
}

// NewStubClient builds a stub that replays the given responses in order.
func NewStubClient(responses ...string) *StubClient {
	return &StubClient{responses: responses, Fallback: "DONE: stub exhausted"}
}

func (s *StubClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if s.GenerateFunc != nil {
		return s.GenerateFunc(ctx, prompt, opts)
	}
	return s.take(prompt), nil
}

func (s *StubClient) NewSession(ctx context.Context, systemPrompt string) (Session, error) {
	if s.SessionErr != nil {
		return nil, s.SessionErr
	}
	s.mu.Lock()
	s.SystemPrompts = append(s.SystemPrompts, systemPrompt)
	s.mu.Unlock()
	return &stubSession{client: s}, nil
}

func (s *StubClient) take(prompt string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prompts = append(s.Prompts, prompt)
	if s.next >= len(s.responses) {
		return s.Fallback
	}
	resp := s.responses[s.next]
	s.next++
	return resp
}

type stubSession struct {
	client *StubClient
	closed bool
}

func (s *stubSession) Prompt(ctx context.Context, prompt string, opts PromptOptions) (string, error) {
	if s.closed {
		return "", fmt.Errorf("session closed")
	}
	return s.client.take(prompt), nil
}

func (s *stubSession) Close() { s.closed = true }
