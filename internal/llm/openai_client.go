package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"

	"axon/internal/config"
	"axon/internal/logging"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
// Local runtimes (Ollama, LM Studio, llama.cpp server) expose this protocol.
type OpenAIClient struct {
	api      *openai.Client
	model    string
	maxTok   int
	temp     float32
	gate     *semaphore.Weighted
	logger   logging.Logger
}

// NewOpenAIClient builds the client from the LLM section of the runtime config.
func NewOpenAIClient(cfg config.LLMConfig, logger logging.Logger) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		api:    openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		maxTok: cfg.MaxTokens,
		temp:   float32(cfg.Temperature),
		gate:   semaphore.NewWeighted(1),
		logger: logging.OrNop(logger),
	}
}

// Generate implements Client.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	var messages []openai.ChatCompletionMessage
	if opts.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	return c.complete(ctx, messages, opts.MaxTokens, opts.Temperature)
}

// NewSession implements Client. Sessions do not reserve the model: each turn
// queues on the gate like any other call, so tools that re-enter the LLM
// (workflows-as-tools, run_built_workflow) can complete while a session is
// open. Transcript replay keeps the session's context intact regardless of
// interleaving.
func (c *OpenAIClient) NewSession(ctx context.Context, systemPrompt string) (Session, error) {
	s := &chatSession{client: c}
	if systemPrompt != "" {
		s.transcript = append(s.transcript, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	return s, nil
}

// complete serializes every model call on the weighted-1 gate. The gate is
// held per call, never across a session, so re-entrant LLM use cannot
// deadlock.
func (c *OpenAIClient) complete(ctx context.Context, messages []openai.ChatCompletionMessage, maxTokens int, temperature float32) (string, error) {
	if err := c.gate.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire llm: %w", err)
	}
	defer c.gate.Release(1)

	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}
	if temperature <= 0 {
		temperature = c.temp
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// chatSession carries the running transcript of an orchestrator loop. The
// persistent-context semantics are implemented as a replayed transcript over
// the stateless completions API, which is observably equivalent.
type chatSession struct {
	client     *OpenAIClient
	transcript []openai.ChatCompletionMessage
}

func (s *chatSession) Prompt(ctx context.Context, prompt string, opts PromptOptions) (string, error) {
	s.transcript = append(s.transcript, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	reply, err := s.client.complete(ctx, s.transcript, opts.MaxTokens, opts.Temperature)
	if err != nil {
		return "", err
	}

	s.transcript = append(s.transcript, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: reply,
	})
	return reply, nil
}

func (s *chatSession) Close() {}
