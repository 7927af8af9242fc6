// Package orchestrator drives the bounded ReAct loop: it prompts an LLM
// session for ACTION/INPUT/DONE directives, dispatches tool calls through the
// registry, and feeds observations back into the conversation.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"axon/internal/llm"
	"axon/internal/logging"
	"axon/internal/registry"
)

// Status is the terminal state of an orchestrator run.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Step records one Reason-Act-Observe iteration.
type Step struct {
	Thought   string         `json:"thought,omitempty"`
	Action    string         `json:"action,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	Result    any            `json:"result,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Memory is the persistent record of a run.
type Memory struct {
	Task        string `json:"task"`
	Steps       []Step `json:"steps"`
	Status      Status `json:"status"`
	FinalResult string `json:"final_result,omitempty"`
}

// Event names the callback notifications fired during a run.
type Event string

const (
	EventThought      Event = "thought"
	EventAction       Event = "action"
	EventResult       Event = "result"
	EventToolComplete Event = "tool-complete"
	EventComplete     Event = "complete"
	EventError        Event = "error"
)

// EventCallback observes loop progress. Callbacks are best-effort: a panic
// inside one never aborts the loop.
type EventCallback func(event Event, data any)

// Config bounds and scopes one run.
type Config struct {
	MaxSteps     int
	EnabledTools []string
	SystemPrompt string
}

const (
	defaultMaxSteps  = 10
	stepMaxTokens    = 200
	stepTemperature  = 0.1
	continuePrompt   = "Continue. Use a tool or say DONE."
)

// Orchestrator runs ReAct loops against the tool registry.
type Orchestrator struct {
	registry *registry.Registry
	llm      llm.Client
	logger   logging.Logger
	metrics  *Metrics
}

// New creates an orchestrator.
func New(reg *registry.Registry, llmClient llm.Client, logger logging.Logger) *Orchestrator {
	return &Orchestrator{
		registry: reg,
		llm:      llmClient,
		logger:   logging.OrNop(logger),
		metrics:  defaultMetrics(),
	}
}

// ResolveEnabledTools applies the enabled-tools rule to an orchestrator node
// config: connected tool attachments win; otherwise the comma-separated
// "tools" config string is intersected with the live registry.
func ResolveEnabledTools(cfg map[string]any, reg *registry.Registry) []string {
	if schemas, ok := cfg[registry.ConfigConnectedTools].([]registry.ToolSchema); ok && len(schemas) > 0 {
		names := make([]string, 0, len(schemas))
		for _, s := range schemas {
			names = append(names, s.Name)
		}
		return names
	}

	raw, _ := cfg["tools"].(string)
	var names []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if _, ok := reg.Tool(name); ok {
			names = append(names, name)
		}
	}
	return names
}

// Run executes the bounded loop and returns its memory. The LLM session is
// held for the whole loop and always released on exit.
func (o *Orchestrator) Run(ctx context.Context, task string, cfg Config, events EventCallback) *Memory {
	memory := &Memory{Task: task, Status: StatusInProgress}
	emit := func(event Event, data any) {
		if events == nil {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				o.logger.Warn("Orchestrator callback panic on %s: %v", event, r)
			}
		}()
		events(event, data)
	}

	if len(cfg.EnabledTools) == 0 {
		memory.Status = StatusError
		memory.FinalResult = "no tools enabled"
		emit(EventError, memory.FinalResult)
		return memory
	}

	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}

	session, err := o.llm.NewSession(ctx, o.systemPrompt(cfg))
	if err != nil {
		memory.Status = StatusError
		memory.FinalResult = fmt.Sprintf("failed to open LLM session: %v", err)
		emit(EventError, memory.FinalResult)
		o.metrics.runsTotal.WithLabelValues(string(StatusError)).Inc()
		return memory
	}
	defer session.Close()

	o.logger.Info("Orchestrator starting: task=%q tools=%v maxSteps=%d", task, cfg.EnabledTools, maxSteps)

	enabled := map[string]bool{}
	for _, name := range cfg.EnabledTools {
		enabled[name] = true
	}

	next := "Task: " + task
	for i := 0; i < maxSteps; i++ {
		response, err := session.Prompt(ctx, next, llm.PromptOptions{MaxTokens: stepMaxTokens, Temperature: stepTemperature})
		if err != nil {
			memory.Status = StatusError
			memory.FinalResult = fmt.Sprintf("LLM error: %v", err)
			emit(EventError, memory.FinalResult)
			o.metrics.runsTotal.WithLabelValues(string(StatusError)).Inc()
			return memory
		}

		directive := ParseDirective(response)
		step := Step{Thought: directive.Thought, Timestamp: time.Now()}
		if directive.Thought != "" {
			emit(EventThought, directive.Thought)
		}

		if directive.HasDone && !directive.HasAction {
			memory.Steps = append(memory.Steps, step)
			memory.Status = StatusComplete
			memory.FinalResult = directive.Done
			emit(EventComplete, memory.FinalResult)
			o.metrics.stepsTotal.Add(float64(len(memory.Steps)))
			o.metrics.runsTotal.WithLabelValues(string(StatusComplete)).Inc()
			return memory
		}

		if directive.HasAction {
			step.Action = directive.Action
			step.Input = directive.Input
			emit(EventAction, map[string]any{"action": directive.Action, "input": directive.Input})
			next = o.dispatch(ctx, &step, directive, enabled, cfg.EnabledTools, emit)
		} else {
			next = continuePrompt
		}

		memory.Steps = append(memory.Steps, step)
	}

	memory.Status = StatusComplete
	lastThought := ""
	for i := len(memory.Steps) - 1; i >= 0; i-- {
		if memory.Steps[i].Thought != "" {
			lastThought = memory.Steps[i].Thought
			break
		}
	}
	memory.FinalResult = "Reached maximum steps. Last progress: " + lastThought
	emit(EventComplete, memory.FinalResult)
	o.metrics.stepsTotal.Add(float64(len(memory.Steps)))
	o.metrics.runsTotal.WithLabelValues(string(StatusComplete)).Inc()
	return memory
}

// dispatch runs one tool call and returns the next prompt for the model.
// Tool failures are recovered and surfaced to the model as ERROR: lines.
func (o *Orchestrator) dispatch(ctx context.Context, step *Step, directive Directive, enabled map[string]bool, enabledList []string, emit func(Event, any)) string {
	name := directive.Action

	if !enabled[name] {
		available := append([]string(nil), enabledList...)
		sort.Strings(available)
		msg := fmt.Sprintf("Tool %q not enabled. Available: %s", name, strings.Join(available, ", "))
		step.Result = map[string]any{"error": msg}
		o.metrics.toolCalls.WithLabelValues(name, "rejected").Inc()
		return "ERROR: " + msg
	}

	tool, ok := o.registry.Tool(name)
	if !ok {
		msg := "tool not found"
		step.Result = map[string]any{"error": msg}
		o.metrics.toolCalls.WithLabelValues(name, "missing").Inc()
		available := append([]string(nil), enabledList...)
		sort.Strings(available)
		return fmt.Sprintf("ERROR: Tool %q not found. Available: %s", name, strings.Join(available, ", "))
	}

	params := directive.Input
	if params == nil {
		params = map[string]any{}
	}
	if err := o.registry.ValidateParams(name, params); err != nil {
		step.Result = map[string]any{"error": err.Error()}
		o.metrics.toolCalls.WithLabelValues(name, "invalid").Inc()
		return "ERROR: " + err.Error()
	}

	result, err := tool.Execute(ctx, params)
	if err != nil {
		step.Result = map[string]any{"error": err.Error()}
		emit(EventResult, map[string]any{"action": name, "error": err.Error()})
		o.metrics.toolCalls.WithLabelValues(name, "error").Inc()
		return "ERROR: " + err.Error()
	}

	step.Result = result
	emit(EventToolComplete, map[string]any{"action": name, "result": result})
	emit(EventResult, result)
	o.metrics.toolCalls.WithLabelValues(name, "success").Inc()

	encoded, err := json.Marshal(result)
	if err != nil {
		return "RESULT: " + fmt.Sprint(result)
	}
	return "RESULT: " + string(encoded)
}

// systemPrompt assembles the session preamble: the tool inventory followed by
// the literal directive protocol.
func (o *Orchestrator) systemPrompt(cfg Config) string {
	var b strings.Builder
	if cfg.SystemPrompt != "" {
		b.WriteString(cfg.SystemPrompt)
		b.WriteString("\n\n")
	} else {
		b.WriteString("You are an autonomous agent. Complete the task using the available tools.\n\n")
	}

	b.WriteString("Available tools:\n")
	b.WriteString(o.registry.ToolDescriptionsForPrompt(cfg.EnabledTools))
	b.WriteString("\nUse EXACTLY ONE of the following formats per turn:\n")
	b.WriteString("ACTION: <tool name>\nINPUT: <json parameters>\n")
	b.WriteString("OR\n")
	b.WriteString("DONE: <final answer>\n")
	b.WriteString("\nAfter an ACTION, wait for a RESULT: reply before proceeding.\n")
	return b.String()
}
