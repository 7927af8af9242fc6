package chat

import (
	"context"
	"fmt"
	"strings"

	"axon/internal/builder"
	"axon/internal/engine"
	"axon/internal/llm"
	"axon/internal/logging"
	"axon/internal/orchestrator"
	"axon/internal/templates"
	"axon/internal/workflow"
	"axon/internal/workflow/store"
	"axon/internal/workflowtool"
)

// Response is the result of one chat turn.
type Response struct {
	SessionID      string          `json:"sessionId"`
	Response       string          `json:"response"`
	Commands       []Command       `json:"commands,omitempty"`
	CommandResults []CommandResult `json:"commandResults,omitempty"`
	BuildResult    *BuildResult    `json:"buildResult,omitempty"`
}

// BuildResult reports a build-intent turn.
type BuildResult struct {
	Success       bool        `json:"success"`
	Result        string      `json:"result,omitempty"`
	Error         string      `json:"error,omitempty"`
	BuiltWorkflow *BuiltGraph `json:"builtWorkflow,omitempty"`
}

// BuiltGraph is the graph produced by the builder meta-workflow.
type BuiltGraph struct {
	Nodes []workflow.Node `json:"nodes"`
	Edges []workflow.Edge `json:"edges"`
}

const chatMaxTokens = 600

// Dispatcher routes chat messages: build requests go through the builder
// meta-workflow, everything else through freeform generation with command
// extraction.
type Dispatcher struct {
	sessions  *SessionManager
	commands  *CommandExecutor
	llm       llm.Client
	engine    *engine.Engine
	store     *store.Store
	builder   *builder.Builder
	templates *templates.Catalog
	logger    logging.Logger

	// PluginSummaries lists loaded plugin tools for the system prompt.
	PluginSummaries []string

	builderWorkflowID string
}

// NewDispatcher wires the chat surface.
func NewDispatcher(sessions *SessionManager, commands *CommandExecutor, llmClient llm.Client, eng *engine.Engine, st *store.Store, bld *builder.Builder, catalog *templates.Catalog, logger logging.Logger) *Dispatcher {
	return &Dispatcher{
		sessions:  sessions,
		commands:  commands,
		llm:       llmClient,
		engine:    eng,
		store:     st,
		builder:   bld,
		templates: catalog,
		logger:    logging.OrNop(logger),
	}
}

// Sessions exposes the session manager to the transports.
func (d *Dispatcher) Sessions() *SessionManager { return d.sessions }

// Commands exposes the command executor to the transports.
func (d *Dispatcher) Commands() *CommandExecutor { return d.commands }

// Chat handles one message. An unknown or expired session id transparently
// gets a fresh session.
func (d *Dispatcher) Chat(ctx context.Context, sessionID, message string, executeCommands bool) (*Response, error) {
	session, ok := d.sessions.Get(sessionID)
	if !ok {
		session = d.sessions.Create()
	}
	d.sessions.Append(session, "user", message)

	if IsBuildRequest(message) {
		return d.handleBuild(ctx, session, message)
	}
	return d.handleFreeform(ctx, session, message, executeCommands)
}

// buildVerbs and buildObjects drive intent detection: a message must contain
// one of each.
var (
	buildVerbs   = []string{"build", "create", "make", "generate", "design", "new workflow", "workflow that", "workflow to", "set up", "setup", "construct"}
	buildObjects = []string{"workflow", "workflo", "flow", "automation", "pipeline", "translator", "generator", "maker", "converter"}
)

// IsBuildRequest detects "build me a workflow" intent.
func IsBuildRequest(message string) bool {
	m := strings.ToLower(message)
	verb := false
	for _, v := range buildVerbs {
		if strings.Contains(m, v) {
			verb = true
			break
		}
	}
	if !verb {
		return false
	}
	for _, o := range buildObjects {
		if strings.Contains(m, o) {
			return true
		}
	}
	return false
}

func (d *Dispatcher) handleBuild(ctx context.Context, session *Session, message string) (*Response, error) {
	doc, err := d.builderWorkflow()
	if err != nil {
		d.logger.Error("Build request without builder workflow: %v", err)
		response := "I can't build workflows right now: the builder workflow is not installed."
		d.sessions.Append(session, "assistant", response)
		return &Response{
			SessionID:   session.ID,
			Response:    response,
			BuildResult: &BuildResult{Success: false, Error: err.Error()},
		}, nil
	}

	workflowtool.InjectTask(doc, buildPrompt(message))

	execResult := d.engine.Execute(ctx, doc, nil)

	snapshot := d.builder.Snapshot()
	built := &BuiltGraph{Nodes: snapshot.Nodes, Edges: snapshot.Edges}

	if !execResult.Success {
		response := "I couldn't build that workflow: " + execResult.Error
		d.sessions.Append(session, "assistant", response)
		return &Response{
			SessionID:   session.ID,
			Response:    response,
			BuildResult: &BuildResult{Success: false, Error: execResult.Error, BuiltWorkflow: built},
		}, nil
	}

	result := extractBuildResult(doc, execResult.Outputs)
	response := "I've built your workflow! " + result
	d.sessions.Append(session, "assistant", response)
	return &Response{
		SessionID:   session.ID,
		Response:    response,
		BuildResult: &BuildResult{Success: true, Result: result, BuiltWorkflow: built},
	}, nil
}

// builderWorkflow locates the saved builder meta-workflow: the first saved
// workflow whose name contains "workflow builder". Its id is cached.
func (d *Dispatcher) builderWorkflow() (*workflow.Document, error) {
	if d.builderWorkflowID != "" {
		if saved, err := d.store.Get(d.builderWorkflowID); err == nil {
			return saved.Document(), nil
		}
		d.builderWorkflowID = ""
	}

	saved, err := d.store.List()
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	for _, s := range saved {
		if strings.Contains(strings.ToLower(s.Name), "workflow builder") {
			d.builderWorkflowID = s.ID
			return s.Document(), nil
		}
	}
	return nil, fmt.Errorf("builder workflow not found")
}

// buildPrompt wraps the user request in the explicit stepwise build script.
func buildPrompt(message string) string {
	return fmt.Sprintf(`Build a workflow for this request: %q

Follow these steps exactly, one tool call per turn:
1. Call clear_canvas.
2. Call add_node with type "text-input", label "Input", and config_text holding the input the workflow should start from.
3. Call add_node with type "ai-chat", label "AI", and config_systemPrompt describing what the AI should do for this request.
4. Call add_node with type "debug", label "Output".
5. Call connect_nodes with from_node_id "node_0" and to_node_id "node_1".
6. Call connect_nodes with from_node_id "node_1" and to_node_id "node_2".
7. Reply DONE: with a one-sentence description of the workflow you built.`, message)
}

// extractBuildResult prefers the orchestrator's result output, then its
// memory's final result.
func extractBuildResult(doc *workflow.Document, outputs map[string]map[string]any) string {
	for i := range doc.Nodes {
		if doc.Nodes[i].Data.Type != "ai-orchestrator" {
			continue
		}
		out := outputs[doc.Nodes[i].ID]
		if s, ok := out["result"].(string); ok && s != "" {
			return s
		}
		if mem, ok := out["memory"].(*orchestrator.Memory); ok && mem.FinalResult != "" {
			return mem.FinalResult
		}
	}
	return "Workflow built"
}

func (d *Dispatcher) handleFreeform(ctx context.Context, session *Session, message string, executeCommands bool) (*Response, error) {
	prompt := d.renderTranscript(session)

	reply, err := d.llm.Generate(ctx, prompt, llm.GenerateOptions{
		SystemPrompt: d.systemPrompt(),
		MaxTokens:    chatMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("chat generation: %w", err)
	}

	commands := ExtractCommands(reply)
	var results []CommandResult
	if executeCommands {
		for _, cmd := range commands {
			results = append(results, d.commands.Execute(ctx, session.ID, cmd))
		}
	}

	d.sessions.Append(session, "assistant", reply)
	return &Response{
		SessionID:      session.ID,
		Response:       reply,
		Commands:       commands,
		CommandResults: results,
	}, nil
}

// renderTranscript flattens the recent conversation into the prompt; the
// last user turn is already part of the session.
func (d *Dispatcher) renderTranscript(session *Session) string {
	messages := session.Messages
	if len(messages) > 10 {
		messages = messages[len(messages)-10:]
	}
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}

func (d *Dispatcher) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are the assistant of a local workflow automation tool. ")
	b.WriteString("You can answer questions and emit canvas commands.\n\n")

	b.WriteString("Available templates:\n")
	for _, t := range d.templates.List() {
		fmt.Fprintf(&b, "- %s: %s\n", t.ID, t.Description)
	}

	if len(d.PluginSummaries) > 0 {
		b.WriteString("\nLoaded plugins:\n")
		for _, p := range d.PluginSummaries {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	b.WriteString(`
To manipulate the canvas, emit commands as JSON in a fenced block:
` + "```command\n" + `{"action":"addNode","type":"text-input","label":"Input"}
{"action":"connect","from":"node_0","to":"node_1"}
` + "```\n" + `
Actions: addNode, connect, clear, loadTemplate, run, getWorkflow, saveWorkflow, loadWorkflow, listWorkflows, deleteWorkflow, renameWorkflow.
`)
	return b.String()
}
