package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"axon/internal/engine"
	"axon/internal/logging"
	"axon/internal/templates"
	"axon/internal/workflow"
	"axon/internal/workflow/store"
	"axon/internal/workflowtool"
)

// CommandResult is the outcome of one dispatched command.
type CommandResult struct {
	Success bool   `json:"success"`
	Result  string `json:"result"`
}

// canvasState is the per-session workflow the chat commands mutate.
type canvasState struct {
	Nodes  []workflow.Node `json:"nodes"`
	Edges  []workflow.Edge `json:"edges"`
	NextID int             `json:"next_id"`
}

// CommandExecutor processes the action records extracted from chat replies
// against a per-session canvas.
type CommandExecutor struct {
	mu     sync.Mutex
	states map[string]*canvasState

	store     *store.Store
	engine    *engine.Engine
	templates *templates.Catalog
	logger    logging.Logger
}

// NewCommandExecutor creates the executor.
func NewCommandExecutor(st *store.Store, eng *engine.Engine, catalog *templates.Catalog, logger logging.Logger) *CommandExecutor {
	return &CommandExecutor{
		states:    make(map[string]*canvasState),
		store:     st,
		engine:    eng,
		templates: catalog,
		logger:    logging.OrNop(logger),
	}
}

// Execute dispatches one command for the given session. The lock covers the
// whole canvas mutation so concurrent commands on one session cannot race
// against each other or against Workflow.
func (e *CommandExecutor) Execute(ctx context.Context, sessionID string, cmd Command) CommandResult {
	e.mu.Lock()
	state, ok := e.states[sessionID]
	if !ok {
		state = &canvasState{}
		e.states[sessionID] = state
	}

	// run snapshots its document under the lock, then executes without it so
	// a long workflow cannot stall every other session's commands.
	if cmd.Action() == "run" {
		doc, failure := e.resolveRunDocument(state, cmd)
		e.mu.Unlock()
		if doc == nil {
			return failure
		}
		return e.runDocument(ctx, doc)
	}
	defer e.mu.Unlock()

	switch cmd.Action() {
	case "addNode":
		return e.addNode(state, cmd)
	case "connect":
		return e.connect(state, cmd)
	case "clear":
		*state = canvasState{}
		return CommandResult{Success: true, Result: "Canvas cleared"}
	case "loadTemplate":
		return e.loadTemplate(state, cmd)
	case "getWorkflow":
		data, err := json.Marshal(state)
		if err != nil {
			return CommandResult{Success: false, Result: fmt.Sprintf("serialize failed: %v", err)}
		}
		return CommandResult{Success: true, Result: string(data)}
	case "saveWorkflow":
		return e.saveWorkflow(state, cmd)
	case "loadWorkflow":
		return e.loadWorkflow(state, cmd)
	case "listWorkflows":
		return e.listWorkflows()
	case "deleteWorkflow":
		id := cmd.String("id")
		if err := e.store.Delete(id); err != nil {
			return CommandResult{Success: false, Result: fmt.Sprintf("Workflow not found: %s", id)}
		}
		return CommandResult{Success: true, Result: fmt.Sprintf("Deleted workflow %s", id)}
	case "renameWorkflow":
		id, name := cmd.String("id"), cmd.String("name")
		if name == "" {
			return CommandResult{Success: false, Result: "renameWorkflow requires name"}
		}
		if _, err := e.store.Rename(id, name); err != nil {
			return CommandResult{Success: false, Result: fmt.Sprintf("Workflow not found: %s", id)}
		}
		return CommandResult{Success: true, Result: fmt.Sprintf("Renamed workflow %s to %q", id, name)}
	default:
		return CommandResult{Success: false, Result: "Unknown action: " + cmd.Action()}
	}
}

// Workflow returns the session's current canvas as a document.
func (e *CommandExecutor) Workflow(sessionID string) *workflow.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.states[sessionID]
	if !ok {
		state = &canvasState{}
	}
	doc := &workflow.Document{ID: "chat-canvas", Name: "Chat Canvas", Nodes: state.Nodes, Edges: state.Edges}
	return doc.Clone()
}

func (e *CommandExecutor) addNode(state *canvasState, cmd Command) CommandResult {
	typeID := cmd.String("type")
	if typeID == "" {
		return CommandResult{Success: false, Result: "addNode requires type"}
	}
	label := cmd.String("label")
	if label == "" {
		label = typeID
	}
	config, _ := cmd["config"].(map[string]any)

	id := fmt.Sprintf("node_%d", state.NextID)
	state.NextID++
	state.Nodes = append(state.Nodes, workflow.Node{
		ID:       id,
		Type:     "custom",
		Position: workflow.Position{X: float64(150 + 200*(len(state.Nodes))), Y: 200},
		Data:     workflow.NodeData{Label: label, Type: typeID, Config: config},
	})
	return CommandResult{Success: true, Result: fmt.Sprintf("Added node %q (%s)", label, id)}
}

func (e *CommandExecutor) connect(state *canvasState, cmd Command) CommandResult {
	from, to := cmd.String("from"), cmd.String("to")
	if from == "" || to == "" {
		return CommandResult{Success: false, Result: "connect requires from and to"}
	}
	state.Edges = append(state.Edges, workflow.Edge{
		ID:           fmt.Sprintf("edge_%d", time.Now().UnixMilli()),
		Source:       from,
		Target:       to,
		SourceHandle: cmd.String("sourceHandle"),
		TargetHandle: cmd.String("targetHandle"),
	})
	return CommandResult{Success: true, Result: fmt.Sprintf("Connected %s → %s", from, to)}
}

func (e *CommandExecutor) loadTemplate(state *canvasState, cmd Command) CommandResult {
	id := cmd.String("id")
	tpl, ok := e.templates.Get(id)
	if !ok {
		return CommandResult{Success: false, Result: fmt.Sprintf("Template not found: %s", id)}
	}
	doc := tpl.Document()
	state.Nodes = doc.Nodes
	state.Edges = doc.Edges
	state.NextID = maxNodeSuffix(doc.Nodes) + 1
	return CommandResult{Success: true, Result: summarizeNodes(tpl.Name, doc.Nodes)}
}

// resolveRunDocument picks the run target while the caller holds the lock.
// A nil document means the CommandResult carries the failure.
func (e *CommandExecutor) resolveRunDocument(state *canvasState, cmd Command) (*workflow.Document, CommandResult) {
	var doc *workflow.Document
	if templateID := cmd.String("templateId"); templateID != "" {
		tpl, ok := e.templates.Get(templateID)
		if !ok {
			return nil, CommandResult{Success: false, Result: fmt.Sprintf("Template not found: %s", templateID)}
		}
		doc = tpl.Document()
	} else {
		doc = (&workflow.Document{ID: "chat-canvas", Name: "Chat Canvas", Nodes: state.Nodes, Edges: state.Edges}).Clone()
	}

	if len(doc.Nodes) == 0 {
		return nil, CommandResult{Success: false, Result: "Nothing to run: canvas is empty"}
	}
	return doc, CommandResult{}
}

func (e *CommandExecutor) runDocument(ctx context.Context, doc *workflow.Document) CommandResult {
	result := e.engine.Execute(ctx, doc, nil)
	if !result.Success {
		return CommandResult{Success: false, Result: "Workflow failed: " + result.Error}
	}
	return CommandResult{Success: true, Result: "Workflow result: " + workflowtool.ExtractResult(doc, result.Outputs)}
}

func (e *CommandExecutor) saveWorkflow(state *canvasState, cmd Command) CommandResult {
	name := cmd.String("name")
	if name == "" {
		return CommandResult{Success: false, Result: "saveWorkflow requires name"}
	}
	saved, err := e.store.Save(name, state.Nodes, state.Edges, cmd.String("description"), "")
	if err != nil {
		return CommandResult{Success: false, Result: fmt.Sprintf("Save failed: %v", err)}
	}
	return CommandResult{Success: true, Result: fmt.Sprintf("Saved %q (%s)", name, saved.ID)}
}

func (e *CommandExecutor) loadWorkflow(state *canvasState, cmd Command) CommandResult {
	id := cmd.String("id")
	saved, err := e.store.Get(id)
	if err != nil {
		return CommandResult{Success: false, Result: fmt.Sprintf("Workflow not found: %s", id)}
	}
	doc := saved.Document()
	state.Nodes = doc.Nodes
	state.Edges = doc.Edges
	state.NextID = maxNodeSuffix(doc.Nodes) + 1
	return CommandResult{Success: true, Result: summarizeNodes(saved.Name, doc.Nodes)}
}

func (e *CommandExecutor) listWorkflows() CommandResult {
	saved, err := e.store.List()
	if err != nil {
		return CommandResult{Success: false, Result: fmt.Sprintf("List failed: %v", err)}
	}
	if len(saved) == 0 {
		return CommandResult{Success: true, Result: "No saved workflows"}
	}
	lines := make([]string, 0, len(saved))
	for _, s := range saved {
		lines = append(lines, fmt.Sprintf("%s: %s (%d nodes)", s.ID, s.Name, len(s.Nodes)))
	}
	return CommandResult{Success: true, Result: strings.Join(lines, "\n")}
}

// maxNodeSuffix finds the highest numeric node_<n> suffix; non-numeric ids
// contribute zero.
func maxNodeSuffix(nodes []workflow.Node) int {
	max := -1
	for _, n := range nodes {
		idx := strings.LastIndex(n.ID, "_")
		suffix := 0
		if idx >= 0 {
			if v, err := strconv.Atoi(n.ID[idx+1:]); err == nil {
				suffix = v
			}
		}
		if suffix > max {
			max = suffix
		}
	}
	if max < 0 {
		return -1
	}
	return max
}

func summarizeNodes(name string, nodes []workflow.Node) string {
	lines := make([]string, 0, len(nodes)+1)
	lines = append(lines, fmt.Sprintf("Loaded %q with %d nodes:", name, len(nodes)))
	for _, n := range nodes {
		lines = append(lines, fmt.Sprintf("  %s (%s): %s", n.ID, n.Data.Type, n.Data.Label))
	}
	return strings.Join(lines, "\n")
}
