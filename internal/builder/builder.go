// Package builder holds the meta-workflow builder: a process-wide canvas
// state plus the six tools an orchestrator uses to construct, save, and run
// new workflows.
package builder

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"axon/internal/engine"
	"axon/internal/logging"
	"axon/internal/registry"
	"axon/internal/workflow"
	"axon/internal/workflow/store"
	"axon/internal/workflowtool"
)

// Builder owns the singleton canvas state mutated by the builder tools.
type Builder struct {
	mu         sync.Mutex
	nodes      []workflow.Node
	edges      []workflow.Edge
	nextNodeID int

	store  *store.Store
	engine *engine.Engine
	logger logging.Logger

	// OnSaved runs after save_built_workflow persists a document, letting
	// the core register the workflow as a callable tool.
	OnSaved func(saved *store.Saved)
}

// New creates a builder bound to the store and engine.
func New(st *store.Store, eng *engine.Engine, logger logging.Logger) *Builder {
	return &Builder{store: st, engine: eng, logger: logging.OrNop(logger)}
}

// Clear resets the canvas.
func (b *Builder) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes = nil
	b.edges = nil
	b.nextNodeID = 0
}

// AddNode appends a node and returns its id.
func (b *Builder) AddNode(typeID, label string, config map[string]any) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if label == "" {
		label = typeID
	}
	id := fmt.Sprintf("node_%d", b.nextNodeID)
	b.nextNodeID++

	b.nodes = append(b.nodes, workflow.Node{
		ID:       id,
		Type:     "custom",
		Position: workflow.Position{X: float64(150 + 250*(len(b.nodes))), Y: 200},
		Data:     workflow.NodeData{Label: label, Type: typeID, Config: config},
	})
	return id
}

// Connect appends an edge between two nodes. Identifiers resolve by id
// first, then by case-insensitive label.
func (b *Builder) Connect(from, to string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	source, ok := b.resolve(from)
	if !ok {
		return fmt.Errorf("source not found: %s", from)
	}
	target, ok := b.resolve(to)
	if !ok {
		return fmt.Errorf("target not found: %s", to)
	}

	// Tool nodes attach to an orchestrator through the reserved handle.
	targetHandle := ""
	if strings.HasPrefix(source.Data.Type, registry.ToolNodePrefix) && target.Data.Type == "ai-orchestrator" {
		targetHandle = workflow.ToolHandle
	}

	b.edges = append(b.edges, workflow.Edge{
		ID:           fmt.Sprintf("edge_%d", len(b.edges)),
		Source:       source.ID,
		Target:       target.ID,
		TargetHandle: targetHandle,
	})
	return nil
}

// Nodes returns a copy of the current canvas nodes.
func (b *Builder) Nodes() []workflow.Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]workflow.Node(nil), b.nodes...)
}

// Snapshot clones the canvas into an executable document.
func (b *Builder) Snapshot() *workflow.Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc := &workflow.Document{
		ID:    "built-workflow",
		Name:  "Built Workflow",
		Nodes: b.nodes,
		Edges: b.edges,
	}
	return doc.Clone()
}

// Save persists the canvas through the workflow store.
func (b *Builder) Save(name, description string) (*store.Saved, error) {
	doc := b.Snapshot()
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("no nodes to save")
	}
	if name == "" {
		name = "Built Workflow"
	}

	saved, err := b.store.Save(name, doc.Nodes, doc.Edges, description, "")
	if err != nil {
		return nil, err
	}
	if b.OnSaved != nil {
		b.OnSaved(saved)
	}
	return saved, nil
}

// Run executes the canvas and extracts the best result value.
func (b *Builder) Run(ctx context.Context) (string, error) {
	doc := b.Snapshot()
	if len(doc.Nodes) == 0 {
		return "", fmt.Errorf("no nodes to run")
	}

	result := b.engine.Execute(ctx, doc, nil)
	if !result.Success {
		return "", fmt.Errorf("workflow failed: %s", result.Error)
	}
	return workflowtool.ExtractResult(doc, result.Outputs), nil
}

func (b *Builder) resolve(ref string) (*workflow.Node, bool) {
	for i := range b.nodes {
		if b.nodes[i].ID == ref {
			return &b.nodes[i], true
		}
	}
	for i := range b.nodes {
		if strings.EqualFold(b.nodes[i].Data.Label, ref) {
			return &b.nodes[i], true
		}
	}
	return nil, false
}
