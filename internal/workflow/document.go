// Package workflow defines the workflow document model: a directed graph of
// typed node instances connected by port-level edges. Documents are immutable
// during one execution; mutation happens only through rebuild.
package workflow

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"
)

// ToolHandle is the reserved target handle marking an edge as a
// tool-attachment rather than dataflow.
const ToolHandle = "tools"

// Document is a complete workflow graph.
type Document struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Position is the opaque canvas placement carried for the GUI's benefit.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// NodeData holds the node's label, its registry type id, and configuration.
type NodeData struct {
	Label  string         `json:"label" yaml:"label"`
	Type   string         `json:"type" yaml:"type"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Node is a vertex of the graph. Type is always "custom"; the registry type
// lives in Data.Type.
type Node struct {
	ID       string   `json:"id" yaml:"id"`
	Type     string   `json:"type" yaml:"type"`
	Position Position `json:"position" yaml:"position"`
	Data     NodeData `json:"data" yaml:"data"`
}

// Edge is a directed arc between a source output port and a target input
// port. An empty SourceHandle means the source's first output port; an empty
// TargetHandle invokes smart port mapping at execution time.
type Edge struct {
	ID           string `json:"id" yaml:"id"`
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
}

// IsToolAttachment reports whether the edge attaches a tool node to an
// orchestrator instead of carrying data.
func (e Edge) IsToolAttachment() bool {
	return e.TargetHandle == ToolHandle
}

// Node returns the node with the given id.
func (d *Document) Node(id string) (*Node, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

// Validate checks that every edge endpoint resolves to a node of the
// document.
func (d *Document) Validate() error {
	ids := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node without id")
		}
		if ids[n.ID] {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		ids[n.ID] = true
	}
	for _, e := range d.Edges {
		if !ids[e.Source] {
			return fmt.Errorf("edge %q: source %q not found", e.ID, e.Source)
		}
		if !ids[e.Target] {
			return fmt.Errorf("edge %q: target %q not found", e.ID, e.Target)
		}
	}
	return nil
}

// Clone deep-copies the document so callers can mutate configs without
// touching the stored original.
func (d *Document) Clone() *Document {
	data, err := json.Marshal(d)
	if err != nil {
		// The document is plain JSON data; marshal cannot fail in practice.
		copied := *d
		return &copied
	}
	var out Document
	if err := json.Unmarshal(data, &out); err != nil {
		copied := *d
		return &copied
	}
	return &out
}

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewID generates a workflow id in the wf_<ms>_<rand5> form.
func NewID() string {
	suffix := make([]byte, 5)
	for i := range suffix {
		suffix[i] = idAlphabet[rand.Intn(len(idAlphabet))]
	}
	return fmt.Sprintf("wf_%d_%s", time.Now().UnixMilli(), suffix)
}
