// Package registry holds the process-wide catalogs of node types and callable
// tools. Both share the MCP-style schema vocabulary (name, description,
// JSON-schema inputs) so the orchestrator and the plugin loader can present a
// uniform view.
package registry

import (
	"context"

	"axon/internal/llm"
)

// Category classifies a node type for the canvas palette.
type Category string

const (
	CategoryTrigger     Category = "trigger"
	CategoryAI          Category = "ai"
	CategoryData        Category = "data"
	CategoryOutput      Category = "output"
	CategoryTool        Category = "tool"
	CategoryPluginTools Category = "plugin-tools"
)

// Reserved config keys injected by the engine into orchestrator nodes.
const (
	ConfigConnectedTools = "_connected_tools"
	ConfigToolNodeMap    = "_tool_node_map"
	ConfigSendProgress   = "_send_progress"
)

// SendProgressFunc is the shape of the progress callback injected under
// ConfigSendProgress, already bound to the receiving node's id.
type SendProgressFunc func(status string, data any)

// ToolNodePrefix marks node types that never execute in dataflow; they exist
// to advertise a tool schema to an orchestrator they are attached to.
const ToolNodePrefix = "tool-"

// Port declares one named input or output of a node type.
type Port struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Property describes one parameter of a tool's input schema.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// InputSchema is a JSON-schema object constraining tool parameters.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// ToolSchema is the discoverable description a tool node advertises.
type ToolSchema struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// ExecContext carries the collaborators an executing node may use.
type ExecContext struct {
	Context    context.Context
	LLM        llm.Client
	WorkflowID string

	// Log appends a line to the execution log; each line is timestamped by
	// the engine.
	Log func(msg string)

	// SendProgress emits a node-progress event to the active sink.
	SendProgress func(nodeID, status string, data any)
}

// ExecuteFunc runs a node: resolved inputs and raw config in, per-port
// outputs out.
type ExecuteFunc func(ctx *ExecContext, inputs map[string]any, config map[string]any) (map[string]any, error)

// NodeType defines one entry of the node catalog.
type NodeType struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Category     Category       `json:"category"`
	Inputs       []Port         `json:"inputs"`
	Outputs      []Port         `json:"outputs"`
	ConfigSchema map[string]any `json:"config_schema,omitempty"`
	Execute      ExecuteFunc    `json:"-"`

	// ToolSchema is set on tool nodes only.
	ToolSchema *ToolSchema `json:"tool_schema,omitempty"`
}

// IsToolNode reports whether the type is excluded from dataflow execution.
func (nt *NodeType) IsToolNode() bool {
	return len(nt.ID) > len(ToolNodePrefix) && nt.ID[:len(ToolNodePrefix)] == ToolNodePrefix
}

// ToolFunc executes a tool call with already-validated parameters.
type ToolFunc func(ctx context.Context, params map[string]any) (any, error)

// Tool is a named, schema-described callable available to an orchestrator.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
	Execute     ToolFunc    `json:"-"`
}

// Schema returns the tool's discoverable description.
func (t *Tool) Schema() ToolSchema {
	return ToolSchema{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
}
