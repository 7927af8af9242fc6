package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"axon/internal/logging"
)

// Registry is the process-wide catalog of node types and tools. Registration
// is expected to complete before any execution starts; the engine only reads
// during a run.
type Registry struct {
	mu      sync.RWMutex
	nodes   map[string]*NodeType
	tools   map[string]*Tool
	schemas map[string]*jsonschema.Schema
	logger  logging.Logger
}

// New creates an empty registry.
func New(logger logging.Logger) *Registry {
	return &Registry{
		nodes:   make(map[string]*NodeType),
		tools:   make(map[string]*Tool),
		schemas: make(map[string]*jsonschema.Schema),
		logger:  logging.OrNop(logger),
	}
}

// RegisterNode installs a node type. Re-registration replaces the previous
// definition.
func (r *Registry) RegisterNode(nt *NodeType) error {
	if nt == nil || nt.ID == "" {
		return fmt.Errorf("node type requires an id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.nodes[nt.ID]; exists {
		r.logger.Debug("Replacing node type %s", nt.ID)
	}
	r.nodes[nt.ID] = nt
	return nil
}

// Node looks up a node type by id.
func (r *Registry) Node(typeID string) (*NodeType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nt, ok := r.nodes[typeID]
	return nt, ok
}

// ListNodes returns every node type, sorted by id.
func (r *Registry) ListNodes() []*NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*NodeType, 0, len(r.nodes))
	for _, nt := range r.nodes {
		out = append(out, nt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RegisterTool installs a tool, compiling its input schema for parameter
// validation. Registration is idempotent per name: the latter definition
// wins.
func (r *Registry) RegisterTool(t *Tool) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("tool requires a name")
	}
	compiled, err := compileSchema(t.Name, t.InputSchema)
	if err != nil {
		return fmt.Errorf("tool %s: %w", t.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		r.logger.Debug("Replacing tool %s", t.Name)
	}
	r.tools[t.Name] = t
	r.schemas[t.Name] = compiled
	return nil
}

// UnregisterTool removes a tool by name.
func (r *Registry) UnregisterTool(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	delete(r.schemas, name)
}

// Tool looks up a tool by name.
func (r *Registry) Tool(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// ListTools returns every tool, sorted by name.
func (r *Registry) ListTools() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ValidateParams checks tool parameters against the registered input schema.
func (r *Registry) ValidateParams(name string, params map[string]any) error {
	r.mu.RLock()
	schema := r.schemas[name]
	r.mu.RUnlock()
	if schema == nil {
		return nil
	}
	if params == nil {
		params = map[string]any{}
	}
	// Round-trip through JSON so typed values validate the same way a wire
	// payload would. UseNumber keeps integers out of float64, which the
	// validator needs for "integer" constraints.
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

// ToolDescriptionsForPrompt renders the enabled tools as the prompt fragment
// consumed by the orchestrator's system prompt. A nil filter includes every
// registered tool.
func (r *Registry) ToolDescriptionsForPrompt(names []string) string {
	tools := r.ListTools()
	include := map[string]bool{}
	for _, name := range names {
		include[name] = true
	}

	var b strings.Builder
	for _, t := range tools {
		if names != nil && !include[t.Name] {
			continue
		}
		fmt.Fprintf(&b, "• %s: %s\n", t.Name, t.Description)
		if len(t.InputSchema.Properties) > 0 {
			b.WriteString("  Parameters:\n")
			params := make([]string, 0, len(t.InputSchema.Properties))
			for name := range t.InputSchema.Properties {
				params = append(params, name)
			}
			sort.Strings(params)
			for _, name := range params {
				prop := t.InputSchema.Properties[name]
				desc := prop.Description
				if desc == "" {
					desc = prop.Type
				}
				fmt.Fprintf(&b, "    %s: %s\n", name, desc)
			}
		}
	}
	return b.String()
}

func compileSchema(name string, schema InputSchema) (*jsonschema.Schema, error) {
	if schema.Type == "" {
		schema.Type = "object"
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	url := "inmem://tools/" + name + ".json"
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}
