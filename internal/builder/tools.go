package builder

import (
	"context"
	"fmt"
	"strings"

	"axon/internal/registry"
)

// RegisterTools installs the six builder tools, each with a tool-node
// counterpart so the builder meta-workflow can attach them to its
// orchestrator.
func (b *Builder) RegisterTools(reg *registry.Registry, registerToolNode func(*registry.Registry, *registry.Tool) error) error {
	tools := []*registry.Tool{
		b.clearCanvasTool(),
		b.addNodeTool(),
		b.connectNodesTool(),
		b.listNodesTool(),
		b.saveTool(),
		b.runTool(),
	}
	for _, t := range tools {
		if err := reg.RegisterTool(t); err != nil {
			return err
		}
		if registerToolNode != nil {
			if err := registerToolNode(reg, t); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Builder) clearCanvasTool() *registry.Tool {
	return &registry.Tool{
		Name:        "clear_canvas",
		Description: "Remove every node and edge from the canvas",
		InputSchema: registry.InputSchema{Type: "object", Properties: map[string]registry.Property{}},
		Execute: func(ctx context.Context, params map[string]any) (any, error) {
			b.Clear()
			return map[string]any{"cleared": true}, nil
		},
	}
}

func (b *Builder) addNodeTool() *registry.Tool {
	return &registry.Tool{
		Name:        "add_node",
		Description: "Add a node to the canvas",
		InputSchema: registry.InputSchema{
			Type: "object",
			Properties: map[string]registry.Property{
				"type":                {Type: "string", Description: "Node type id, e.g. text-input, ai-chat, debug"},
				"label":               {Type: "string", Description: "Display label"},
				"config_text":         {Type: "string", Description: "Sets config.text"},
				"config_systemPrompt": {Type: "string", Description: "Sets config.systemPrompt"},
				"config_tools":        {Type: "string", Description: "Sets config.tools (comma-separated)"},
			},
			Required: []string{"type"},
		},
		Execute: func(ctx context.Context, params map[string]any) (any, error) {
			typeID, _ := params["type"].(string)
			if typeID == "" {
				return nil, fmt.Errorf("type is required")
			}
			label, _ := params["label"].(string)

			config := map[string]any{}
			for param, key := range map[string]string{
				"config_text":         "text",
				"config_systemPrompt": "systemPrompt",
				"config_tools":        "tools",
			} {
				if v, ok := params[param]; ok && v != nil {
					config[key] = v
				}
			}

			id := b.AddNode(typeID, label, config)
			return map[string]any{"id": id, "type": typeID, "label": label}, nil
		},
	}
}

func (b *Builder) connectNodesTool() *registry.Tool {
	return &registry.Tool{
		Name:        "connect_nodes",
		Description: "Connect two nodes on the canvas",
		InputSchema: registry.InputSchema{
			Type: "object",
			Properties: map[string]registry.Property{
				"from_node_id": {Type: "string", Description: "Source node id or label"},
				"to_node_id":   {Type: "string", Description: "Target node id or label"},
			},
			Required: []string{"from_node_id", "to_node_id"},
		},
		Execute: func(ctx context.Context, params map[string]any) (any, error) {
			from, _ := params["from_node_id"].(string)
			to, _ := params["to_node_id"].(string)
			if err := b.Connect(from, to); err != nil {
				return nil, err
			}
			return map[string]any{"connected": fmt.Sprintf("%s -> %s", from, to)}, nil
		},
	}
}

func (b *Builder) listNodesTool() *registry.Tool {
	return &registry.Tool{
		Name:        "list_nodes",
		Description: "List the nodes currently on the canvas",
		InputSchema: registry.InputSchema{Type: "object", Properties: map[string]registry.Property{}},
		Execute: func(ctx context.Context, params map[string]any) (any, error) {
			nodes := b.Nodes()
			lines := make([]string, 0, len(nodes))
			for _, n := range nodes {
				lines = append(lines, fmt.Sprintf("%s (%s): %s", n.ID, n.Data.Type, n.Data.Label))
			}
			return map[string]any{"count": len(nodes), "nodes": strings.Join(lines, "\n")}, nil
		},
	}
}

func (b *Builder) saveTool() *registry.Tool {
	return &registry.Tool{
		Name:        "save_built_workflow",
		Description: "Save the canvas as a new workflow",
		InputSchema: registry.InputSchema{
			Type: "object",
			Properties: map[string]registry.Property{
				"name":        {Type: "string", Description: "Workflow name"},
				"description": {Type: "string", Description: "Optional description"},
			},
			Required: []string{"name"},
		},
		Execute: func(ctx context.Context, params map[string]any) (any, error) {
			name, _ := params["name"].(string)
			description, _ := params["description"].(string)
			saved, err := b.Save(name, description)
			if err != nil {
				return nil, err
			}
			return map[string]any{"id": saved.ID, "name": saved.Name}, nil
		},
	}
}

func (b *Builder) runTool() *registry.Tool {
	return &registry.Tool{
		Name:        "run_built_workflow",
		Description: "Execute the canvas and return its result",
		InputSchema: registry.InputSchema{Type: "object", Properties: map[string]registry.Property{}},
		Execute: func(ctx context.Context, params map[string]any) (any, error) {
			result, err := b.Run(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"result": result}, nil
		},
	}
}
