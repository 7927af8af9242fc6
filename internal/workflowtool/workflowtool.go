// Package workflowtool wraps saved workflows as callable tools and extracts
// a single "result" string from an execution's outputs.
package workflowtool

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"axon/internal/engine"
	"axon/internal/orchestrator"
	"axon/internal/registry"
	"axon/internal/workflow"
	"axon/internal/workflow/store"
)

type depthKey struct{}

// DefaultMaxDepth bounds re-entrant workflows-as-tools so two saved
// workflows referencing each other cannot recurse forever.
const DefaultMaxDepth = 8

var sanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

// ToolName derives the registry name for a saved workflow.
func ToolName(workflowID string) string {
	return "workflow_" + sanitizeRe.ReplaceAllString(strings.ToLower(workflowID), "_")
}

// Register wraps the saved workflow as a tool plus a discoverable tool node.
// The tool accepts an optional "task" parameter that is injected into the
// workflow's first text-input node.
func Register(reg *registry.Registry, eng *engine.Engine, saved *store.Saved, maxDepth int, registerToolNode func(*registry.Registry, *registry.Tool) error) error {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	description := saved.Description
	if description == "" {
		description = fmt.Sprintf("Run the %q workflow", saved.Name)
	}

	tool := &registry.Tool{
		Name:        ToolName(saved.ID),
		Description: description,
		InputSchema: registry.InputSchema{
			Type: "object",
			Properties: map[string]registry.Property{
				"task": {Type: "string", Description: "Input injected into the workflow's text-input node"},
			},
		},
		Execute: func(ctx context.Context, params map[string]any) (any, error) {
			depth, _ := ctx.Value(depthKey{}).(int)
			if depth >= maxDepth {
				return nil, fmt.Errorf("workflow tool recursion limit reached (%d)", maxDepth)
			}
			ctx = context.WithValue(ctx, depthKey{}, depth+1)

			doc := saved.Document()
			if task, ok := params["task"].(string); ok && task != "" {
				InjectTask(doc, task)
			}

			result := eng.Execute(ctx, doc, nil)
			if !result.Success {
				return nil, fmt.Errorf("workflow %s failed: %s", saved.ID, result.Error)
			}
			return map[string]any{"result": ExtractResult(doc, result.Outputs)}, nil
		},
	}

	if err := reg.RegisterTool(tool); err != nil {
		return err
	}
	if registerToolNode != nil {
		return registerToolNode(reg, tool)
	}
	return nil
}

// InjectTask overwrites the text of the document's first text-input node.
func InjectTask(doc *workflow.Document, task string) {
	for i := range doc.Nodes {
		if doc.Nodes[i].Data.Type == "text-input" {
			if doc.Nodes[i].Data.Config == nil {
				doc.Nodes[i].Data.Config = map[string]any{}
			}
			doc.Nodes[i].Data.Config["text"] = task
			return
		}
	}
}

// ExtractResult picks the best single result string from a finished run,
// preferring orchestrator results, then AI node responses, then debug
// output, then any non-trivial node output.
func ExtractResult(doc *workflow.Document, outputs map[string]map[string]any) string {
	byType := func(types ...string) []*workflow.Node {
		var matched []*workflow.Node
		for i := range doc.Nodes {
			for _, t := range types {
				if doc.Nodes[i].Data.Type == t {
					matched = append(matched, &doc.Nodes[i])
				}
			}
		}
		return matched
	}

	for _, n := range byType("ai-orchestrator") {
		out := outputs[n.ID]
		if s, ok := out["result"].(string); ok && s != "" {
			return s
		}
		if final := finalResultOf(out["memory"]); final != "" {
			return final
		}
	}

	for _, n := range byType("ai-chat", "ai-transform") {
		out := outputs[n.ID]
		if s, ok := out["response"].(string); ok && s != "" {
			return s
		}
		if s, ok := out["output"].(string); ok && s != "" {
			return s
		}
	}

	for _, n := range byType("debug") {
		if out := outputs[n.ID]; len(out) > 0 {
			if data, err := json.Marshal(out); err == nil {
				return string(data)
			}
		}
	}

	last := ""
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		if n.Data.Type == "trigger" || n.Data.Type == "text-input" {
			continue
		}
		if out := outputs[n.ID]; len(out) > 0 {
			if data, err := json.Marshal(out); err == nil && string(data) != "{}" {
				last = string(data)
			}
		}
	}
	if last != "" {
		return last
	}

	return "Workflow completed"
}

func finalResultOf(memory any) string {
	switch m := memory.(type) {
	case *orchestrator.Memory:
		return m.FinalResult
	case orchestrator.Memory:
		return m.FinalResult
	case map[string]any:
		if s, ok := m["final_result"].(string); ok {
			return s
		}
	}
	return ""
}
