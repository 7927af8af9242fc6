package nodes

import (
	"fmt"

	"axon/internal/orchestrator"
	"axon/internal/registry"
)

// RegisterOrchestratorNode installs the AI Orchestrator node. It is
// registered apart from the built-in set because it closes over the
// orchestrator subsystem and, through it, the tool registry.
func RegisterOrchestratorNode(reg *registry.Registry, orch *orchestrator.Orchestrator, defaultMaxSteps int) error {
	return reg.RegisterNode(&registry.NodeType{
		ID:       "ai-orchestrator",
		Name:     "AI Orchestrator",
		Category: registry.CategoryAI,
		Inputs: []registry.Port{
			{ID: "task", Name: "Task", Type: "string"},
			{ID: "tools", Name: "Tools", Type: "tools"},
		},
		Outputs: []registry.Port{
			{ID: "result", Name: "Result", Type: "string"},
			{ID: "memory", Name: "Memory", Type: "object"},
			{ID: "status", Name: "Status", Type: "string"},
		},
		ConfigSchema: map[string]any{
			"task":         map[string]any{"type": "string"},
			"maxSteps":     map[string]any{"type": "number"},
			"tools":        map[string]any{"type": "string", "description": "Comma-separated tool names when none are attached"},
			"systemPrompt": map[string]any{"type": "string"},
		},
		Execute: func(ctx *registry.ExecContext, inputs, config map[string]any) (map[string]any, error) {
			task := asString(firstInput(inputs, "task", "input", "prompt", "text"))
			if task == "" {
				task = cfgString(config, "task")
			}
			if task == "" {
				return nil, fmt.Errorf("ai-orchestrator: no task")
			}

			sendProgress, _ := config[registry.ConfigSendProgress].(registry.SendProgressFunc)
			events := func(event orchestrator.Event, data any) {
				if sendProgress != nil {
					sendProgress("output", map[string]any{"event": string(event), "data": data})
				}
			}

			memory := orch.Run(ctx.Context, task, orchestrator.Config{
				MaxSteps:     cfgInt(config, "maxSteps", defaultMaxSteps),
				EnabledTools: orchestrator.ResolveEnabledTools(config, reg),
				SystemPrompt: cfgString(config, "systemPrompt"),
			}, events)

			ctx.Log(fmt.Sprintf("Orchestrator finished: status=%s steps=%d", memory.Status, len(memory.Steps)))
			return map[string]any{
				"result": memory.FinalResult,
				"memory": memory,
				"status": string(memory.Status),
			}, nil
		},
	})
}
