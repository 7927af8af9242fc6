// Package nodes installs the built-in node types and tools: data sources,
// LLM invocations, HTTP and file I/O, debug sinks, and the tool nodes an
// orchestrator can call.
package nodes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"axon/internal/llm"
	"axon/internal/registry"
)

const httpTimeout = 30 * time.Second

// RegisterBuiltins installs the eager node set. The orchestrator node is
// registered separately (see RegisterOrchestratorNode) because it needs the
// orchestrator subsystem.
func RegisterBuiltins(reg *registry.Registry) error {
	types := []*registry.NodeType{
		triggerNode(),
		textInputNode(),
		aiChatNode(),
		aiTransformNode(),
		debugNode(),
		httpRequestNode(),
		fileReadNode(),
		fileWriteNode(),
		jsonParseNode(),
		loopNode(),
	}
	for _, nt := range types {
		if err := reg.RegisterNode(nt); err != nil {
			return err
		}
	}
	return RegisterBuiltinTools(reg)
}

func triggerNode() *registry.NodeType {
	return &registry.NodeType{
		ID:       "trigger",
		Name:     "Trigger",
		Category: registry.CategoryTrigger,
		Outputs:  []registry.Port{{ID: "trigger", Name: "Trigger", Type: "boolean"}},
		Execute: func(ctx *registry.ExecContext, inputs, config map[string]any) (map[string]any, error) {
			return map[string]any{"trigger": true}, nil
		},
	}
}

func textInputNode() *registry.NodeType {
	return &registry.NodeType{
		ID:       "text-input",
		Name:     "Text Input",
		Category: registry.CategoryData,
		Outputs:  []registry.Port{{ID: "text", Name: "Text", Type: "string"}},
		ConfigSchema: map[string]any{
			"text": map[string]any{"type": "string", "description": "The text to emit"},
		},
		Execute: func(ctx *registry.ExecContext, inputs, config map[string]any) (map[string]any, error) {
			return map[string]any{"text": cfgString(config, "text")}, nil
		},
	}
}

func aiChatNode() *registry.NodeType {
	return &registry.NodeType{
		ID:       "ai-chat",
		Name:     "AI Chat",
		Category: registry.CategoryAI,
		Inputs:   []registry.Port{{ID: "prompt", Name: "Prompt", Type: "string"}},
		Outputs:  []registry.Port{{ID: "response", Name: "Response", Type: "string"}},
		ConfigSchema: map[string]any{
			"systemPrompt": map[string]any{"type": "string"},
			"maxTokens":    map[string]any{"type": "number"},
			"temperature":  map[string]any{"type": "number"},
		},
		Execute: func(ctx *registry.ExecContext, inputs, config map[string]any) (map[string]any, error) {
			prompt := asString(firstInput(inputs, "prompt", "input", "text"))
			if prompt == "" {
				prompt = cfgString(config, "prompt")
			}
			if prompt == "" {
				return nil, fmt.Errorf("ai-chat: no prompt")
			}

			response, err := ctx.LLM.Generate(ctx.Context, prompt, llm.GenerateOptions{
				SystemPrompt: cfgString(config, "systemPrompt"),
				MaxTokens:    cfgInt(config, "maxTokens", 0),
				Temperature:  float32(cfgFloat(config, "temperature", 0)),
			})
			if err != nil {
				return nil, fmt.Errorf("ai-chat: %w", err)
			}
			return map[string]any{"response": response}, nil
		},
	}
}

func aiTransformNode() *registry.NodeType {
	return &registry.NodeType{
		ID:       "ai-transform",
		Name:     "AI Transform",
		Category: registry.CategoryAI,
		Inputs:   []registry.Port{{ID: "input", Name: "Input", Type: "string"}},
		Outputs:  []registry.Port{{ID: "output", Name: "Output", Type: "string"}},
		ConfigSchema: map[string]any{
			"instruction": map[string]any{"type": "string"},
			"maxTokens":   map[string]any{"type": "number"},
		},
		Execute: func(ctx *registry.ExecContext, inputs, config map[string]any) (map[string]any, error) {
			input := asString(firstInput(inputs, "input", "text", "prompt"))
			instruction := cfgString(config, "instruction")
			if instruction == "" {
				instruction = "Transform the input."
			}

			prompt := fmt.Sprintf("%s\n\nInput:\n%s", instruction, input)
			response, err := ctx.LLM.Generate(ctx.Context, prompt, llm.GenerateOptions{
				MaxTokens: cfgInt(config, "maxTokens", 0),
			})
			if err != nil {
				return nil, fmt.Errorf("ai-transform: %w", err)
			}
			return map[string]any{"output": response}, nil
		},
	}
}

func debugNode() *registry.NodeType {
	return &registry.NodeType{
		ID:       "debug",
		Name:     "Debug",
		Category: registry.CategoryOutput,
		Inputs:   []registry.Port{{ID: "input", Name: "Input", Type: "any"}},
		Execute: func(ctx *registry.ExecContext, inputs, config map[string]any) (map[string]any, error) {
			rendered, err := json.Marshal(inputs)
			if err != nil {
				rendered = []byte(fmt.Sprint(inputs))
			}
			ctx.Log(fmt.Sprintf("DEBUG: %s", rendered))
			return map[string]any{"logged": true, "data": inputs["input"]}, nil
		},
	}
}

func httpRequestNode() *registry.NodeType {
	return &registry.NodeType{
		ID:       "http-request",
		Name:     "HTTP Request",
		Category: registry.CategoryData,
		Inputs: []registry.Port{
			{ID: "url", Name: "URL", Type: "string"},
			{ID: "body", Name: "Body", Type: "string"},
		},
		Outputs: []registry.Port{
			{ID: "response", Name: "Response", Type: "string"},
			{ID: "status", Name: "Status", Type: "number"},
		},
		ConfigSchema: map[string]any{
			"url":    map[string]any{"type": "string"},
			"method": map[string]any{"type": "string"},
		},
		Execute: func(ctx *registry.ExecContext, inputs, config map[string]any) (map[string]any, error) {
			url := asString(firstInput(inputs, "url"))
			if url == "" {
				url = cfgString(config, "url")
			}
			if url == "" {
				return nil, fmt.Errorf("http-request: no url")
			}

			method := strings.ToUpper(cfgString(config, "method"))
			if method == "" {
				method = http.MethodGet
			}

			var body io.Reader
			if raw := asString(firstInput(inputs, "body")); raw != "" {
				body = bytes.NewBufferString(raw)
			} else if raw := cfgString(config, "body"); raw != "" {
				body = bytes.NewBufferString(raw)
			}

			req, err := http.NewRequestWithContext(ctx.Context, method, url, body)
			if err != nil {
				return nil, fmt.Errorf("http-request: %w", err)
			}
			if headers, ok := config["headers"].(map[string]any); ok {
				for k, v := range headers {
					req.Header.Set(k, asString(v))
				}
			}
			if body != nil && req.Header.Get("Content-Type") == "" {
				req.Header.Set("Content-Type", "application/json")
			}

			client := &http.Client{Timeout: httpTimeout}
			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("http-request: %w", err)
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, fmt.Errorf("http-request: read body: %w", err)
			}
			return map[string]any{"response": string(data), "status": resp.StatusCode}, nil
		},
	}
}

func fileReadNode() *registry.NodeType {
	return &registry.NodeType{
		ID:       "file-read",
		Name:     "File Read",
		Category: registry.CategoryData,
		Outputs:  []registry.Port{{ID: "content", Name: "Content", Type: "string"}},
		ConfigSchema: map[string]any{
			"path": map[string]any{"type": "string"},
		},
		Execute: func(ctx *registry.ExecContext, inputs, config map[string]any) (map[string]any, error) {
			path := cfgString(config, "path")
			if path == "" {
				path = asString(firstInput(inputs, "path", "input"))
			}
			if path == "" {
				return nil, fmt.Errorf("file-read: no path")
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("file-read: %w", err)
			}
			return map[string]any{"content": string(data)}, nil
		},
	}
}

func fileWriteNode() *registry.NodeType {
	return &registry.NodeType{
		ID:       "file-write",
		Name:     "File Write",
		Category: registry.CategoryOutput,
		Inputs:   []registry.Port{{ID: "content", Name: "Content", Type: "string"}},
		Outputs: []registry.Port{
			{ID: "written", Name: "Written", Type: "boolean"},
			{ID: "path", Name: "Path", Type: "string"},
		},
		ConfigSchema: map[string]any{
			"path": map[string]any{"type": "string"},
		},
		Execute: func(ctx *registry.ExecContext, inputs, config map[string]any) (map[string]any, error) {
			path := cfgString(config, "path")
			if path == "" {
				return nil, fmt.Errorf("file-write: no path")
			}
			content := asString(firstInput(inputs, "content", "input", "text"))
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return nil, fmt.Errorf("file-write: %w", err)
			}
			ctx.Log(fmt.Sprintf("Wrote %d bytes to %s", len(content), path))
			return map[string]any{"written": true, "path": path}, nil
		},
	}
}

func jsonParseNode() *registry.NodeType {
	return &registry.NodeType{
		ID:       "json-parse",
		Name:     "JSON Parse",
		Category: registry.CategoryData,
		Inputs:   []registry.Port{{ID: "input", Name: "Input", Type: "string"}},
		Outputs:  []registry.Port{{ID: "output", Name: "Output", Type: "any"}},
		ConfigSchema: map[string]any{
			"path": map[string]any{"type": "string", "description": "Dot path into the parsed value"},
		},
		Execute: func(ctx *registry.ExecContext, inputs, config map[string]any) (map[string]any, error) {
			raw := asString(firstInput(inputs, "input", "text"))
			var parsed any
			if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
				return nil, fmt.Errorf("json-parse: %w", err)
			}
			if path := cfgString(config, "path"); path != "" {
				parsed = digPath(parsed, path)
			}
			return map[string]any{"output": parsed}, nil
		},
	}
}

func loopNode() *registry.NodeType {
	return &registry.NodeType{
		ID:       "loop",
		Name:     "Loop",
		Category: registry.CategoryData,
		Inputs:   []registry.Port{{ID: "input", Name: "Input", Type: "any"}},
		Outputs: []registry.Port{
			{ID: "items", Name: "Items", Type: "array"},
			{ID: "count", Name: "Count", Type: "number"},
			{ID: "last", Name: "Last", Type: "any"},
		},
		Execute: func(ctx *registry.ExecContext, inputs, config map[string]any) (map[string]any, error) {
			value := firstInput(inputs, "input", "items", "text")

			var items []any
			switch v := value.(type) {
			case []any:
				items = v
			case string:
				if err := json.Unmarshal([]byte(v), &items); err != nil {
					// Not a JSON array; treat each line as one item.
					for _, line := range strings.Split(v, "\n") {
						if line = strings.TrimSpace(line); line != "" {
							items = append(items, line)
						}
					}
				}
			case nil:
			default:
				items = []any{v}
			}

			var last any
			if len(items) > 0 {
				last = items[len(items)-1]
			}
			return map[string]any{"items": items, "count": len(items), "last": last}, nil
		},
	}
}

// digPath walks a dot-separated path through maps and arrays.
func digPath(value any, path string) any {
	for _, part := range strings.Split(path, ".") {
		switch v := value.(type) {
		case map[string]any:
			value = v[part]
		case []any:
			var idx int
			if _, err := fmt.Sscanf(part, "%d", &idx); err == nil && idx >= 0 && idx < len(v) {
				value = v[idx]
			} else {
				return nil
			}
		default:
			return nil
		}
	}
	return value
}
