package plugins

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"axon/internal/registry"
)

func writePlugin(t *testing.T, root, name, manifest, script string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if script != "" {
		if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte(script), 0o755); err != nil {
			t.Fatalf("write script: %v", err)
		}
	}
}

const echoManifest = `{
  "id": "echo-plugin",
  "name": "Echo",
  "version": "1.0.0",
  "tools": [
    {
      "id": "plugin_echo",
      "name": "Plugin Echo",
      "description": "Echoes its input back",
      "file": "run.sh",
      "inputs": [
        {"name": "message", "type": "string", "description": "Text to echo", "required": true}
      ]
    }
  ]
}`

func TestLoadRegistersPluginTools(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "echo", echoManifest, "#!/bin/sh\necho '{\"echoed\": true}'\n")

	reg := registry.New(nil)
	loader := NewLoader(root, nil)
	if err := loader.Load(reg); err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(loader.Plugins()) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(loader.Plugins()))
	}
	tool, ok := reg.Tool("plugin_echo")
	if !ok {
		t.Fatal("plugin tool not registered")
	}
	if len(tool.InputSchema.Required) != 1 || tool.InputSchema.Required[0] != "message" {
		t.Fatalf("schema lost required fields: %+v", tool.InputSchema)
	}
	node, ok := reg.Node("tool-plugin_echo")
	if !ok {
		t.Fatal("plugin tool node not registered")
	}
	if node.Category != registry.CategoryPluginTools {
		t.Fatalf("unexpected category %q", node.Category)
	}

	summaries := loader.Summaries()
	if len(summaries) != 1 || summaries[0] != "plugin_echo: Echoes its input back" {
		t.Fatalf("unexpected summaries %v", summaries)
	}
}

func TestBrokenPluginsAreSkipped(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "good", echoManifest, "#!/bin/sh\necho ok\n")
	writePlugin(t, root, "bad-json", "{not json", "")
	writePlugin(t, root, "no-id", `{"name": "x", "tools": [{"id": "t", "file": "run.sh"}]}`, "")
	writePlugin(t, root, "no-tools", `{"id": "empty", "tools": []}`, "")

	reg := registry.New(nil)
	loader := NewLoader(root, nil)
	if err := loader.Load(reg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loader.Plugins()) != 1 {
		t.Fatalf("expected only the good plugin, got %d", len(loader.Plugins()))
	}
}

func TestLoadMissingDirectory(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "does-not-exist"), nil)
	if err := loader.Load(registry.New(nil)); err != nil {
		t.Fatalf("missing dir must not error: %v", err)
	}
	if len(loader.Plugins()) != 0 {
		t.Fatal("expected no plugins")
	}
}

func TestRunnerParsesJSONOutput(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "echo", echoManifest, "#!/bin/sh\ncat\n")

	reg := registry.New(nil)
	loader := NewLoader(root, nil)
	if err := loader.Load(reg); err != nil {
		t.Fatalf("load: %v", err)
	}
	tool, _ := reg.Tool("plugin_echo")

	result, err := tool.Execute(context.Background(), map[string]any{"message": "hi"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	decoded, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected decoded JSON, got %T", result)
	}
	input, ok := decoded["input"].(map[string]any)
	if !ok || input["message"] != "hi" {
		t.Fatalf("params not passed on stdin: %v", decoded)
	}
}

func TestRunnerRawStringOutput(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "echo", echoManifest, "#!/bin/sh\necho 'plain text output'\n")

	reg := registry.New(nil)
	loader := NewLoader(root, nil)
	if err := loader.Load(reg); err != nil {
		t.Fatalf("load: %v", err)
	}
	tool, _ := reg.Tool("plugin_echo")

	result, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result != "plain text output" {
		t.Fatalf("expected raw string, got %v", result)
	}
}

func TestRunnerFailureIncludesStderr(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "echo", echoManifest, "#!/bin/sh\necho 'boom' >&2\nexit 1\n")

	reg := registry.New(nil)
	loader := NewLoader(root, nil)
	if err := loader.Load(reg); err != nil {
		t.Fatalf("load: %v", err)
	}
	tool, _ := reg.Tool("plugin_echo")

	_, err := tool.Execute(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}
