// Package plugins loads external tools from a plugin directory. A plugin is a
// subdirectory with a manifest.json describing one or more tools, each backed
// by an executable that speaks JSON over stdin/stdout.
package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"axon/internal/logging"
	"axon/internal/registry"
)

// execTimeout bounds a single plugin tool invocation.
const execTimeout = 60 * time.Second

// Manifest is the on-disk description of a plugin.
type Manifest struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description,omitempty"`
	Tools       []ManifestTool `json:"tools"`
}

// ManifestTool describes one tool a plugin provides.
type ManifestTool struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	File        string          `json:"file"`
	Inputs      []ManifestInput `json:"inputs,omitempty"`
}

// ManifestInput declares one tool parameter.
type ManifestInput struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Plugin is a loaded manifest plus its directory.
type Plugin struct {
	Manifest Manifest
	Dir      string
}

// Loader discovers plugins and registers their tools.
type Loader struct {
	dir     string
	logger  logging.Logger
	plugins []*Plugin
}

// NewLoader creates a loader rooted at dir. A missing directory is not an
// error; Load simply finds nothing.
func NewLoader(dir string, logger logging.Logger) *Loader {
	return &Loader{dir: dir, logger: logging.OrNop(logger)}
}

// Load scans the plugin directory and registers every declared tool, both as
// a callable tool and as a canvas tool node. Broken plugins are logged and
// skipped so one bad manifest cannot take down startup.
func (l *Loader) Load(reg *registry.Registry) error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read plugin dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(l.dir, entry.Name())
		plugin, err := loadManifest(dir)
		if err != nil {
			l.logger.Warn("Skipping plugin %s: %v", entry.Name(), err)
			continue
		}
		if err := l.register(reg, plugin); err != nil {
			l.logger.Warn("Skipping plugin %s: %v", plugin.Manifest.ID, err)
			continue
		}
		l.plugins = append(l.plugins, plugin)
		l.logger.Info("Loaded plugin %s v%s (%d tools)", plugin.Manifest.ID, plugin.Manifest.Version, len(plugin.Manifest.Tools))
	}
	return nil
}

// Plugins returns the successfully loaded plugins.
func (l *Loader) Plugins() []*Plugin {
	return append([]*Plugin(nil), l.plugins...)
}

// Summaries renders one line per loaded tool for prompt building.
func (l *Loader) Summaries() []string {
	var out []string
	for _, p := range l.plugins {
		for _, t := range p.Manifest.Tools {
			out = append(out, fmt.Sprintf("%s: %s", t.ID, t.Description))
		}
	}
	return out
}

func loadManifest(dir string) (*Plugin, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("manifest without id")
	}
	if len(m.Tools) == 0 {
		return nil, fmt.Errorf("manifest declares no tools")
	}
	for _, t := range m.Tools {
		if t.ID == "" || t.File == "" {
			return nil, fmt.Errorf("tool entry requires id and file")
		}
	}
	return &Plugin{Manifest: m, Dir: dir}, nil
}

func (l *Loader) register(reg *registry.Registry, plugin *Plugin) error {
	for _, mt := range plugin.Manifest.Tools {
		tool := &registry.Tool{
			Name:        mt.ID,
			Description: mt.Description,
			InputSchema: schemaFromInputs(mt.Inputs),
			Execute:     l.runner(filepath.Join(plugin.Dir, mt.File)),
		}
		if err := reg.RegisterTool(tool); err != nil {
			return err
		}
		schema := tool.Schema()
		nt := &registry.NodeType{
			ID:         registry.ToolNodePrefix + tool.Name,
			Name:       mt.Name,
			Category:   registry.CategoryPluginTools,
			ToolSchema: &schema,
			Execute: func(ctx *registry.ExecContext, inputs, config map[string]any) (map[string]any, error) {
				return map[string]any{}, nil
			},
		}
		if err := reg.RegisterNode(nt); err != nil {
			return err
		}
	}
	return nil
}

// runner produces a ToolFunc that executes the plugin binary with the call
// parameters as {"input": ...} on stdin and parses JSON from stdout. Output
// that is not JSON is returned as a raw string.
func (l *Loader) runner(path string) registry.ToolFunc {
	return func(ctx context.Context, params map[string]any) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, execTimeout)
		defer cancel()

		payload, err := json.Marshal(map[string]any{"input": params})
		if err != nil {
			return nil, fmt.Errorf("encode plugin input: %w", err)
		}

		cmd := exec.CommandContext(ctx, path)
		cmd.Stdin = bytes.NewReader(payload)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if stderr.Len() > 0 {
				return nil, fmt.Errorf("plugin %s: %v: %s", filepath.Base(path), err, stderr.String())
			}
			return nil, fmt.Errorf("plugin %s: %w", filepath.Base(path), err)
		}

		out := bytes.TrimSpace(stdout.Bytes())
		var decoded any
		if err := json.Unmarshal(out, &decoded); err != nil {
			return string(out), nil
		}
		return decoded, nil
	}
}

func schemaFromInputs(inputs []ManifestInput) registry.InputSchema {
	schema := registry.InputSchema{Type: "object", Properties: map[string]registry.Property{}}
	for _, in := range inputs {
		typ := in.Type
		if typ == "" {
			typ = "string"
		}
		schema.Properties[in.Name] = registry.Property{Type: typ, Description: in.Description}
		if in.Required {
			schema.Required = append(schema.Required, in.Name)
		}
	}
	return schema
}
