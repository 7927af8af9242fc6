// Package templates ships the built-in workflow templates, including the
// Workflow Builder meta-workflow, as embedded YAML.
package templates

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"axon/internal/workflow"
)

//go:embed templates.yaml
var rawTemplates []byte

// Template is a named, ready-to-run workflow document.
type Template struct {
	ID          string          `yaml:"id" json:"id"`
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description" json:"description"`
	Nodes       []workflow.Node `yaml:"nodes" json:"nodes"`
	Edges       []workflow.Edge `yaml:"edges" json:"edges"`
}

// Document clones the template into an executable document.
func (t *Template) Document() *workflow.Document {
	doc := &workflow.Document{ID: t.ID, Name: t.Name, Nodes: t.Nodes, Edges: t.Edges}
	return doc.Clone()
}

// Catalog is the read-only set of built-in templates.
type Catalog struct {
	ordered []*Template
	byID    map[string]*Template
}

// Load parses the embedded template manifest.
func Load() (*Catalog, error) {
	var manifest struct {
		Templates []*Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(rawTemplates, &manifest); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	c := &Catalog{byID: make(map[string]*Template, len(manifest.Templates))}
	for _, t := range manifest.Templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template without id")
		}
		c.ordered = append(c.ordered, t)
		c.byID[t.ID] = t
	}
	return c, nil
}

// List returns the templates in manifest order.
func (c *Catalog) List() []*Template {
	return append([]*Template(nil), c.ordered...)
}

// Get looks up a template by id.
func (c *Catalog) Get(id string) (*Template, bool) {
	t, ok := c.byID[id]
	return t, ok
}
