package templates

import (
	"testing"

	"axon/internal/workflow"
)

func TestLoadCatalog(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	list := c.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 templates, got %d", len(list))
	}
	for _, id := range []string{"simple-chat", "web-summary", "workflow-builder"} {
		tpl, ok := c.Get(id)
		if !ok {
			t.Fatalf("template %s missing", id)
		}
		if tpl.Name == "" || tpl.Description == "" || len(tpl.Nodes) == 0 {
			t.Fatalf("template %s incomplete: %+v", id, tpl)
		}
	}
	if _, ok := c.Get("nope"); ok {
		t.Fatal("unknown id must not resolve")
	}
}

func TestBuilderTemplateWiring(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tpl, ok := c.Get("workflow-builder")
	if !ok {
		t.Fatal("workflow-builder missing")
	}

	var toolEdges, taskEdges int
	for _, e := range tpl.Edges {
		switch {
		case e.IsToolAttachment():
			if e.Target != "orchestrator-1" {
				t.Fatalf("tool edge %s must target the orchestrator", e.ID)
			}
			toolEdges++
		case e.TargetHandle == "task":
			taskEdges++
		}
	}
	if toolEdges != 6 {
		t.Fatalf("expected 6 attached builder tools, got %d", toolEdges)
	}
	if taskEdges != 1 {
		t.Fatalf("expected 1 task edge, got %d", taskEdges)
	}

	doc := tpl.Document()
	orch, ok := doc.Node("orchestrator-1")
	if !ok || orch.Data.Type != "ai-orchestrator" {
		t.Fatalf("orchestrator node missing: %+v", orch)
	}
}

func TestDocumentIsAClone(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tpl, _ := c.Get("simple-chat")

	doc := tpl.Document()
	doc.Nodes[0].Data.Config["text"] = "mutated"
	doc.Nodes = append(doc.Nodes, workflow.Node{ID: "extra"})

	fresh := tpl.Document()
	if fresh.Nodes[0].Data.Config["text"] == "mutated" {
		t.Fatal("template config must not be shared with documents")
	}
	if len(fresh.Nodes) != len(tpl.Nodes) {
		t.Fatal("template node list must not grow")
	}
}
