package workflow

import (
	"regexp"
	"strings"
	"testing"
)

func TestEdgeIsToolAttachment(t *testing.T) {
	if !(Edge{TargetHandle: ToolHandle}).IsToolAttachment() {
		t.Fatal("tools handle must mark a tool attachment")
	}
	if (Edge{TargetHandle: "task"}).IsToolAttachment() {
		t.Fatal("data handle misdetected as tool attachment")
	}
	if (Edge{}).IsToolAttachment() {
		t.Fatal("empty handle misdetected as tool attachment")
	}
}

func TestDocumentNodeLookup(t *testing.T) {
	doc := &Document{Nodes: []Node{{ID: "a"}, {ID: "b"}}}

	n, ok := doc.Node("b")
	if !ok || n.ID != "b" {
		t.Fatalf("lookup failed: %v %v", n, ok)
	}
	if _, ok := doc.Node("missing"); ok {
		t.Fatal("missing node must not resolve")
	}
}

func TestDocumentValidate(t *testing.T) {
	valid := &Document{
		Nodes: []Node{{ID: "a"}, {ID: "b"}},
		Edges: []Edge{{ID: "e", Source: "a", Target: "b"}},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}

	cases := []struct {
		doc  *Document
		want string
	}{
		{&Document{Nodes: []Node{{ID: ""}}}, "node without id"},
		{&Document{Nodes: []Node{{ID: "a"}, {ID: "a"}}}, "duplicate node id"},
		{&Document{Nodes: []Node{{ID: "a"}}, Edges: []Edge{{ID: "e", Source: "x", Target: "a"}}}, `source "x" not found`},
		{&Document{Nodes: []Node{{ID: "a"}}, Edges: []Edge{{ID: "e", Source: "a", Target: "x"}}}, `target "x" not found`},
	}
	for i, tc := range cases {
		err := tc.doc.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("case %d: expected %q, got %v", i, tc.want, err)
		}
	}
}

func TestDocumentClone(t *testing.T) {
	doc := &Document{
		ID:    "d",
		Nodes: []Node{{ID: "a", Data: NodeData{Type: "text-input", Config: map[string]any{"text": "original"}}}},
	}

	clone := doc.Clone()
	clone.Nodes[0].Data.Config["text"] = "changed"

	if doc.Nodes[0].Data.Config["text"] != "original" {
		t.Fatal("clone must not share config maps")
	}
}

func TestNewIDShape(t *testing.T) {
	re := regexp.MustCompile(`^wf_\d+_[a-z0-9]{5}$`)
	for i := 0; i < 10; i++ {
		id := NewID()
		if !re.MatchString(id) {
			t.Fatalf("unexpected id shape %q", id)
		}
	}
}
