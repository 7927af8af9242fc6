package chat

import (
	"context"
	"strings"
	"sync"
	"testing"

	"axon/internal/engine"
	"axon/internal/llm"
	"axon/internal/nodes"
	"axon/internal/registry"
	"axon/internal/templates"
	"axon/internal/workflow"
	"axon/internal/workflow/store"
)

func testExecutor(t *testing.T, llmClient llm.Client) (*CommandExecutor, *store.Store) {
	t.Helper()

	reg := registry.New(nil)
	if err := nodes.RegisterBuiltins(reg); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	eng := engine.New(reg, llmClient, nil)

	st, err := store.New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	catalog, err := templates.Load()
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}
	return NewCommandExecutor(st, eng, catalog, nil), st
}

func TestCommandAddNodeAndConnect(t *testing.T) {
	exec, _ := testExecutor(t, llm.NewStubClient())
	ctx := context.Background()

	r := exec.Execute(ctx, "s1", Command{"action": "addNode", "type": "text-input", "label": "Input"})
	if !r.Success || !strings.Contains(r.Result, `Added node "Input" (node_0)`) {
		t.Fatalf("addNode failed: %+v", r)
	}
	r = exec.Execute(ctx, "s1", Command{"action": "addNode", "type": "debug"})
	if !r.Success || !strings.Contains(r.Result, "node_1") {
		t.Fatalf("second addNode failed: %+v", r)
	}
	r = exec.Execute(ctx, "s1", Command{"action": "connect", "from": "node_0", "to": "node_1"})
	if !r.Success {
		t.Fatalf("connect failed: %+v", r)
	}

	doc := exec.Workflow("s1")
	if len(doc.Nodes) != 2 || len(doc.Edges) != 1 {
		t.Fatalf("expected 2 nodes 1 edge, got %d/%d", len(doc.Nodes), len(doc.Edges))
	}
	if doc.Edges[0].Source != "node_0" || doc.Edges[0].Target != "node_1" {
		t.Fatalf("unexpected edge %+v", doc.Edges[0])
	}
}

func TestCommandCanvasesAreSessionScoped(t *testing.T) {
	exec, _ := testExecutor(t, llm.NewStubClient())
	ctx := context.Background()

	exec.Execute(ctx, "a", Command{"action": "addNode", "type": "debug"})
	if doc := exec.Workflow("b"); len(doc.Nodes) != 0 {
		t.Fatalf("session b must start empty, got %d nodes", len(doc.Nodes))
	}
}

func TestCommandClear(t *testing.T) {
	exec, _ := testExecutor(t, llm.NewStubClient())
	ctx := context.Background()

	exec.Execute(ctx, "s1", Command{"action": "addNode", "type": "debug"})
	r := exec.Execute(ctx, "s1", Command{"action": "clear"})
	if !r.Success || r.Result != "Canvas cleared" {
		t.Fatalf("clear failed: %+v", r)
	}
	if doc := exec.Workflow("s1"); len(doc.Nodes) != 0 {
		t.Fatal("canvas must be empty after clear")
	}
}

func TestCommandSaveAndLoadRoundTrip(t *testing.T) {
	exec, st := testExecutor(t, llm.NewStubClient())
	ctx := context.Background()

	exec.Execute(ctx, "s1", Command{"action": "addNode", "type": "text-input", "label": "A", "config": map[string]any{"text": "hi"}})
	exec.Execute(ctx, "s1", Command{"action": "addNode", "type": "debug", "label": "B"})
	exec.Execute(ctx, "s1", Command{"action": "connect", "from": "node_0", "to": "node_1"})

	r := exec.Execute(ctx, "s1", Command{"action": "saveWorkflow", "name": "My Flow"})
	if !r.Success || !strings.Contains(r.Result, `Saved "My Flow"`) {
		t.Fatalf("save failed: %+v", r)
	}

	saved, err := st.List()
	if err != nil || len(saved) != 1 {
		t.Fatalf("expected 1 saved workflow, got %v %v", saved, err)
	}

	exec.Execute(ctx, "s1", Command{"action": "clear"})
	r = exec.Execute(ctx, "s1", Command{"action": "loadWorkflow", "id": saved[0].ID})
	if !r.Success {
		t.Fatalf("load failed: %+v", r)
	}

	doc := exec.Workflow("s1")
	if len(doc.Nodes) != 2 || len(doc.Edges) != 1 {
		t.Fatalf("round trip lost graph: %d/%d", len(doc.Nodes), len(doc.Edges))
	}
	if doc.Nodes[0].Data.Config["text"] != "hi" {
		t.Fatalf("config lost in round trip: %v", doc.Nodes[0].Data.Config)
	}

	// Loaded ids are node_0/node_1, so the next node continues at node_2.
	r = exec.Execute(ctx, "s1", Command{"action": "addNode", "type": "debug"})
	if !strings.Contains(r.Result, "node_2") {
		t.Fatalf("expected node_2 after load, got %+v", r)
	}
}

func TestCommandLoadTemplate(t *testing.T) {
	exec, _ := testExecutor(t, llm.NewStubClient())
	ctx := context.Background()

	r := exec.Execute(ctx, "s1", Command{"action": "loadTemplate", "id": "simple-chat"})
	if !r.Success || !strings.Contains(r.Result, "Simple Chat") {
		t.Fatalf("loadTemplate failed: %+v", r)
	}
	if doc := exec.Workflow("s1"); len(doc.Nodes) != 3 {
		t.Fatalf("expected 3 template nodes, got %d", len(doc.Nodes))
	}

	r = exec.Execute(ctx, "s1", Command{"action": "loadTemplate", "id": "nope"})
	if r.Success {
		t.Fatalf("unknown template must fail: %+v", r)
	}
}

func TestCommandRunTemplate(t *testing.T) {
	exec, _ := testExecutor(t, llm.NewStubClient("Paris"))
	ctx := context.Background()

	r := exec.Execute(ctx, "s1", Command{"action": "run", "templateId": "simple-chat"})
	if !r.Success {
		t.Fatalf("run failed: %+v", r)
	}
	if !strings.Contains(r.Result, "Workflow result: Paris") {
		t.Fatalf("expected chat result, got %q", r.Result)
	}
}

func TestCommandRunEmptyCanvas(t *testing.T) {
	exec, _ := testExecutor(t, llm.NewStubClient())

	r := exec.Execute(context.Background(), "s1", Command{"action": "run"})
	if r.Success || !strings.Contains(r.Result, "canvas is empty") {
		t.Fatalf("expected empty canvas failure, got %+v", r)
	}
}

func TestCommandWorkflowManagement(t *testing.T) {
	exec, st := testExecutor(t, llm.NewStubClient())
	ctx := context.Background()

	exec.Execute(ctx, "s1", Command{"action": "addNode", "type": "debug"})
	exec.Execute(ctx, "s1", Command{"action": "saveWorkflow", "name": "First"})
	saved, _ := st.List()
	id := saved[0].ID

	r := exec.Execute(ctx, "s1", Command{"action": "listWorkflows"})
	if !r.Success || !strings.Contains(r.Result, "First") {
		t.Fatalf("list failed: %+v", r)
	}

	r = exec.Execute(ctx, "s1", Command{"action": "renameWorkflow", "id": id, "name": "Renamed"})
	if !r.Success || !strings.Contains(r.Result, `"Renamed"`) {
		t.Fatalf("rename failed: %+v", r)
	}

	r = exec.Execute(ctx, "s1", Command{"action": "deleteWorkflow", "id": id})
	if !r.Success {
		t.Fatalf("delete failed: %+v", r)
	}
	if left, _ := st.List(); len(left) != 0 {
		t.Fatalf("expected empty store, got %d", len(left))
	}
}

func TestCommandUnknownAction(t *testing.T) {
	exec, _ := testExecutor(t, llm.NewStubClient())

	r := exec.Execute(context.Background(), "s1", Command{"action": "teleport"})
	if r.Success || r.Result != "Unknown action: teleport" {
		t.Fatalf("expected unknown action failure, got %+v", r)
	}
}

func TestCommandConcurrentMutations(t *testing.T) {
	exec, _ := testExecutor(t, llm.NewStubClient())
	ctx := context.Background()

	const workers = 8
	const perWorker = 20

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				exec.Execute(ctx, "shared", Command{"action": "addNode", "type": "debug"})
				exec.Workflow("shared")
			}
		}()
	}
	wg.Wait()

	doc := exec.Workflow("shared")
	if len(doc.Nodes) != workers*perWorker {
		t.Fatalf("expected %d nodes, got %d", workers*perWorker, len(doc.Nodes))
	}

	seen := map[string]bool{}
	for _, n := range doc.Nodes {
		if seen[n.ID] {
			t.Fatalf("duplicate node id %s", n.ID)
		}
		seen[n.ID] = true
	}
}

func TestMaxNodeSuffix(t *testing.T) {
	cases := []struct {
		nodes []workflow.Node
		want  int
	}{
		{nil, -1},
		{[]workflow.Node{{ID: "node_0"}, {ID: "node_5"}}, 5},
		{[]workflow.Node{{ID: "abc"}, {ID: "node_2"}}, 2},
		{[]workflow.Node{{ID: "abc"}}, 0},
	}
	for i, tc := range cases {
		if got := maxNodeSuffix(tc.nodes); got != tc.want {
			t.Fatalf("case %d: expected %d, got %d", i, tc.want, got)
		}
	}
}
