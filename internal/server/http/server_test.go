package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"axon/internal/builder"
	"axon/internal/chat"
	"axon/internal/engine"
	"axon/internal/llm"
	"axon/internal/nodes"
	"axon/internal/orchestrator"
	"axon/internal/registry"
	"axon/internal/templates"
	"axon/internal/workflow"
	"axon/internal/workflow/store"
)

func newTestServer(t *testing.T, llmClient llm.Client) (*Server, *store.Store) {
	t.Helper()

	reg := registry.New(nil)
	require.NoError(t, nodes.RegisterBuiltins(reg))
	eng := engine.New(reg, llmClient, nil)
	orch := orchestrator.New(reg, llmClient, nil)
	require.NoError(t, nodes.RegisterOrchestratorNode(reg, orch, 10))

	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	catalog, err := templates.Load()
	require.NoError(t, err)

	bld := builder.New(st, eng, nil)
	require.NoError(t, bld.RegisterTools(reg, nodes.RegisterToolNode))

	dispatcher := chat.NewDispatcher(
		chat.NewSessionManager(0, nil),
		chat.NewCommandExecutor(st, eng, catalog, nil),
		llmClient, eng, st, bld, catalog, nil,
	)

	srv := New(Config{Host: "127.0.0.1", Port: 0}, reg, eng, st, catalog, dispatcher, nil)
	srv.Routes()
	return srv, st
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	decoded := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), "body: %s", w.Body.String())
	}
	return w, decoded
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, llm.NewStubClient())

	w, body := doJSON(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", body["status"])
}

func TestListNodesAndTools(t *testing.T) {
	srv, _ := newTestServer(t, llm.NewStubClient())

	w, body := doJSON(t, srv, http.MethodGet, "/nodes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, body["nodes"])

	w, body = doJSON(t, srv, http.MethodGet, "/tools", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tools, ok := body["tools"].([]any)
	require.True(t, ok)

	var names []string
	for _, raw := range tools {
		names = append(names, raw.(map[string]any)["name"].(string))
	}
	require.Contains(t, names, "calculator")
	require.Contains(t, names, "add_node")
}

func TestExecuteTool(t *testing.T) {
	srv, _ := newTestServer(t, llm.NewStubClient())

	w, body := doJSON(t, srv, http.MethodPost, "/tools/calculator", map[string]any{"expression": "2+3"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["success"])
	result := body["result"].(map[string]any)
	require.EqualValues(t, 5, result["result"])

	w, _ = doJSON(t, srv, http.MethodPost, "/tools/no-such-tool", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	// Missing required parameter fails schema validation.
	w, body = doJSON(t, srv, http.MethodPost, "/tools/calculator", map[string]any{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, body["error"], "expression")
}

func TestTemplates(t *testing.T) {
	srv, _ := newTestServer(t, llm.NewStubClient())

	w, body := doJSON(t, srv, http.MethodGet, "/templates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["templates"], 3)

	w, body = doJSON(t, srv, http.MethodGet, "/templates/simple-chat", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Simple Chat", body["name"])

	w, _ = doJSON(t, srv, http.MethodGet, "/templates/nope", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunTemplate(t *testing.T) {
	srv, _ := newTestServer(t, llm.NewStubClient("Paris"))

	w, body := doJSON(t, srv, http.MethodPost, "/run", map[string]any{
		"templateId": "simple-chat",
		"params":     map[string]any{"task": "What is the capital of France?"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["success"])
	require.Equal(t, "Paris", body["result"])
	require.NotEmpty(t, body["logs"])
}

func TestRunRequiresTarget(t *testing.T) {
	srv, _ := newTestServer(t, llm.NewStubClient())

	w, body := doJSON(t, srv, http.MethodPost, "/run", map[string]any{})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, body["error"], "templateId or workflowId")
}

func TestRunSavedWorkflow(t *testing.T) {
	srv, st := newTestServer(t, llm.NewStubClient("bonjour"))

	saved, err := st.Save("Translator", []workflow.Node{
		{ID: "n1", Type: "custom", Data: workflow.NodeData{Label: "In", Type: "text-input", Config: map[string]any{"text": "hello"}}},
		{ID: "n2", Type: "custom", Data: workflow.NodeData{Label: "Chat", Type: "ai-chat"}},
	}, []workflow.Edge{{ID: "e1", Source: "n1", Target: "n2"}}, "", "")
	require.NoError(t, err)

	w, body := doJSON(t, srv, http.MethodPost, "/run", map[string]any{"workflowId": saved.ID})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "bonjour", body["result"])
}

func TestWorkflowCRUD(t *testing.T) {
	srv, _ := newTestServer(t, llm.NewStubClient())

	var savedCallbacks int
	srv.OnWorkflowSaved = func(saved *store.Saved) { savedCallbacks++ }

	create := map[string]any{
		"name":        "My Flow",
		"description": "test",
		"nodes": []map[string]any{
			{"id": "n1", "type": "custom", "data": map[string]any{"label": "In", "type": "text-input"}},
		},
		"edges": []map[string]any{},
	}
	w, body := doJSON(t, srv, http.MethodPost, "/workflows", create)
	require.Equal(t, http.StatusCreated, w.Code)
	id := body["id"].(string)
	require.NotEmpty(t, id)
	require.Equal(t, 1, savedCallbacks)

	w, body = doJSON(t, srv, http.MethodGet, "/workflows", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["workflows"], 1)

	w, body = doJSON(t, srv, http.MethodGet, "/workflows/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "My Flow", body["name"])

	create["name"] = "Renamed Flow"
	w, body = doJSON(t, srv, http.MethodPut, "/workflows/"+id, create)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Renamed Flow", body["name"])
	require.Equal(t, 2, savedCallbacks)

	w, body = doJSON(t, srv, http.MethodPost, "/workflows/"+id+"/duplicate", map[string]any{"name": "Fork"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "Fork", body["name"])
	require.NotEqual(t, id, body["id"])
	require.Equal(t, 3, savedCallbacks)

	w, _ = doJSON(t, srv, http.MethodDelete, "/workflows/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, srv, http.MethodGet, "/workflows/"+id, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaveWorkflowValidation(t *testing.T) {
	srv, _ := newTestServer(t, llm.NewStubClient())

	w, body := doJSON(t, srv, http.MethodPost, "/workflows", map[string]any{"nodes": []any{}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, body["error"], "name is required")

	w, _ = doJSON(t, srv, http.MethodPut, "/workflows/missing", map[string]any{"name": "x"})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatEndpoint(t *testing.T) {
	stub := llm.NewStubClient()
	stub.GenerateFunc = func(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
		return "Hello! I can run and build workflows.", nil
	}
	srv, _ := newTestServer(t, stub)

	w, body := doJSON(t, srv, http.MethodPost, "/chat", map[string]any{"message": "hi"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Hello! I can run and build workflows.", body["response"])
	sessionID := body["sessionId"].(string)
	require.NotEmpty(t, sessionID)

	w, body = doJSON(t, srv, http.MethodGet, "/chat/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["sessions"], 1)

	w, _ = doJSON(t, srv, http.MethodGet, "/chat/"+sessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, srv, http.MethodGet, "/chat/"+sessionID+"/workflow", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, srv, http.MethodDelete, "/chat/"+sessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, srv, http.MethodGet, "/chat/"+sessionID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatValidation(t *testing.T) {
	srv, _ := newTestServer(t, llm.NewStubClient())

	w, body := doJSON(t, srv, http.MethodPost, "/chat", map[string]any{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, body["error"], "message is required")
}

func TestNewSessionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, llm.NewStubClient())

	w, body := doJSON(t, srv, http.MethodPost, "/chat/new", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotEmpty(t, body["id"])
}
