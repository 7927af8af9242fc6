package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"axon/internal/llm"
	"axon/internal/registry"
)

func echoTool(t *testing.T, reg *registry.Registry, name string) {
	t.Helper()
	err := reg.RegisterTool(&registry.Tool{
		Name:        name,
		Description: "echoes its input",
		InputSchema: registry.InputSchema{
			Type:       "object",
			Properties: map[string]registry.Property{"value": {Type: "string"}},
		},
		Execute: func(ctx context.Context, params map[string]any) (any, error) {
			return map[string]any{"echo": params["value"]}, nil
		},
	})
	if err != nil {
		t.Fatalf("register tool: %v", err)
	}
}

func TestRunNoToolsEnabled(t *testing.T) {
	orch := New(registry.New(nil), llm.NewStubClient(), nil)

	memory := orch.Run(context.Background(), "do something", Config{}, nil)
	if memory.Status != StatusError {
		t.Fatalf("expected error status, got %s", memory.Status)
	}
	if memory.FinalResult != "no tools enabled" {
		t.Fatalf("unexpected final result %q", memory.FinalResult)
	}
}

func TestRunSessionFailure(t *testing.T) {
	reg := registry.New(nil)
	echoTool(t, reg, "echo")
	stub := llm.NewStubClient()
	stub.SessionErr = fmt.Errorf("model offline")

	memory := New(reg, stub, nil).Run(context.Background(), "task", Config{EnabledTools: []string{"echo"}}, nil)
	if memory.Status != StatusError {
		t.Fatalf("expected error status, got %s", memory.Status)
	}
	if !strings.Contains(memory.FinalResult, "model offline") {
		t.Fatalf("expected session error surfaced, got %q", memory.FinalResult)
	}
}

func TestRunToolThenDone(t *testing.T) {
	reg := registry.New(nil)
	echoTool(t, reg, "echo")
	stub := llm.NewStubClient(
		"THOUGHT: call the tool\nACTION: echo\nINPUT: {\"value\":\"hi\"}",
		"DONE: the echo said hi",
	)

	memory := New(reg, stub, nil).Run(context.Background(), "say hi", Config{EnabledTools: []string{"echo"}}, nil)
	if memory.Status != StatusComplete {
		t.Fatalf("expected complete, got %s (%s)", memory.Status, memory.FinalResult)
	}
	if memory.FinalResult != "the echo said hi" {
		t.Fatalf("unexpected final result %q", memory.FinalResult)
	}
	if len(memory.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(memory.Steps))
	}
	if memory.Steps[0].Action != "echo" {
		t.Fatalf("expected echo action, got %q", memory.Steps[0].Action)
	}

	// The tool observation must be fed back as a RESULT: prompt.
	if len(stub.Prompts) != 2 || !strings.HasPrefix(stub.Prompts[1], "RESULT: ") {
		t.Fatalf("expected RESULT feedback, got %v", stub.Prompts)
	}
}

func TestRunMaxStepsTermination(t *testing.T) {
	reg := registry.New(nil)
	echoTool(t, reg, "echo")
	stub := llm.NewStubClient()
	stub.Fallback = "THOUGHT: still working\nACTION: echo\nINPUT: {\"value\":\"again\"}"

	memory := New(reg, stub, nil).Run(context.Background(), "endless", Config{MaxSteps: 3, EnabledTools: []string{"echo"}}, nil)
	if memory.Status != StatusComplete {
		t.Fatalf("expected complete, got %s", memory.Status)
	}
	if len(memory.Steps) != 3 {
		t.Fatalf("expected exactly max steps, got %d", len(memory.Steps))
	}
	if !strings.HasPrefix(memory.FinalResult, "Reached maximum steps. Last progress: still working") {
		t.Fatalf("unexpected final result %q", memory.FinalResult)
	}
}

func TestRunToolNotEnabled(t *testing.T) {
	reg := registry.New(nil)
	echoTool(t, reg, "echo")
	echoTool(t, reg, "other")
	stub := llm.NewStubClient(
		"ACTION: other\nINPUT: {}",
		"DONE: gave up",
	)

	memory := New(reg, stub, nil).Run(context.Background(), "task", Config{EnabledTools: []string{"echo"}}, nil)
	if memory.Status != StatusComplete {
		t.Fatalf("expected complete, got %s", memory.Status)
	}

	result, _ := memory.Steps[0].Result.(map[string]any)
	errMsg, _ := result["error"].(string)
	if !strings.Contains(errMsg, `Tool "other" not enabled`) {
		t.Fatalf("expected not-enabled error in step result, got %v", memory.Steps[0].Result)
	}
	if len(stub.Prompts) < 2 || !strings.HasPrefix(stub.Prompts[1], `ERROR: Tool "other" not enabled`) {
		t.Fatalf("expected ERROR feedback, got %v", stub.Prompts)
	}
}

func TestRunToolFailureFedBack(t *testing.T) {
	reg := registry.New(nil)
	err := reg.RegisterTool(&registry.Tool{
		Name:        "flaky",
		Description: "always fails",
		InputSchema: registry.InputSchema{Type: "object", Properties: map[string]registry.Property{}},
		Execute: func(ctx context.Context, params map[string]any) (any, error) {
			return nil, fmt.Errorf("backend unavailable")
		},
	})
	if err != nil {
		t.Fatalf("register tool: %v", err)
	}
	stub := llm.NewStubClient(
		"ACTION: flaky\nINPUT: {}",
		"DONE: could not finish",
	)

	memory := New(reg, stub, nil).Run(context.Background(), "task", Config{EnabledTools: []string{"flaky"}}, nil)
	if memory.Status != StatusComplete {
		t.Fatalf("expected complete, got %s", memory.Status)
	}
	if len(stub.Prompts) < 2 || !strings.HasPrefix(stub.Prompts[1], "ERROR: backend unavailable") {
		t.Fatalf("expected tool error feedback, got %v", stub.Prompts)
	}
}

func TestRunEventCallbackPanicsRecovered(t *testing.T) {
	reg := registry.New(nil)
	echoTool(t, reg, "echo")
	stub := llm.NewStubClient("DONE: fine")

	memory := New(reg, stub, nil).Run(context.Background(), "task", Config{EnabledTools: []string{"echo"}}, func(event Event, data any) {
		panic("listener bug")
	})
	if memory.Status != StatusComplete {
		t.Fatalf("expected complete despite callback panic, got %s", memory.Status)
	}
}

func TestResolveEnabledToolsConnectedWin(t *testing.T) {
	reg := registry.New(nil)
	echoTool(t, reg, "echo")
	echoTool(t, reg, "other")

	cfg := map[string]any{
		registry.ConfigConnectedTools: []registry.ToolSchema{{Name: "echo"}},
		"tools":                       "other",
	}
	names := ResolveEnabledTools(cfg, reg)
	if len(names) != 1 || names[0] != "echo" {
		t.Fatalf("connected tools must win, got %v", names)
	}
}

func TestResolveEnabledToolsCSVIntersectsRegistry(t *testing.T) {
	reg := registry.New(nil)
	echoTool(t, reg, "echo")

	names := ResolveEnabledTools(map[string]any{"tools": "echo, missing , "}, reg)
	if len(names) != 1 || names[0] != "echo" {
		t.Fatalf("expected registry intersection, got %v", names)
	}
}
