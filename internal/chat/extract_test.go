package chat

import "testing"

func TestExtractCommandsCommandFence(t *testing.T) {
	response := "Sure, building it now:\n```command\n{\"action\":\"addNode\",\"type\":\"text-input\"}\n{\"action\":\"connect\",\"from\":\"node_0\",\"to\":\"node_1\"}\n```\nDone."

	commands := ExtractCommands(response)
	if len(commands) != 2 {
		t.Fatalf("expected 2 commands, got %v", commands)
	}
	if commands[0].Action() != "addNode" || commands[1].Action() != "connect" {
		t.Fatalf("wrong actions: %v", commands)
	}
}

func TestExtractCommandsJSONFenceFallback(t *testing.T) {
	response := "```json\n[{\"action\":\"clear\"},{\"action\":\"listWorkflows\"}]\n```"

	commands := ExtractCommands(response)
	if len(commands) != 2 {
		t.Fatalf("expected 2 commands, got %v", commands)
	}
	if commands[0].Action() != "clear" {
		t.Fatalf("wrong first action: %v", commands)
	}
}

func TestExtractCommandsCommandFenceWinsOverJSON(t *testing.T) {
	response := "```command\n{\"action\":\"clear\"}\n```\n```json\n{\"action\":\"run\"}\n```"

	commands := ExtractCommands(response)
	if len(commands) != 1 || commands[0].Action() != "clear" {
		t.Fatalf("command fence must win, got %v", commands)
	}
}

func TestExtractCommandsInlineBackticks(t *testing.T) {
	commands := ExtractCommands("Try `{\"action\":\"listWorkflows\"}` to see them.")
	if len(commands) != 1 || commands[0].Action() != "listWorkflows" {
		t.Fatalf("expected inline command, got %v", commands)
	}
}

func TestExtractCommandsLooseObject(t *testing.T) {
	commands := ExtractCommands(`I would run {"action":"run","templateId":"simple-chat"} for you.`)
	if len(commands) != 1 || commands[0].Action() != "run" {
		t.Fatalf("expected loose command, got %v", commands)
	}
	if commands[0].String("templateId") != "simple-chat" {
		t.Fatalf("expected templateId preserved, got %v", commands[0])
	}
}

func TestExtractCommandsNoCommands(t *testing.T) {
	if commands := ExtractCommands("Just a plain answer with no structure."); commands != nil {
		t.Fatalf("expected nil, got %v", commands)
	}
}

func TestExtractCommandsIgnoresNonActionJSON(t *testing.T) {
	if commands := ExtractCommands("```json\n{\"note\":\"no action field\"}\n```"); commands != nil {
		t.Fatalf("objects without action must be skipped, got %v", commands)
	}
}

func TestParseCommandBlockPerLine(t *testing.T) {
	commands := parseCommandBlock("{\"action\":\"clear\"}\nnot json\n{\"action\":\"run\"}")
	if len(commands) != 2 {
		t.Fatalf("expected 2 commands, got %v", commands)
	}
}
