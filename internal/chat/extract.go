package chat

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Command is one action record extracted from LLM output. Arbitrary fields
// are preserved so each action can pick out what it needs.
type Command map[string]any

// Action returns the command's action name.
func (c Command) Action() string {
	s, _ := c["action"].(string)
	return s
}

// String reads a string field of the command.
func (c Command) String(key string) string {
	s, _ := c[key].(string)
	return s
}

var (
	commandFenceRe = regexp.MustCompile("(?s)```command\\s*\n(.*?)```")
	jsonFenceRe    = regexp.MustCompile("(?s)```json\\s*\n(.*?)```")
	bareFenceRe    = regexp.MustCompile("(?s)```\\s*\n?(.*?)```")
	inlineTickRe   = regexp.MustCompile("`([^`]+)`")
	looseActionRe  = regexp.MustCompile(`\{"action"\s*:\s*"[^"]*"[^}]*\}`)
)

// ExtractCommands pulls action records out of an LLM response. Textual
// frames are tried in order of specificity; the first frame class that
// yields at least one command wins. Order of commands within the response is
// preserved.
func ExtractCommands(response string) []Command {
	frames := [][]string{
		captures(commandFenceRe, response),
		captures(jsonFenceRe, response),
		captures(bareFenceRe, response),
		captures(inlineTickRe, response),
		looseActionRe.FindAllString(response, -1),
	}

	for _, blocks := range frames {
		var commands []Command
		for _, block := range blocks {
			commands = append(commands, parseCommandBlock(block)...)
		}
		if len(commands) > 0 {
			return commands
		}
	}
	return nil
}

func captures(re *regexp.Regexp, s string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	return out
}

// parseCommandBlock decodes one block as a JSON object, a JSON array, or a
// sequence of newline-separated JSON objects.
func parseCommandBlock(block string) []Command {
	block = strings.TrimSpace(block)
	if block == "" {
		return nil
	}

	var single map[string]any
	if err := json.Unmarshal([]byte(block), &single); err == nil {
		return commandsFrom([]any{anyMap(single)})
	}

	var list []any
	if err := json.Unmarshal([]byte(block), &list); err == nil {
		return commandsFrom(list)
	}

	var out []Command
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err == nil {
			out = append(out, commandsFrom([]any{anyMap(obj)})...)
		}
	}
	return out
}

func anyMap(m map[string]any) any { return m }

func commandsFrom(items []any) []Command {
	var out []Command
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		cmd := Command(obj)
		if cmd.Action() != "" {
			out = append(out, cmd)
		}
	}
	return out
}
