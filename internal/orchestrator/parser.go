package orchestrator

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Directive is the structured content extracted from one LLM turn.
type Directive struct {
	Thought   string
	Action    string
	Input     map[string]any
	Done      string
	HasAction bool
	HasDone   bool
}

var (
	inputBlockRe = regexp.MustCompile(`INPUT:\s*(\{[\s\S]*?\})`)
	keyValueRe   = regexp.MustCompile(`(\w+)\s*[:=]\s*['"]?([^'"}\],]+)['"]?`)
)

// ParseDirective scans the response line by line. The first ACTION wins and
// locks out any later DONE; a DONE before any ACTION finishes the loop. A
// response with no structure at all is kept whole as the thought.
func ParseDirective(response string) Directive {
	var d Directive
	var rawInput string

	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "THOUGHT:"):
			if d.Thought == "" && !d.HasAction {
				d.Thought = strings.TrimSpace(trimmed[len("THOUGHT:"):])
			}
		case strings.HasPrefix(trimmed, "ACTION:"):
			if !d.HasAction {
				rest := strings.TrimSpace(trimmed[len("ACTION:"):])
				if fields := strings.Fields(rest); len(fields) > 0 {
					d.Action = fields[0]
					d.HasAction = true
				}
			}
		case strings.HasPrefix(trimmed, "INPUT:"):
			if d.HasAction && rawInput == "" {
				rawInput = strings.TrimSpace(trimmed[len("INPUT:"):])
			}
		case strings.HasPrefix(trimmed, "DONE:"):
			if !d.HasAction && !d.HasDone {
				d.Done = strings.TrimSpace(trimmed[len("DONE:"):])
				d.HasDone = true
			}
		}
	}

	if d.HasAction {
		d.Input = parseToolInput(rawInput, response)
	}
	if d.Thought == "" && !d.HasAction && !d.HasDone {
		d.Thought = strings.TrimSpace(response)
	}
	return d
}

// parseToolInput recovers a parameter object from whatever the model wrote
// after INPUT:. Attempts, in order: strict parse, brace extraction from the
// full response, JSON repair (single quotes, bare keys, trailing commas),
// key-value scraping, and finally wrapping the raw string.
func parseToolInput(raw, full string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if m := inputBlockRe.FindStringSubmatch(full); m != nil {
			raw = m[1]
		}
	}
	if raw == "" {
		return map[string]any{}
	}

	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err == nil {
		return params
	}

	if m := inputBlockRe.FindStringSubmatch(full); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &params); err == nil {
			return params
		}
	}

	if repaired, err := jsonrepair.JSONRepair(raw); err == nil {
		if err := json.Unmarshal([]byte(repaired), &params); err == nil {
			return params
		}
	}

	matches := keyValueRe.FindAllStringSubmatch(raw, -1)
	if len(matches) > 0 {
		params = make(map[string]any, len(matches))
		for _, m := range matches {
			params[m[1]] = strings.TrimSpace(m[2])
		}
		return params
	}

	return map[string]any{"raw": raw}
}
