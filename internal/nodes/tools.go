package nodes

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/expr-lang/expr"

	"axon/internal/registry"
)

// RegisterToolNode installs the discoverable node counterpart of a tool.
// Tool nodes never execute in dataflow; they advertise the tool's schema so
// it can be attached to an orchestrator on the canvas.
func RegisterToolNode(reg *registry.Registry, tool *registry.Tool) error {
	schema := tool.Schema()
	return reg.RegisterNode(&registry.NodeType{
		ID:         registry.ToolNodePrefix + tool.Name,
		Name:       tool.Name,
		Category:   registry.CategoryTool,
		ToolSchema: &schema,
		Execute: func(ctx *registry.ExecContext, inputs, config map[string]any) (map[string]any, error) {
			return map[string]any{}, nil
		},
	})
}

// RegisterBuiltinTools installs the built-in tool set, each as a callable
// tool plus a tool node sharing the same schema.
func RegisterBuiltinTools(reg *registry.Registry) error {
	tools := []*registry.Tool{
		calculatorTool(),
		datetimeTool(),
		webFetchTool(),
		httpTool(),
	}
	for _, t := range tools {
		if err := reg.RegisterTool(t); err != nil {
			return err
		}
		if err := RegisterToolNode(reg, t); err != nil {
			return err
		}
	}
	return nil
}

func calculatorTool() *registry.Tool {
	return &registry.Tool{
		Name:        "calculator",
		Description: "Evaluate an arithmetic expression",
		InputSchema: registry.InputSchema{
			Type: "object",
			Properties: map[string]registry.Property{
				"expression": {Type: "string", Description: "Expression to evaluate, e.g. 2+2*10"},
			},
			Required: []string{"expression"},
		},
		Execute: func(ctx context.Context, params map[string]any) (any, error) {
			expression := asString(params["expression"])
			if expression == "" {
				return nil, fmt.Errorf("expression is required")
			}
			program, err := expr.Compile(expression)
			if err != nil {
				return nil, fmt.Errorf("invalid expression: %w", err)
			}
			value, err := expr.Run(program, nil)
			if err != nil {
				return nil, fmt.Errorf("evaluate expression: %w", err)
			}
			return map[string]any{"expression": expression, "result": value}, nil
		},
	}
}

func datetimeTool() *registry.Tool {
	return &registry.Tool{
		Name:        "datetime",
		Description: "Get the current date and time",
		InputSchema: registry.InputSchema{
			Type: "object",
			Properties: map[string]registry.Property{
				"format": {Type: "string", Description: "Go reference layout; defaults to RFC 3339"},
			},
		},
		Execute: func(ctx context.Context, params map[string]any) (any, error) {
			layout := asString(params["format"])
			if layout == "" {
				layout = time.RFC3339
			}
			now := time.Now()
			return map[string]any{"datetime": now.Format(layout), "unix": now.Unix()}, nil
		},
	}
}

func webFetchTool() *registry.Tool {
	return &registry.Tool{
		Name:        "web_fetch",
		Description: "Fetch a web page and return its text content",
		InputSchema: registry.InputSchema{
			Type: "object",
			Properties: map[string]registry.Property{
				"url": {Type: "string", Description: "Page URL to fetch"},
			},
			Required: []string{"url"},
		},
		Execute: func(ctx context.Context, params map[string]any) (any, error) {
			url := asString(params["url"])
			if url == "" {
				return nil, fmt.Errorf("url is required")
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, fmt.Errorf("build request: %w", err)
			}
			client := &http.Client{Timeout: httpTimeout}
			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("fetch %s: %w", url, err)
			}
			defer resp.Body.Close()

			doc, err := goquery.NewDocumentFromReader(resp.Body)
			if err != nil {
				return nil, fmt.Errorf("parse page: %w", err)
			}
			doc.Find("script, style, noscript").Remove()
			text := strings.TrimSpace(doc.Find("body").Text())
			text = strings.Join(strings.Fields(text), " ")
			text = truncateText(text, 8000)
			return map[string]any{"url": url, "status": resp.StatusCode, "text": text}, nil
		},
	}
}

func httpTool() *registry.Tool {
	return &registry.Tool{
		Name:        "http_request",
		Description: "Perform an HTTP request and return the raw response body",
		InputSchema: registry.InputSchema{
			Type: "object",
			Properties: map[string]registry.Property{
				"url":    {Type: "string", Description: "Request URL"},
				"method": {Type: "string", Description: "HTTP method", Enum: []string{"GET", "POST", "PUT", "DELETE"}},
				"body":   {Type: "string", Description: "Request body"},
			},
			Required: []string{"url"},
		},
		Execute: func(ctx context.Context, params map[string]any) (any, error) {
			url := asString(params["url"])
			if url == "" {
				return nil, fmt.Errorf("url is required")
			}
			method := strings.ToUpper(asString(params["method"]))
			if method == "" {
				method = http.MethodGet
			}

			var body io.Reader
			if raw := asString(params["body"]); raw != "" {
				body = bytes.NewBufferString(raw)
			}
			req, err := http.NewRequestWithContext(ctx, method, url, body)
			if err != nil {
				return nil, fmt.Errorf("build request: %w", err)
			}
			if body != nil {
				req.Header.Set("Content-Type", "application/json")
			}

			client := &http.Client{Timeout: httpTimeout}
			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("request %s: %w", url, err)
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return nil, fmt.Errorf("read response: %w", err)
			}
			return map[string]any{"status": resp.StatusCode, "body": string(data)}, nil
		},
	}
}

// truncateText caps s at max runes, never splitting a multi-byte sequence.
func truncateText(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "…"
}
