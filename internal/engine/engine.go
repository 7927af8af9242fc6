// Package engine executes workflow documents: it orders the executable nodes
// topologically, resolves per-port inputs from upstream outputs, invokes node
// executors strictly sequentially, and streams progress events to a sink.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"axon/internal/llm"
	"axon/internal/logging"
	"axon/internal/registry"
	"axon/internal/workflow"
)

// Result is the outcome of one execution.
type Result struct {
	ExecutionID string                    `json:"executionId"`
	Success     bool                      `json:"success"`
	Outputs     map[string]map[string]any `json:"outputs"`
	Logs        []string                  `json:"logs"`
	Error       string                    `json:"error,omitempty"`
}

// Engine runs workflow documents against the node registry and LLM handle.
type Engine struct {
	registry *registry.Registry
	llm      llm.Client
	logger   logging.Logger
	metrics  *Metrics
	tracer   trace.Tracer
}

// New creates an engine.
func New(reg *registry.Registry, llmClient llm.Client, logger logging.Logger) *Engine {
	return &Engine{
		registry: reg,
		llm:      llmClient,
		logger:   logging.OrNop(logger),
		metrics:  defaultMetrics(),
		tracer:   otel.Tracer("axon/engine"),
	}
}

// Execute runs the document sequentially over its topological order. Node
// failure aborts the execution; unknown node types are skipped.
func (e *Engine) Execute(ctx context.Context, doc *workflow.Document, sink ProgressSink) *Result {
	sink = orNop(sink)
	execID := uuid.NewString()
	result := &Result{ExecutionID: execID, Outputs: map[string]map[string]any{}}

	ctx, span := e.tracer.Start(ctx, "workflow.execute",
		trace.WithAttributes(
			attribute.String("workflow.id", doc.ID),
			attribute.String("execution.id", execID),
			attribute.Int("workflow.nodes", len(doc.Nodes))))
	defer span.End()

	start := time.Now()
	e.metrics.runsActive.Inc()
	defer e.metrics.runsActive.Dec()

	logLine := func(format string, args ...any) {
		line := fmt.Sprintf("%s %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
		result.Logs = append(result.Logs, line)
		sink.Log(line)
	}

	fail := func(errMsg string) *Result {
		result.Success = false
		result.Error = errMsg
		e.metrics.runsTotal.WithLabelValues("error").Inc()
		e.metrics.runDuration.Observe(time.Since(start).Seconds())
		sink.ExecutionComplete(doc.ID, execID, false, errMsg)
		return result
	}

	sink.ExecutionStart(doc.ID, execID)
	logLine("Executing workflow %q (%d nodes, %d edges)", doc.Name, len(doc.Nodes), len(doc.Edges))

	if err := doc.Validate(); err != nil {
		e.logger.Error("Workflow %s invalid: %v", doc.ID, err)
		return fail(err.Error())
	}

	order, err := topologicalOrder(doc)
	if err != nil {
		e.logger.Error("Workflow %s: %v", doc.ID, err)
		return fail(err.Error())
	}

	for _, nodeID := range order {
		node, _ := doc.Node(nodeID)
		nodeType, ok := e.registry.Node(node.Data.Type)
		if !ok {
			e.logger.Warn("Unknown node type %q for node %s, skipping", node.Data.Type, nodeID)
			logLine("Skipping node %s: unknown type %q", nodeID, node.Data.Type)
			result.Outputs[nodeID] = map[string]any{}
			continue
		}

		sink.NodeProgress(nodeID, StatusRunning, nil)
		logLine("Running node %s (%s)", nodeID, node.Data.Type)

		inputs := e.collectInputs(doc, node, nodeType, result.Outputs)
		cfg := e.nodeConfig(doc, node, sink)

		execCtx := &registry.ExecContext{
			Context:      ctx,
			LLM:          e.llm,
			WorkflowID:   doc.ID,
			Log:          func(msg string) { logLine("%s", msg) },
			SendProgress: sink.NodeProgress,
		}

		nodeStart := time.Now()
		_, nodeSpan := e.tracer.Start(ctx, "workflow.node",
			trace.WithAttributes(attribute.String("node.id", nodeID), attribute.String("node.type", node.Data.Type)))
		outputs, err := nodeType.Execute(execCtx, inputs, cfg)
		nodeSpan.End()
		e.metrics.nodeDuration.WithLabelValues(node.Data.Type).Observe(time.Since(nodeStart).Seconds())

		if err != nil {
			e.metrics.nodeExecutions.WithLabelValues(node.Data.Type, "error").Inc()
			e.logger.Error("Node %s failed: %v", nodeID, err)
			logLine("Node %s failed: %v", nodeID, err)
			sink.NodeProgress(nodeID, StatusError, map[string]any{"error": err.Error()})
			return fail(fmt.Sprintf("node %s: %v", nodeID, err))
		}

		if outputs == nil {
			outputs = map[string]any{}
		}
		result.Outputs[nodeID] = outputs
		e.metrics.nodeExecutions.WithLabelValues(node.Data.Type, "complete").Inc()
		sink.NodeProgress(nodeID, StatusComplete, outputs)
	}

	result.Success = true
	e.metrics.runsTotal.WithLabelValues("success").Inc()
	e.metrics.runDuration.Observe(time.Since(start).Seconds())
	logLine("Workflow %q complete", doc.Name)
	sink.ExecutionComplete(doc.ID, execID, true, "")
	return result
}

// collectInputs resolves the values arriving on each incoming data edge,
// applying explicit handles first and smart port mapping otherwise. The
// first edge in document order to claim a port wins; common aliases (input,
// prompt, text) are backfilled for backward compatibility.
func (e *Engine) collectInputs(doc *workflow.Document, node *workflow.Node, nodeType *registry.NodeType, outputs map[string]map[string]any) map[string]any {
	inputs := map[string]any{}

	for _, edge := range doc.Edges {
		if edge.Target != node.ID || edge.IsToolAttachment() {
			continue
		}
		srcOutputs, ok := outputs[edge.Source]
		if !ok {
			continue
		}

		key := edge.SourceHandle
		if key == "" {
			key = e.firstOutputKey(doc, edge.Source, srcOutputs)
		}
		value := srcOutputs[key]

		port := edge.TargetHandle
		if port == "" {
			port = smartPort(nodeType, key)
		}
		if _, taken := inputs[port]; !taken {
			inputs[port] = value
		}

		for _, alias := range []string{"input", "prompt", "text"} {
			if _, taken := inputs[alias]; !taken {
				inputs[alias] = value
			}
		}
	}

	return inputs
}

// firstOutputKey resolves the default output port of a source node: the first
// declared output of its type, falling back to the lone key of the produced
// map.
func (e *Engine) firstOutputKey(doc *workflow.Document, sourceID string, srcOutputs map[string]any) string {
	if src, ok := doc.Node(sourceID); ok {
		if srcType, ok := e.registry.Node(src.Data.Type); ok && len(srcType.Outputs) > 0 {
			return srcType.Outputs[0].ID
		}
	}
	if len(srcOutputs) == 1 {
		for k := range srcOutputs {
			return k
		}
	}
	return "output"
}

// smartPort maps an unlabelled edge onto the most plausible input port of
// the target type.
func smartPort(nodeType *registry.NodeType, sourceKey string) string {
	has := func(id string) bool {
		for _, p := range nodeType.Inputs {
			if p.ID == id {
				return true
			}
		}
		return false
	}

	switch {
	case has("content") && (sourceKey == "response" || sourceKey == "output" || sourceKey == "text"):
		return "content"
	case has("input"):
		return "input"
	case has("prompt") && (sourceKey == "text" || sourceKey == "output"):
		return "prompt"
	case len(nodeType.Inputs) > 0:
		return nodeType.Inputs[0].ID
	default:
		return "input"
	}
}

// nodeConfig clones the node's config and, for orchestrator nodes, injects
// the discovered tool attachments and the progress callback under reserved
// keys.
func (e *Engine) nodeConfig(doc *workflow.Document, node *workflow.Node, sink ProgressSink) map[string]any {
	cfg := make(map[string]any, len(node.Data.Config)+3)
	for k, v := range node.Data.Config {
		cfg[k] = v
	}

	if node.Data.Type != "ai-orchestrator" {
		return cfg
	}

	var schemas []registry.ToolSchema
	toolNodes := map[string]string{}
	for _, edge := range doc.Edges {
		if edge.Target != node.ID || !edge.IsToolAttachment() {
			continue
		}
		src, ok := doc.Node(edge.Source)
		if !ok {
			continue
		}
		srcType, ok := e.registry.Node(src.Data.Type)
		if !ok || srcType.ToolSchema == nil {
			e.logger.Warn("Tool attachment %s -> %s has no tool schema", edge.Source, node.ID)
			continue
		}
		schemas = append(schemas, *srcType.ToolSchema)
		toolNodes[srcType.ToolSchema.Name] = src.ID
	}

	cfg[registry.ConfigConnectedTools] = schemas
	cfg[registry.ConfigToolNodeMap] = toolNodes
	cfg[registry.ConfigSendProgress] = registry.SendProgressFunc(func(status string, data any) {
		sink.NodeProgress(node.ID, status, data)
	})
	return cfg
}
