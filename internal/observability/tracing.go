// Package observability sets up distributed tracing. Tracing is off unless
// an OTLP endpoint is configured; the no-op provider keeps span calls free
// for local-only runs.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "axon"

// TracerProvider wraps the OpenTelemetry tracer lifecycle.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracerProvider creates a tracer provider. An empty endpoint yields a
// no-op tracer.
func NewTracerProvider(ctx context.Context, otlpEndpoint, version string) (*TracerProvider, error) {
	if otlpEndpoint == "" {
		return &TracerProvider{tracer: noop.NewTracerProvider().Tracer(serviceName)}, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(otlpEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return &TracerProvider{provider: provider, tracer: provider.Tracer(serviceName)}, nil
}

// Tracer returns the tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// Shutdown flushes pending spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

// Span names used across the engine and orchestrator.
const (
	SpanWorkflowExecute  = "axon.workflow.execute"
	SpanNodeExecute      = "axon.node.execute"
	SpanOrchestratorRun  = "axon.orchestrator.run"
	SpanOrchestratorStep = "axon.orchestrator.step"
	SpanToolExecute      = "axon.tool.execute"
)

// Attribute keys shared by the span emitters.
const (
	AttrWorkflowID = "axon.workflow_id"
	AttrNodeID     = "axon.node_id"
	AttrNodeType   = "axon.node_type"
	AttrToolName   = "axon.tool_name"
	AttrStep       = "axon.step"
	AttrStatus     = "axon.status"
)

// WorkflowAttrs builds the standard workflow span attributes.
func WorkflowAttrs(workflowID string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(AttrWorkflowID, workflowID)}
}

// NodeAttrs builds the standard node span attributes.
func NodeAttrs(nodeID, nodeType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrNodeID, nodeID),
		attribute.String(AttrNodeType, nodeType),
	}
}

// ToolAttrs builds the standard tool span attributes.
func ToolAttrs(toolName string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(AttrToolName, toolName)}
}
