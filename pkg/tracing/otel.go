// Copyright 2026 fanjia1024
// OpenTelemetry integration for distributed tracing

// Package tracing 封装 OpenTelemetry 初始化与问答链路上的 span
package tracing

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "course-rag"

// OTelConfig OpenTelemetry 配置
type OTelConfig struct {
	ServiceName    string
	ExportEndpoint string
	Insecure       bool
}

// InitTracer 初始化 OpenTelemetry tracer，并设置为全局 provider
func InitTracer(ctx context.Context, config OTelConfig) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.ExportEndpoint),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	serviceName := config.ServiceName
	if serviceName == "" {
		serviceName = tracerName
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// StartTurnSpan 开始一轮问答的根 span
func StartTurnSpan(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "turn.answer",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
		),
	)
}

// StartModelSpan 开始一次模型调用 span，phase 为 decide 或 final
func StartModelSpan(ctx context.Context, provider, model, phase string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "llm.call",
		trace.WithAttributes(
			attribute.String("llm.provider", provider),
			attribute.String("llm.model", model),
			attribute.String("llm.phase", phase),
		),
	)
}

// StartToolSpan 开始 tool invocation span
func StartToolSpan(ctx context.Context, toolName string, callID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tool.invoke",
		trace.WithAttributes(
			attribute.String("tool.name", toolName),
			attribute.String("tool.call_id", callID),
		),
	)
}

// StartSearchSpan 开始内容检索 span；course、lesson 为空表示未过滤
func StartSearchSpan(ctx context.Context, course *string, lesson *int) (context.Context, trace.Span) {
	attrs := make([]attribute.KeyValue, 0, 2)
	if course != nil {
		attrs = append(attrs, attribute.String("search.course_name", *course))
	}
	if lesson != nil {
		attrs = append(attrs, attribute.String("search.lesson_number", strconv.Itoa(*lesson)))
	}
	return otel.Tracer(tracerName).Start(ctx, "search.content", trace.WithAttributes(attrs...))
}

// EndSpan 结束 span，err 非空时标记错误状态
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
