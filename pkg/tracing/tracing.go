package tracing

import (
	"context"
	"fmt"

	"github.com/IPampurin/ReferralTracker/pkg/configuration"
	"github.com/wb-go/wbf/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// InitTracing настраивает глобальный провайдер трейсов с экспортом по otlp/grpc;
// без OTEL_ENDPOINT возвращает пустую функцию остановки и спаны никуда не уходят
func InitTracing(ctx context.Context, cfg *configuration.ConfTracing, log logger.Logger) (func(context.Context) error, error) {

	// пропагатор нужен и без экспорта, чтобы traceparent доходил до брокеров
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.Endpoint == "" {
		log.Info("трейсинг отключён (OTEL_ENDPOINT не задан)")
		return func(context.Context) error { return nil }, nil
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("не удалось создать экспортер трейсов: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("1.0.0"),
		)),
	)

	otel.SetTracerProvider(tp)

	log.Info("трейсинг инициализирован", "endpoint", cfg.Endpoint)

	return tp.Shutdown, nil
}
