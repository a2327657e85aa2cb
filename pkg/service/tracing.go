package service

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracer берётся из глобального провайдера (без настройки трейсинга это noop)
var tracer trace.Tracer = otel.Tracer("github.com/IPampurin/ReferralTracker/pkg/service")
