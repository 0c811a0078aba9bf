package otel

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/mp-manager/mp-manager/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type SpanFunction func(context.Context) error

// WithSpan runs fn inside a child span named operation when tracing is
// enabled, otherwise it just calls fn.
func WithSpan(ctx context.Context, serviceConfig *config.Config, logger *slog.Logger, component string, operation string, attributes map[string]string, fn SpanFunction) error {
	runtimeCtx := ctx
	var runtimeSpan trace.Span

	if serviceConfig != nil && serviceConfig.IsOTELEnabled() {
		runtimeCtx, runtimeSpan = otel.Tracer(component).Start(ctx, operation)

		var atts []attribute.KeyValue
		for _, key := range slices.Sorted(maps.Keys(attributes)) {
			if value := attributes[key]; value != "" {
				atts = append(atts, attribute.String(key, value))
			}
		}
		runtimeSpan.SetAttributes(atts...)
	}

	err := fn(runtimeCtx)

	if runtimeSpan != nil {
		if err != nil {
			runtimeSpan.RecordError(err)
			runtimeSpan.SetStatus(codes.Error, fmt.Sprintf("%s failed", operation))
			logger.Debug("Span failed", "component", component, "operation", operation)
		} else {
			runtimeSpan.SetStatus(codes.Ok, fmt.Sprintf("%s successful", operation))
		}
		runtimeSpan.End()
	}

	return err
}
