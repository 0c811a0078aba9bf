package otel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mp-manager/mp-manager/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"google.golang.org/grpc/credentials"
)

const (
	ExporterTypeOTLPGRPC = "otlp-grpc"
	ExporterTypeOTLPHTTP = "otlp-http"
	ExporterTypeStdout   = "stdout"

	ServiceName = "github.com/mp-manager/mp-manager"
	Compressor  = "gzip"
)

// SetupOTEL bootstraps the trace (and optionally log) pipeline for one run.
// If it does not return an error, make sure to call shutdown so that the
// batched spans of the run are flushed before the process exits.
func SetupOTEL(ctx context.Context, cfg *config.OTELConfig, serviceVersion string, logger *slog.Logger) (func(context.Context) error, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	// set any default values
	if cfg.TracerTimeout == 0 {
		cfg.TracerTimeout = 30 * time.Second
	}
	if cfg.TracerBatchInterval == 0 {
		cfg.TracerBatchInterval = 5 * time.Second
	}

	var shutdownFuncs []func(context.Context) error

	// The errors from the calls are joined and each cleanup runs once.
	shutdown := func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	otel.SetTextMapPropagator(newPropagator())

	tracerProvider, err := newTracerProvider(ctx, cfg, serviceVersion)
	if err != nil {
		return nil, errors.Join(err, shutdown(ctx))
	}
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)
	logger.Info("Enabled OTEL tracing", "exporter", cfg.ExporterType, "endpoint", cfg.ExporterEndpoint)

	if cfg.EnableLogs {
		loggerProvider, err := newLoggerProvider(ctx, cfg)
		if err != nil {
			return nil, errors.Join(err, shutdown(ctx))
		}
		shutdownFuncs = append(shutdownFuncs, loggerProvider.Shutdown)
		global.SetLoggerProvider(loggerProvider)
	}

	return shutdown, nil
}

func newPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

func newTracerProvider(ctx context.Context, cfg *config.OTELConfig, serviceVersion string) (*trace.TracerProvider, error) {
	var exporter trace.SpanExporter
	switch cfg.ExporterType {
	case ExporterTypeOTLPGRPC:
		if cfg.ExporterEndpoint == "" {
			return nil, fmt.Errorf("Exporter endpoint is required for OTEL %s exporter", cfg.ExporterType)
		}
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.ExporterEndpoint),
			otlptracegrpc.WithTimeout(cfg.TracerTimeout),
			otlptracegrpc.WithCompressor(Compressor),
		}
		if cfg.ExporterInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else if cfg.TLSConfig != nil {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(cfg.TLSConfig)))
		}
		e, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, err
		}
		exporter = e
	case ExporterTypeOTLPHTTP:
		if cfg.ExporterEndpoint == "" {
			return nil, fmt.Errorf("Exporter endpoint is required for OTEL %s exporter", cfg.ExporterType)
		}
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.ExporterEndpoint),
			otlptracehttp.WithTimeout(cfg.TracerTimeout),
		}
		if cfg.ExporterInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		} else if cfg.TLSConfig != nil {
			opts = append(opts, otlptracehttp.WithTLSClientConfig(cfg.TLSConfig))
		}
		e, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, err
		}
		exporter = e
	case ExporterTypeStdout, "":
		e, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		exporter = e
	default:
		return nil, fmt.Errorf("Invalid OTEL exporter type: %s", cfg.ExporterType)
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter, trace.WithBatchTimeout(cfg.TracerBatchInterval)),
		trace.WithSampler(newSampler(cfg.SamplingRatio)),
		trace.WithResource(createResource(cfg, serviceVersion)),
	), nil
}

func createResource(cfg *config.OTELConfig, serviceVersion string) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(ServiceName),
	}
	if serviceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(serviceVersion))
	}
	for key, value := range cfg.AdditionalAttributes {
		attrs = append(attrs, attribute.String(key, value))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func newLoggerProvider(_ context.Context, _ *config.OTELConfig) (*log.LoggerProvider, error) {
	logExporter, err := stdoutlog.New(stdoutlog.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	return log.NewLoggerProvider(
		log.WithProcessor(log.NewBatchProcessor(logExporter)),
	), nil
}

// newSampler samples everything unless a ratio below 1 is configured
func newSampler(ratio *float64) trace.Sampler {
	if ratio == nil || *ratio >= 1.0 {
		return trace.AlwaysSample()
	}
	if *ratio <= 0.0 {
		return trace.NeverSample()
	}
	return trace.TraceIDRatioBased(*ratio)
}

func NewRoundTripper(base http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(base)
}
