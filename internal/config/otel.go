package config

import (
	"crypto/tls"
	"time"
)

type OTELConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// ExporterType is one of "otlp-grpc", "otlp-http" or "stdout"
	ExporterType string `mapstructure:"exporter_type,omitempty"`
	// ExporterEndpoint is the collector address, e.g. "localhost:4317" for gRPC
	ExporterEndpoint string `mapstructure:"exporter_endpoint,omitempty"`
	ExporterInsecure bool   `mapstructure:"exporter_insecure,omitempty"`
	// SamplingRatio defaults to 1.0 when not set
	SamplingRatio *float64 `mapstructure:"sampling_ratio,omitempty"`
	// TracerTimeout defaults to 30 seconds
	TracerTimeout time.Duration `mapstructure:"tracer_timeout,omitempty"`
	// TracerBatchInterval defaults to 5 seconds
	TracerBatchInterval time.Duration `mapstructure:"tracer_batch_interval,omitempty"`
	// EnableLogs mirrors log records to a stdout OTEL log exporter
	EnableLogs           bool              `mapstructure:"enable_logs,omitempty"`
	AdditionalAttributes map[string]string `mapstructure:"additional_attributes,omitempty"`
	// TLSConfig for a secure exporter connection, built from the http section and not loaded from the file
	TLSConfig *tls.Config `mapstructure:"-"`
}
