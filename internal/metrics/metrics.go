package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "mp_manager"

// Metrics groups the collectors of one process on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestTotal    *prometheus.CounterVec
	HTTPRequestInFlight prometheus.Gauge

	StageDuration *prometheus.HistogramVec
	StageRows     *prometheus.GaugeVec
	StageTotal    *prometheus.CounterVec
	LastSuccess   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of outbound requests to the data sources",
				Buckets:   prometheus.DefBuckets,
			}, []string{"host", "method", "status"}),
		HTTPRequestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Number of outbound requests to the data sources",
			}, []string{"host", "method", "status"}),
		HTTPRequestInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Outbound requests currently waiting for a response",
			}),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Duration of each update stage",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
			}, []string{"stage"}),
		StageRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "table_rows",
				Help:      "Rows written to each table by the last update",
			}, []string{"table"}),
		StageTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stages_total",
				Help:      "Number of finished update stages by outcome",
			}, []string{"stage", "outcome"}),
		LastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last update that finished every stage",
			}),
	}
	m.Registry.MustRegister(
		m.HTTPRequestDuration,
		m.HTTPRequestTotal,
		m.HTTPRequestInFlight,
		m.StageDuration,
		m.StageRows,
		m.StageTotal,
		m.LastSuccess,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) ObserveStage(stage string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
	m.StageTotal.WithLabelValues(stage, outcome).Inc()
}

func (m *Metrics) SetTableRows(table string, rows int64) {
	if m == nil {
		return
	}
	m.StageRows.WithLabelValues(table).Set(float64(rows))
}

func (m *Metrics) MarkSuccess(at time.Time) {
	if m == nil {
		return
	}
	m.LastSuccess.Set(float64(at.Unix()))
}

// WriteTextfile writes the registry in the format read by the node exporter
// textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("Cannot write metrics to %s: %w", path, err)
	}
	return nil
}
