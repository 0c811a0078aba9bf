package httpclient

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mp-manager/mp-manager/internal/metrics"
)

// instrumentedTransport records Prometheus metrics for every outbound request
type instrumentedTransport struct {
	next    http.RoundTripper
	metrics *metrics.Metrics
}

func NewInstrumentedTransport(next http.RoundTripper, m *metrics.Metrics) http.RoundTripper {
	return &instrumentedTransport{next: next, metrics: m}
}

func (t *instrumentedTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()

	t.metrics.HTTPRequestInFlight.Inc()
	defer t.metrics.HTTPRequestInFlight.Dec()

	resp, err := t.next.RoundTrip(r)

	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	host := r.URL.Host
	method := r.Method

	t.metrics.HTTPRequestDuration.WithLabelValues(host, method, status).Observe(time.Since(start).Seconds())
	t.metrics.HTTPRequestTotal.WithLabelValues(host, method, status).Inc()

	return resp, err
}
