package export

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/cardbook/internal/history"
)

const metricsNamespace = "cardbook"

// Metrics exposes export statistics to Prometheus.
//
// Metrics registered:
//   - cardbook_export_runs_total{status} - runs by outcome (success/failed/busy)
//   - cardbook_export_duration_seconds - histogram of run duration
//   - cardbook_export_rows - rows written by the last successful run
//   - cardbook_export_contacts - contacts kept by the last successful run
//   - cardbook_export_groups - group records dropped by the last successful run
//   - cardbook_export_last_success_timestamp_seconds - end of the last successful run
type Metrics struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	duration    prometheus.Histogram
	rows        prometheus.Gauge
	contacts    prometheus.Gauge
	groups      prometheus.Gauge
	lastSuccess prometheus.Gauge
}

func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return nil
		}
		return fmt.Errorf("register collector: %w", err)
	}
	return nil
}

// NewMetrics creates export metrics on a private registry that also carries
// the Go runtime and process collectors.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "export", Name: name, Help: help,
		})
	}

	m := &Metrics{
		registry: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "export",
			Name: "runs_total", Help: "Export runs by status",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: "export",
			Name:    "duration_seconds",
			Help:    "Duration of export runs",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		rows:        gauge("rows", "Rows written by the last successful export"),
		contacts:    gauge("contacts", "Contacts kept by the last successful export"),
		groups:      gauge("groups", "Group records dropped by the last successful export"),
		lastSuccess: gauge("last_success_timestamp_seconds", "Unix time the last successful export finished"),
	}

	for _, c := range []prometheus.Collector{
		m.runs, m.duration, m.rows, m.contacts, m.groups, m.lastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registerCollector(reg, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Registry returns the registry holding the export metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// observe records a finished run.
func (m *Metrics) observe(run history.Run) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(run.Status)).Inc()
	m.duration.Observe(run.Duration().Seconds())
	if run.Status != history.StatusSuccess {
		return
	}
	m.rows.Set(float64(run.Rows))
	m.contacts.Set(float64(run.Contacts))
	m.groups.Set(float64(run.Groups))
	m.lastSuccess.Set(float64(run.FinishedAt.Unix()))
}

// busy records a trigger rejected because an export was running.
func (m *Metrics) busy() {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(statusBusy).Inc()
}
