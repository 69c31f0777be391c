// Package metrics collects run counters in a Prometheus registry. The CLI has
// no HTTP surface, so the registry is written to a node-exporter textfile.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "billr"

// Metrics holds the counters and gauges of one run.
type Metrics struct {
	Registry *prometheus.Registry

	ProjectsReconciled *prometheus.CounterVec
	UpstreamAttempts   *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
	EntriesRejected    prometheus.Counter
	BillableHours      *prometheus.GaugeVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ProjectsReconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projects_reconciled_total",
			Help:      "Projects processed by the reconciler, by outcome.",
		}, []string{"outcome"}),
		UpstreamAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_attempts_total",
			Help:      "Upstream API call attempts made under the retry policy, by result.",
		}, []string{"result"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "project_cache_loads_total",
			Help:      "Project metadata loads, by source.",
		}, []string{"source"}),
		EntriesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_rejected_total",
			Help:      "Malformed time entries excluded from sums.",
		}),
		BillableHours: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "billable_hours",
			Help:      "Billable hours of the last run, by project set.",
		}, []string{"set"}),
	}
	m.Registry.MustRegister(
		m.ProjectsReconciled,
		m.UpstreamAttempts,
		m.CacheLookups,
		m.EntriesRejected,
		m.BillableHours,
	)
	return m
}

// transient is implemented by API errors that a later attempt may not repeat.
type transient interface {
	Transient() bool
}

// ObserveAttempt is a retry.Policy OnAttempt hook. Failed attempts are
// labelled "transient" for rate limiting and server errors, "error" otherwise.
func (m *Metrics) ObserveAttempt(_ int, err error) {
	m.UpstreamAttempts.WithLabelValues(attemptResult(err)).Inc()
}

func attemptResult(err error) string {
	if err == nil {
		return "ok"
	}
	var t transient
	if errors.As(err, &t) && t.Transient() {
		return "transient"
	}
	return "error"
}

// WriteTextfile atomically writes the registry in text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
