package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors exported by the API.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	TaskMutations    *prometheus.CounterVec
	ColumnRebalances prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		TaskMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kanban_task_mutations_total",
				Help: "Successful task mutations by operation",
			},
			[]string{"op"},
		),
		ColumnRebalances: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kanban_column_rebalances_total",
				Help: "Columns renumbered after their order gaps ran out",
			},
		),
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.TaskMutations, m.ColumnRebalances)
	return m
}

// TaskMutation counts a successful task mutation. Safe on a nil receiver.
func (m *Metrics) TaskMutation(op string) {
	if m == nil {
		return
	}
	m.TaskMutations.WithLabelValues(op).Inc()
}

// ColumnRebalanced counts a column renumbering. Safe on a nil receiver.
func (m *Metrics) ColumnRebalanced() {
	if m == nil {
		return
	}
	m.ColumnRebalances.Inc()
}
