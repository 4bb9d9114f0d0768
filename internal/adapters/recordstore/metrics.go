package recordstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"courseadmin/internal/domain/reference"
)

// Metrics instruments record store calls. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the record store collectors on reg.
// PRE: reg is non-nil and has not seen these collectors yet
// POST: Returns metrics ready to observe calls
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "courseadmin",
			Name:      "record_requests_total",
			Help:      "Record store calls by entity kind, operation and outcome.",
		}, []string{"kind", "op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "courseadmin",
			Name:      "record_request_duration_seconds",
			Help:      "Record store call latency by entity kind and operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "op"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *Metrics) observe(kind reference.Kind, op, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(kind), op, outcome).Inc()
	m.duration.WithLabelValues(string(kind), op).Observe(time.Since(start).Seconds())
}
