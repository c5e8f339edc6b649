package metrics

import "github.com/prometheus/client_golang/prometheus"

// QueueMetrics exposes counters/histograms for the consultation queue.
type QueueMetrics struct {
	callsTotal      *prometheus.CounterVec
	callConflicts   prometheus.Counter
	completedTotal  prometheus.Counter
	noShowsTotal    prometheus.Counter
	decisionSeconds *prometheus.HistogramVec
}

func NewQueueMetrics(reg prometheus.Registerer) *QueueMetrics {
	m := &QueueMetrics{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opdflow",
			Subsystem: "queue",
			Name:      "calls_total",
			Help:      "Total token calls by kind",
		}, []string{"kind"}),
		callConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "opdflow",
			Subsystem: "queue",
			Name:      "call_conflicts_total",
			Help:      "Concurrent call attempts rejected by the session version check",
		}),
		completedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "opdflow",
			Subsystem: "queue",
			Name:      "consultations_completed_total",
			Help:      "Total consultations completed",
		}),
		noShowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "opdflow",
			Subsystem: "queue",
			Name:      "no_shows_total",
			Help:      "Total tokens resolved as no-show",
		}),
		decisionSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "opdflow",
			Subsystem: "queue",
			Name:      "decision_seconds",
			Help:      "Latency of queue engine operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callsTotal, m.callConflicts, m.completedTotal, m.noShowsTotal, m.decisionSeconds)
	return m
}

// ObserveCall records a successful token call. kind is "start", "sequential"
// or "recall".
func (m *QueueMetrics) ObserveCall(kind string) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(kind).Inc()
}

func (m *QueueMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.callConflicts.Inc()
}

func (m *QueueMetrics) ObserveCompleted() {
	if m == nil {
		return
	}
	m.completedTotal.Inc()
}

func (m *QueueMetrics) ObserveNoShow() {
	if m == nil {
		return
	}
	m.noShowsTotal.Inc()
}

func (m *QueueMetrics) ObserveDecision(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.decisionSeconds.WithLabelValues(operation).Observe(seconds)
}
