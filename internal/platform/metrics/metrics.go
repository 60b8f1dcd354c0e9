package metrics

import "github.com/prometheus/client_golang/prometheus"

// BoardMetrics exposes counters and gauges for the treatment board.
type BoardMetrics struct {
	actionsTotal     *prometheus.CounterVec
	persistFailures  *prometheus.CounterVec
	persistLatency   *prometheus.HistogramVec
	mergeDecisions   *prometheus.CounterVec
	snapshotsApplied *prometheus.CounterVec
	runningItems     prometheus.Gauge
	queueDepth       prometheus.Gauge
}

func NewBoardMetrics(reg prometheus.Registerer) *BoardMetrics {
	m := &BoardMetrics{
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "board",
			Name:      "actions_total",
			Help:      "Board actions by operation and outcome",
		}, []string{"op", "outcome"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "board",
			Name:      "persist_failures_total",
			Help:      "Failed writes to the room store by operation and policy",
		}, []string{"op", "policy"}),
		persistLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "frontdesk",
			Subsystem: "board",
			Name:      "persist_latency_seconds",
			Help:      "Latency of room store writes",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		mergeDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "reconcile",
			Name:      "item_decisions_total",
			Help:      "Per-item reconcile decisions",
		}, []string{"decision"}),
		snapshotsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "reconcile",
			Name:      "snapshots_total",
			Help:      "Room snapshots fetched from the store by source and status",
		}, []string{"source", "status"}),
		runningItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "frontdesk",
			Subsystem: "board",
			Name:      "running_items",
			Help:      "Treatment items currently running on this terminal",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "frontdesk",
			Subsystem: "board",
			Name:      "persist_queue_depth",
			Help:      "Writes waiting for the persistence worker",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.actionsTotal, m.persistFailures, m.persistLatency,
		m.mergeDecisions, m.snapshotsApplied, m.runningItems, m.queueDepth)
	return m
}

func (m *BoardMetrics) ObserveAction(op, outcome string) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(op, outcome).Inc()
}

func (m *BoardMetrics) ObservePersistFailure(op, policy string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(op, policy).Inc()
}

func (m *BoardMetrics) ObservePersistLatency(op string, seconds float64) {
	if m == nil {
		return
	}
	m.persistLatency.WithLabelValues(op).Observe(seconds)
}

func (m *BoardMetrics) ObserveMerge(decision string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.mergeDecisions.WithLabelValues(decision).Add(float64(n))
}

func (m *BoardMetrics) ObserveSnapshot(source, status string) {
	if m == nil {
		return
	}
	m.snapshotsApplied.WithLabelValues(source, status).Inc()
}

func (m *BoardMetrics) SetRunningItems(n int) {
	if m == nil {
		return
	}
	m.runningItems.Set(float64(n))
}

func (m *BoardMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// HTTPMetrics counts failures of the HTTP surface.
type HTTPMetrics struct {
	panicsTotal *prometheus.CounterVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		panicsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "http",
			Name:      "panics_total",
			Help:      "Handler panics recovered by route",
		}, []string{"route"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.panicsTotal)
	return m
}

func (m *HTTPMetrics) ObservePanic(route string) {
	if m == nil {
		return
	}
	m.panicsTotal.WithLabelValues(route).Inc()
}
