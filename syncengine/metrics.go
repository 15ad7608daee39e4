package syncengine

import "github.com/prometheus/client_golang/prometheus"

// metrics instruments each task tick, the otherwise-idle job the teacher's
// `github.com/prometheus/client_golang` dependency never found a home for
// in this repository until the Sync Engine.
type metrics struct {
	ticks    *prometheus.CounterVec
	failures *prometheus.CounterVec
	height   prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartvaults",
			Subsystem: "syncengine",
			Name:      "task_ticks_total",
			Help:      "Number of times a sync engine task ran its body.",
		}, []string{"task"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartvaults",
			Subsystem: "syncengine",
			Name:      "task_failures_total",
			Help:      "Number of sync engine task iterations that returned an error.",
		}, []string{"task"}),
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smartvaults",
			Subsystem: "syncengine",
			Name:      "block_height",
			Help:      "Last block height observed by the block-height syncer.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ticks, m.failures, m.height)
	}
	return m
}

func (m *metrics) tick(task string) {
	m.ticks.WithLabelValues(task).Inc()
}

func (m *metrics) fail(task string) {
	m.failures.WithLabelValues(task).Inc()
}
