package faceprep

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// runMetrics collects the counters of one run. They are written once, at the
// end of the run, in the format of the node_exporter textfile collector.
type runMetrics struct {
	registry *prometheus.Registry
	images   *prometheus.CounterVec
	duration prometheus.Gauge
	lastRun  prometheus.Gauge
}

func newRunMetrics() *runMetrics {
	m := &runMetrics{
		registry: prometheus.NewRegistry(),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faceprep",
			Name:      "images_total",
			Help:      "Number of source entries by processing status.",
		}, []string{"status"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "faceprep",
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "faceprep",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the last run finished.",
		}),
	}
	m.registry.MustRegister(m.images, m.duration, m.lastRun)

	// Export every status, even the ones never observed.
	for _, st := range []Status{Processed, SkippedNoFace, SkippedUnreadable, Failed} {
		m.images.WithLabelValues(st.String())
	}
	return m
}

func (m *runMetrics) observe(st Status) {
	m.images.WithLabelValues(st.String()).Inc()
}

func (m *runMetrics) finish(elapsed time.Duration) {
	m.duration.Set(elapsed.Seconds())
	m.lastRun.SetToCurrentTime()
}

func (m *runMetrics) writeTo(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
