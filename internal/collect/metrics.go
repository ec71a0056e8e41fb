package collect

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// runMetrics counts what a batch did. It lives in its own registry so a
// batch never touches the global default registry.
type runMetrics struct {
	registry    *prometheus.Registry
	experiments *prometheus.CounterVec
	duration    prometheus.Histogram
	skipped     prometheus.Counter
	files       prometheus.Counter
}

func newRunMetrics() *runMetrics {
	m := &runMetrics{
		registry: prometheus.NewRegistry(),
		experiments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resultsum_experiments_total",
				Help: "Experiments processed, by outcome.",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "resultsum_experiment_duration_seconds",
			Help:    "Time spent loading, aggregating and reporting one experiment.",
			Buckets: prometheus.DefBuckets,
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resultsum_skipped_cells_total",
			Help: "Model and job cells left empty because no scores were found.",
		}),
		files: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resultsum_report_files_total",
			Help: "Report files written.",
		}),
	}
	m.registry.MustRegister(m.experiments, m.duration, m.skipped, m.files)
	return m
}

func (m *runMetrics) observe(status string, d time.Duration) {
	m.experiments.WithLabelValues(status).Inc()
	m.duration.Observe(d.Seconds())
}

// flush writes the registry in the text exposition format.
func (m *runMetrics) flush(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
