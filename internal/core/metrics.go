package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// serviceMetrics counts service operations. With a nil registerer the
// collectors still work but are not exported.
type serviceMetrics struct {
	operations *prometheus.CounterVec
	parseTime  *prometheus.HistogramVec
	datasets   prometheus.Gauge
	inputFiles prometheus.Gauge
}

func newServiceMetrics(reg prometheus.Registerer) (*serviceMetrics, error) {
	m := &serviceMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overlay",
			Subsystem: "core",
			Name:      "operations_total",
			Help:      "Service operations by name and outcome",
		}, []string{"operation", "outcome"}),

		parseTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "overlay",
			Subsystem: "core",
			Name:      "parse_duration_seconds",
			Help:      "Time spent decoding uploads",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),

		datasets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "overlay",
			Subsystem: "core",
			Name:      "datasets",
			Help:      "Datasets currently held in memory",
		}),

		inputFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "overlay",
			Subsystem: "core",
			Name:      "input_files",
			Help:      "Input files currently held in memory",
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.operations, m.parseTime, m.datasets, m.inputFiles} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// observe records the outcome of one operation.
func (m *serviceMetrics) observe(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = MapError(err).Code
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *serviceMetrics) timeParse(kind string, start time.Time) {
	m.parseTime.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
