package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AnalysisMetrics contains Prometheus metrics for the frame-parallel analysis runs
type AnalysisMetrics struct {
	registry *prometheus.Registry

	runsTotal         *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	framesTotal       *prometheus.CounterVec
	degradationsTotal *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
	threadsGauge      *prometheus.GaugeVec
}

// NewAnalysisMetrics creates and registers new analysis metrics
func NewAnalysisMetrics(registry *prometheus.Registry) (*AnalysisMetrics, error) {
	m := &AnalysisMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *AnalysisMetrics) initMetrics() {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lpc_runs_total",
			Help: "Total number of analysis runs",
		},
		[]string{"operation", "status"}, // status: success, error, cancelled
	)

	m.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lpc_run_duration_seconds",
			Help:    "Wall-clock duration of analysis runs",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16), // 0.5ms to ~16s
		},
		[]string{"operation"},
	)

	m.framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lpc_frames_total",
			Help: "Total number of frames processed",
		},
		[]string{"operation", "outcome"}, // outcome: ok, degraded, invalid
	)

	m.degradationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lpc_frame_degradations_total",
			Help: "Frames that hit a recoverable numeric condition",
		},
		[]string{"operation", "kind"}, // kind: zero_energy, order_truncated, root_not_found, solve_failed
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lpc_errors_total",
			Help: "Total number of failed analysis runs by error category",
		},
		[]string{"operation", "error_type"},
	)

	m.threadsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lpc_threads",
			Help: "Number of threads used by the most recent run",
		},
		[]string{"operation"},
	)
}

// Describe implements the prometheus.Collector interface
func (m *AnalysisMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.runsTotal.Describe(ch)
	m.runDuration.Describe(ch)
	m.framesTotal.Describe(ch)
	m.degradationsTotal.Describe(ch)
	m.errorsTotal.Describe(ch)
	m.threadsGauge.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *AnalysisMetrics) Collect(ch chan<- prometheus.Metric) {
	m.runsTotal.Collect(ch)
	m.runDuration.Collect(ch)
	m.framesTotal.Collect(ch)
	m.degradationsTotal.Collect(ch)
	m.errorsTotal.Collect(ch)
	m.threadsGauge.Collect(ch)
}

// RecordOperation implements Recorder
func (m *AnalysisMetrics) RecordOperation(operation, status string) {
	m.runsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder
func (m *AnalysisMetrics) RecordDuration(operation string, seconds float64) {
	m.runDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder
func (m *AnalysisMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordFrames implements AnalysisRecorder
func (m *AnalysisMetrics) RecordFrames(operation, outcome string, n int) {
	if n <= 0 {
		return
	}
	m.framesTotal.WithLabelValues(operation, outcome).Add(float64(n))
}

// RecordDegradation implements AnalysisRecorder
func (m *AnalysisMetrics) RecordDegradation(operation, kind string, n int) {
	if n <= 0 {
		return
	}
	m.degradationsTotal.WithLabelValues(operation, kind).Add(float64(n))
}

// RecordThreads implements AnalysisRecorder
func (m *AnalysisMetrics) RecordThreads(operation string, threads int) {
	m.threadsGauge.WithLabelValues(operation).Set(float64(threads))
}
