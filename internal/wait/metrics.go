package wait

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	waitAttemptsTotal *prometheus.CounterVec
	waitReady         *prometheus.GaugeVec
	waitDuration      *prometheus.GaugeVec

	// Registration guard
	metricsOnce       sync.Once
	metricsRegistered bool
)

// Metrics records probe outcomes.
type Metrics struct{}

// NewMetrics creates a Metrics instance. Nothing is recorded until
// InitMetrics has run.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// InitMetrics registers the wait metrics with the default registry.
func InitMetrics() {
	metricsOnce.Do(func() {
		waitAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "containerlib_wait_attempts_total",
				Help: "Total number of readiness probe attempts",
			},
			[]string{"dependency", "result"},
		)

		waitReady = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "containerlib_wait_ready",
				Help: "Whether the dependency became ready (1=ready, 0=gave up)",
			},
			[]string{"dependency"},
		)

		waitDuration = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "containerlib_wait_duration_seconds",
				Help: "Time spent waiting for the dependency in seconds",
			},
			[]string{"dependency"},
		)

		metricsRegistered = true
	})
}

// RecordAttempt counts one probe attempt
func (m *Metrics) RecordAttempt(dependency string, result Result) {
	if !metricsRegistered || waitAttemptsTotal == nil {
		return
	}
	waitAttemptsTotal.WithLabelValues(dependency, result.Status.String()).Inc()
}

// RecordOutcome records the end of the wait for a dependency
func (m *Metrics) RecordOutcome(dependency string, ready bool, durationSeconds float64) {
	if !metricsRegistered {
		return
	}

	if waitReady != nil {
		value := 0.0
		if ready {
			value = 1.0
		}
		waitReady.WithLabelValues(dependency).Set(value)
	}

	if waitDuration != nil {
		waitDuration.WithLabelValues(dependency).Set(durationSeconds)
	}
}

// WriteTextfile writes the default registry in the text exposition format,
// for the node exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// GetWaitAttemptsTotal returns the attempts counter for testing.
func GetWaitAttemptsTotal() *prometheus.CounterVec {
	return waitAttemptsTotal
}

// GetWaitReady returns the readiness gauge for testing.
func GetWaitReady() *prometheus.GaugeVec {
	return waitReady
}

// GetWaitDuration returns the duration gauge for testing.
func GetWaitDuration() *prometheus.GaugeVec {
	return waitDuration
}
