// Package metrics содержит счётчики Prometheus для жизненного цикла замеров.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Исходы запуска сегментации.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeConflict  = "conflict"
	OutcomeStale     = "stale"
)

// Metrics содержит набор коллекторов сервиса.
type Metrics struct {
	MeasurementsCreated prometheus.Counter
	SegmentationRuns    *prometheus.CounterVec
	DeviceDuration      *prometheus.HistogramVec
}

// New создаёт коллекторы и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MeasurementsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carton",
			Name:      "measurements_created_total",
			Help:      "Number of measurement records created.",
		}),
		SegmentationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carton",
			Name:      "segmentation_runs_total",
			Help:      "Segmentation runs by outcome.",
		}, []string{"outcome"}),
		DeviceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "carton",
			Name:      "device_request_duration_seconds",
			Help:      "Latency of calls to the segmentation device.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"result"}),
	}
	reg.MustRegister(m.MeasurementsCreated, m.SegmentationRuns, m.DeviceDuration)
	return m
}

// MeasurementCreated увеличивает счётчик созданных замеров.
func (m *Metrics) MeasurementCreated() {
	if m == nil {
		return
	}
	m.MeasurementsCreated.Inc()
}

// SegmentationRun учитывает исход запуска сегментации.
func (m *Metrics) SegmentationRun(outcome string) {
	if m == nil {
		return
	}
	m.SegmentationRuns.WithLabelValues(outcome).Inc()
}

// ObserveDevice записывает длительность вызова устройства.
func (m *Metrics) ObserveDevice(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.DeviceDuration.WithLabelValues(result).Observe(d.Seconds())
}
