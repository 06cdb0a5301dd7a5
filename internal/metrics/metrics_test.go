package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Collect(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.MeasurementCreated()
	m.MeasurementCreated()
	m.SegmentationRun(OutcomeCompleted)
	m.SegmentationRun(OutcomeFailed)
	m.SegmentationRun(OutcomeFailed)
	m.ObserveDevice("ok", 150*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	got := make(map[string]float64)
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				key := f.GetName()
				for _, l := range metric.GetLabel() {
					key += ":" + l.GetValue()
				}
				got[key] = metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				got[f.GetName()] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}

	assert.Equal(t, 2.0, got["carton_measurements_created_total"])
	assert.Equal(t, 1.0, got["carton_segmentation_runs_total:completed"])
	assert.Equal(t, 2.0, got["carton_segmentation_runs_total:failed"])
	assert.Equal(t, 1.0, got["carton_device_request_duration_seconds"])
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.MeasurementCreated()
		m.SegmentationRun(OutcomeConflict)
		m.ObserveDevice("error", time.Second)
	})
}
