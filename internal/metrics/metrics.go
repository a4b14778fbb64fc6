// Package metrics exposes frame, alert and alarm counters to Prometheus.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayusman/vigil/internal/alarm"
	"github.com/ayusman/vigil/internal/alert"
)

// Error kinds reported per frame.
const (
	ErrorInvalidFrame = "invalid_frame"
	ErrorDetector     = "detector_unavailable"
	ErrorSession      = "session_fault"
)

// Metrics holds all application metrics
type Metrics struct {
	// Frame processing counters
	FramesProcessed atomic.Uint64
	FramesNoFace    atomic.Uint64

	// Alarm state
	AlarmActivations   atomic.Uint64
	AlarmDeactivations atomic.Uint64
	AlarmsActive       atomic.Int64

	levels   *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  prometheus.Histogram
	registry *prometheus.Registry
}

// New creates a new Metrics instance. sessions reports the number of active
// sessions; it may be nil.
func New(sessions func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		levels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_frames_by_level_total",
			Help: "Frames classified per alert level",
		}, []string{"level"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_frame_errors_total",
			Help: "Frames rejected per error kind",
		}, []string{"kind"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_frame_duration_seconds",
			Help:    "Time from frame receipt to result",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}

	m.registry.MustRegister(m.levels, m.errors, m.latency)
	m.registerGauges(sessions)

	return m
}

func (m *Metrics) registerGauges(sessions func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "vigil_frames_processed_total",
			Help: "Total frames applied to a session",
		},
		func() float64 { return float64(m.FramesProcessed.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "vigil_frames_no_face_total",
			Help: "Total frames without a detected face",
		},
		func() float64 { return float64(m.FramesNoFace.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "vigil_alarm_activations_total",
			Help: "Total alarm activation edges",
		},
		func() float64 { return float64(m.AlarmActivations.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "vigil_alarm_deactivations_total",
			Help: "Total alarm deactivation edges",
		},
		func() float64 { return float64(m.AlarmDeactivations.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "vigil_alarms_active",
			Help: "Sessions whose alarm is currently on",
		},
		func() float64 { return float64(m.AlarmsActive.Load()) },
	))

	if sessions != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "vigil_active_sessions",
				Help: "Number of active sessions",
			},
			func() float64 { return float64(sessions()) },
		))
	}
}

// ObserveFrame records one classified frame.
func (m *Metrics) ObserveFrame(level alert.Level, faceDetected bool, started time.Time) {
	m.FramesProcessed.Add(1)
	if !faceDetected {
		m.FramesNoFace.Add(1)
	}
	m.levels.WithLabelValues(level.String()).Inc()
	m.latency.Observe(time.Since(started).Seconds())
}

// ObserveError records one rejected frame.
func (m *Metrics) ObserveError(kind string) {
	m.errors.WithLabelValues(kind).Inc()
}

// Signal implements alarm.Sink.
func (m *Metrics) Signal(_ string, edge alarm.Edge) {
	switch edge {
	case alarm.Activate:
		m.AlarmActivations.Add(1)
		m.AlarmsActive.Add(1)
	case alarm.Deactivate:
		m.AlarmDeactivations.Add(1)
		m.AlarmsActive.Add(-1)
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
