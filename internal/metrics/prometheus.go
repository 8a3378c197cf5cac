package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Manager owns every Prometheus instrument of the process.
type Manager struct {
	namespace   string
	waitBuckets []float64
	registry    *prometheus.Registry

	eventsTotal       *prometheus.CounterVec
	eventWriteErrors  *prometheus.CounterVec
	distance          *prometheus.GaugeVec
	sensorFailures    *prometheus.CounterVec
	arbiterWait       *prometheus.HistogramVec
	motionActive      prometheus.Gauge
	lightOn           prometheus.Gauge
	lightEnabled      prometheus.Gauge
	baseline          prometheus.Gauge
	calibrationStdDev prometheus.Gauge
	intruderAlerts    prometheus.Counter
	badgePresent      prometheus.Gauge
}

// NewManager builds and registers all instruments.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:   "homee",
		waitBuckets: []float64{.0001, .001, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		registry:    prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// Registry returns the registry to serve with promhttp.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Manager) initializeMetrics() {
	m.eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "events_total",
		Help:      "Events emitted, by kind.",
	}, []string{"kind"})

	m.eventWriteErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "event_write_errors_total",
		Help:      "Failed event writes, by writer.",
	}, []string{"writer"})

	m.distance = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "distance_cm",
		Help:      "Last valid distance reading, by sensor.",
	}, []string{"sensor"})

	m.sensorFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "sensor_failures_total",
		Help:      "Missing or out-of-range readings, by sensor.",
	}, []string{"sensor"})

	m.arbiterWait = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "arbiter_wait_seconds",
		Help:      "Time spent waiting for a device group lock.",
		Buckets:   m.waitBuckets,
	}, []string{"group"})

	m.motionActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "motion_active",
		Help:      "1 while motion is detected.",
	})

	m.lightOn = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "light_on",
		Help:      "1 while the room light is on.",
	})

	m.lightEnabled = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "light_enabled",
		Help:      "1 while the light system is enabled.",
	})

	m.baseline = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "baseline_cm",
		Help:      "Calibrated empty-scene distance.",
	})

	m.calibrationStdDev = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "calibration_stddev_cm",
		Help:      "Standard deviation of the calibration samples.",
	})

	m.intruderAlerts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "intruder_alerts_total",
		Help:      "Intruder alerts raised.",
	})

	m.badgePresent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "badge_present",
		Help:      "1 while a badge is checked in.",
	})

	m.registry.MustRegister(
		m.eventsTotal,
		m.eventWriteErrors,
		m.distance,
		m.sensorFailures,
		m.arbiterWait,
		m.motionActive,
		m.lightOn,
		m.lightEnabled,
		m.baseline,
		m.calibrationStdDev,
		m.intruderAlerts,
		m.badgePresent,
	)
}

// RecordEvent counts an emitted event.
func (m *Manager) RecordEvent(kind string) {
	if m == nil {
		return
	}

	m.eventsTotal.WithLabelValues(kind).Inc()
}

// RecordEventWriteError counts a failed write to an event writer.
func (m *Manager) RecordEventWriteError(writer string) {
	if m == nil {
		return
	}

	m.eventWriteErrors.WithLabelValues(writer).Inc()
}

// RecordDistance stores the last valid reading of a sensor.
func (m *Manager) RecordDistance(sensor string, cm float64) {
	if m == nil {
		return
	}

	m.distance.WithLabelValues(sensor).Set(cm)
}

// RecordSensorFailure counts a missing reading.
func (m *Manager) RecordSensorFailure(sensor string) {
	if m == nil {
		return
	}

	m.sensorFailures.WithLabelValues(sensor).Inc()
}

// ObserveArbiterWait records how long a loop waited for a device group.
func (m *Manager) ObserveArbiterWait(group string, wait time.Duration) {
	if m == nil {
		return
	}

	m.arbiterWait.WithLabelValues(group).Observe(wait.Seconds())
}

// SetMotionActive reflects the motion state.
func (m *Manager) SetMotionActive(active bool) {
	if m == nil {
		return
	}

	m.motionActive.Set(boolToFloat(active))
}

// SetLightOn reflects the room light output.
func (m *Manager) SetLightOn(on bool) {
	if m == nil {
		return
	}

	m.lightOn.Set(boolToFloat(on))
}

// SetLightEnabled reflects the light system switch.
func (m *Manager) SetLightEnabled(enabled bool) {
	if m == nil {
		return
	}

	m.lightEnabled.Set(boolToFloat(enabled))
}

// SetCalibration stores the calibration outcome.
func (m *Manager) SetCalibration(baseline, stdDev float64) {
	if m == nil {
		return
	}

	m.baseline.Set(baseline)
	m.calibrationStdDev.Set(stdDev)
}

// RecordIntruderAlert counts an intruder alert.
func (m *Manager) RecordIntruderAlert() {
	if m == nil {
		return
	}

	m.intruderAlerts.Inc()
}

// SetBadgePresent reflects whether a badge is checked in.
func (m *Manager) SetBadgePresent(present bool) {
	if m == nil {
		return
	}

	m.badgePresent.Set(boolToFloat(present))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}

	return 0
}
