// Package metrics exposes reading attempts and publish events to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sweeney/am2302-sensor/internal/am2302"
	"github.com/sweeney/am2302-sensor/internal/logic"
)

// Metrics holds the daemon's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	attempts      *prometheus.CounterVec
	duration      prometheus.Histogram
	edges         prometheus.Histogram
	temperature   prometheus.Gauge
	humidity      prometheus.Gauge
	lastSuccess   prometheus.Gauge
	events        *prometheus.CounterVec
	sensorLost    prometheus.Gauge
	mqttConnected prometheus.Gauge
	httpRequests  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "am2302_attempts_total",
			Help: "Reading attempts by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "am2302_attempt_duration_seconds",
			Help:    "Wall time of a reading attempt including the start signal.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		edges: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "am2302_edges_captured",
			Help:    "Edges recorded per capture.",
			Buckets: prometheus.LinearBuckets(0, 10, 10),
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "am2302_temperature_celsius",
			Help: "Last successfully read temperature.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "am2302_humidity_percent",
			Help: "Last successfully read relative humidity.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "am2302_last_success_timestamp_seconds",
			Help: "Unix time of the last successful reading.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "am2302_events_total",
			Help: "Events emitted by the publish policy, by type.",
		}, []string{"type"}),
		sensorLost: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "am2302_sensor_lost",
			Help: "1 while the sensor is considered lost.",
		}),
		mqttConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "am2302_mqtt_connected",
			Help: "1 while the MQTT connection is open.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "am2302_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
	}

	reg.MustRegister(
		m.attempts,
		m.duration,
		m.edges,
		m.temperature,
		m.humidity,
		m.lastSuccess,
		m.events,
		m.sensorLost,
		m.mqttConnected,
		m.httpRequests,
	)
	return m
}

// ObserveAttempt records one attempt. Readings update the gauges only on
// success, and the edge histogram skips attempts that never got the line.
func (m *Metrics) ObserveAttempt(a am2302.Attempt, err error) {
	if m == nil {
		return
	}
	outcome := am2302.Reason(err)
	m.attempts.WithLabelValues(outcome).Inc()
	m.duration.Observe(a.Duration.Seconds())
	if outcome != "line_acquisition" && outcome != "line_io" {
		m.edges.Observe(float64(a.Edges))
	}
	if err != nil {
		return
	}
	m.temperature.Set(a.Reading.Celsius())
	m.humidity.Set(a.Reading.RelativeHumidity())
	m.lastSuccess.Set(float64(a.Started.Add(a.Duration).Unix()))
}

// ObserveEvent counts a policy event and tracks loss.
func (m *Metrics) ObserveEvent(e logic.Event) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(e.Type)).Inc()
	switch e.Type {
	case logic.EventSensorLost:
		m.sensorLost.Set(1)
	case logic.EventSensorRecovered:
		m.sensorLost.Set(0)
	}
}

// SetMQTTConnected records the broker connection state.
func (m *Metrics) SetMQTTConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.mqttConnected.Set(1)
	} else {
		m.mqttConnected.Set(0)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests served by next under the given route label.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
	})
}

// Handler serves the exposition format for everything in g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{Timeout: 5 * time.Second})
}
