package metrics

import (
	"net/http"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

// statsdClient is the subset of *statsd.Client the sink uses.
type statsdClient interface {
	Gauge(name string, value float64, tags []string, rate float64) error
	Incr(name string, tags []string, rate float64) error
	Close() error
}

type DatadogConfig struct {
	Enabled   bool
	Addr      string
	Namespace string
	Tags      []string
}

// Sink pushes to the local DogStatsD agent and keeps Prometheus collectors
// for the /metrics endpoint.
type Sink struct {
	dd       statsdClient
	registry *prometheus.Registry

	moisture    prometheus.Gauge
	temperature prometheus.Gauge
	pumpState   prometheus.Gauge
	threshold   prometheus.Gauge
	counters    *prometheus.CounterVec
}

func New(cfg DatadogConfig) *Sink {
	s := newSink()

	if cfg.Enabled {
		client, err := statsd.New(cfg.Addr, statsd.WithNamespace(cfg.Namespace), statsd.WithTags(cfg.Tags))
		if err != nil {
			log.Warn().Err(err).Msg("Failed to create DogStatsD client")
		} else {
			s.dd = client
			log.Info().
				Str("addr", cfg.Addr).
				Str("namespace", cfg.Namespace).
				Strs("tags", cfg.Tags).
				Msg("Datadog metrics initialized")
		}
	}
	return s
}

func newSink() *Sink {
	s := &Sink{
		registry: prometheus.NewRegistry(),
		moisture: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "irrigation_moisture_percent",
			Help: "Calibrated soil moisture.",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "irrigation_temperature_celsius",
			Help: "Board temperature.",
		}),
		pumpState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "irrigation_pump_state",
			Help: "Pump state: 0 idle, 1 running, 2 cooldown.",
		}),
		threshold: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "irrigation_moisture_threshold_percent",
			Help: "Moisture below which automatic watering starts.",
		}),
		counters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "irrigation_events_total",
			Help: "Controller events by name.",
		}, []string{"event"}),
	}
	s.registry.MustRegister(s.moisture, s.temperature, s.pumpState, s.threshold, s.counters)
	return s
}

func (s *Sink) Observe(sample model.SensorSample) {
	s.moisture.Set(sample.Moisture)
	s.temperature.Set(sample.Temperature)
	s.gauge("moisture", sample.Moisture)
	s.gauge("temperature", sample.Temperature)
}

func (s *Sink) PumpState(state model.PumpState) {
	s.pumpState.Set(float64(state))
	s.gauge("pump.state", float64(state), "state:"+state.String())
}

func (s *Sink) Threshold(v float64) {
	s.threshold.Set(v)
	s.gauge("threshold", v)
}

// Count increments the named event counter, e.g. "pump.activation" or
// "fault.sensor_fault".
func (s *Sink) Count(name string, tags ...string) {
	s.counters.WithLabelValues(name).Inc()
	if s.dd != nil {
		if err := s.dd.Incr(name, tags, 1); err != nil {
			log.Debug().Err(err).Str("metric", name).Msg("Failed to emit counter")
		}
	}
}

func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func (s *Sink) Close() error {
	if s.dd == nil {
		return nil
	}
	return s.dd.Close()
}

func (s *Sink) gauge(name string, value float64, tags ...string) {
	if s.dd == nil {
		return
	}
	if err := s.dd.Gauge(name, value, tags, 1); err != nil {
		log.Debug().Err(err).Str("metric", name).Msg("Failed to emit gauge metric")
	}
}
