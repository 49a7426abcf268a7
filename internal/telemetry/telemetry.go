// Package telemetry fans controller events out to the journal, metrics,
// MQTT and operator notifications. Every sink is optional.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/db"
	"github.com/thatsimonsguy/irrigation-controller/internal/faults"
	"github.com/thatsimonsguy/irrigation-controller/internal/model"
	"github.com/thatsimonsguy/irrigation-controller/internal/mqtt"
	"github.com/thatsimonsguy/irrigation-controller/internal/pump"
)

type Journal interface {
	Append(ctx context.Context, e db.Event) (int64, error)
}

type Metrics interface {
	Observe(s model.SensorSample)
	PumpState(state model.PumpState)
	Threshold(v float64)
	Count(name string, tags ...string)
}

type Notifier interface {
	Notify(key, title, message string) (bool, error)
}

type Hub struct {
	Journal   Journal
	Metrics   Metrics
	Publisher mqtt.Publisher
	Notifier  Notifier

	// async runs slow deliveries off the control loop.
	async func(func())
}

func NewHub(j Journal, m Metrics, p mqtt.Publisher, n Notifier) *Hub {
	return &Hub{Journal: j, Metrics: m, Publisher: p, Notifier: n, async: func(f func()) { go f() }}
}

func (h *Hub) Boot(at time.Time, detail string) {
	h.journal(db.Event{Kind: db.EventBoot, At: at, Detail: detail})
	h.count("boot")
}

// PumpEvent is registered with pump.Controller.OnEvent.
func (h *Hub) PumpEvent(e pump.Event) {
	if h.Metrics != nil {
		h.Metrics.PumpState(e.State)
	}

	switch e.State {
	case model.PumpRunning:
		h.journal(db.Event{Kind: db.EventPumpOn, At: e.At, Detail: string(e.Reason)})
		h.count("pump.activation", "reason:"+string(e.Reason))
	case model.PumpCooldown:
		h.journal(db.Event{Kind: db.EventPumpOff, At: e.At, Detail: string(e.Reason), Duration: e.Record.Duration})
		h.count("pump.deactivation", "reason:"+string(e.Reason))
		if e.Reason == pump.ReasonMaxRuntime {
			h.notify(string(pump.ReasonMaxRuntime), "Pump runtime cap hit",
				fmt.Sprintf("Pump stopped after %s without reaching the moisture threshold.", e.Record.Duration))
		}
	case model.PumpIdle:
		return
	}

	if h.Publisher != nil {
		if err := h.Publisher.PublishPumpEvent(mqtt.PumpEvent{
			State:    e.State,
			Reason:   string(e.Reason),
			At:       e.At,
			Duration: e.Record.Duration,
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to publish pump event")
		}
	}
}

func (h *Hub) Sample(s model.SensorSample) {
	if h.Metrics != nil {
		h.Metrics.Observe(s)
	}
	if h.Publisher != nil {
		if err := h.Publisher.PublishSample(s); err != nil {
			log.Warn().Err(err).Msg("Failed to publish sensor sample")
		}
	}
}

func (h *Hub) Threshold(v float64) {
	if h.Metrics != nil {
		h.Metrics.Threshold(v)
	}
}

// Fault records a classified error. Sensor and connectivity faults also
// page the operator.
func (h *Hub) Fault(err error) {
	if err == nil {
		return
	}
	kind := faults.KindOf(err)
	h.journal(db.Event{Kind: db.EventFault, At: time.Now(), Detail: err.Error()})
	h.count("fault", "kind:"+string(kind))

	switch kind {
	case faults.SensorFault:
		h.notify(string(kind), "Sensor fault", err.Error())
	case faults.ConnectivityError:
		h.notify(string(kind), "Network lost", err.Error())
	case faults.ActuatorFault:
		h.notify(string(kind), "Actuator fault", err.Error())
	}
}

func (h *Hub) Restart(at time.Time, reason string) {
	h.journal(db.Event{Kind: db.EventRestart, At: at, Detail: reason})
	h.count("restart", "reason:"+reason)
	if h.Notifier != nil {
		// Synchronous: the process is about to exit.
		if _, err := h.Notifier.Notify("restart", "Controller restarting", reason); err != nil {
			log.Warn().Err(err).Msg("Failed to send restart notification")
		}
	}
}

func (h *Hub) Update(at time.Time, message string) {
	h.journal(db.Event{Kind: db.EventUpdate, At: at, Detail: message})
}

func (h *Hub) Shutdown(at time.Time) {
	h.journal(db.Event{Kind: db.EventShutdown, At: at})
}

func (h *Hub) journal(e db.Event) {
	if h.Journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := h.Journal.Append(ctx, e); err != nil {
		log.Warn().Err(err).Str("kind", string(e.Kind)).Msg("Failed to journal event")
	}
}

func (h *Hub) count(name string, tags ...string) {
	if h.Metrics != nil {
		h.Metrics.Count(name, tags...)
	}
}

func (h *Hub) notify(key, title, message string) {
	if h.Notifier == nil {
		return
	}
	h.async(func() {
		if _, err := h.Notifier.Notify(key, title, message); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to send notification")
		}
	})
}
