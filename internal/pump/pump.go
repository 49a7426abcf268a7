package pump

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/internal/faults"
	"github.com/thatsimonsguy/irrigation-controller/internal/model"
	"github.com/thatsimonsguy/irrigation-controller/internal/ring"
)

// Switch is the pump relay. gpio.Output satisfies it.
type Switch interface {
	Set(active bool) error
}

type Reason string

const (
	ReasonThreshold   Reason = "below_threshold"
	ReasonSatisfied   Reason = "moisture_satisfied"
	ReasonMaxRuntime  Reason = "max_runtime"
	ReasonManual      Reason = "manual"
	ReasonShutdown    Reason = "shutdown"
	ReasonNetworkLost Reason = "network_lost"
)

type Event struct {
	State  model.PumpState
	Reason Reason
	At     time.Time
	Record model.ActivationRecord
}

type Settings struct {
	Threshold  float64
	MaxRunTime time.Duration
	Cooldown   time.Duration
	LogSize    int
}

// Controller owns the pump relay and its Idle/Running/Cooldown state. It is
// driven from a single goroutine and holds no lock.
type Controller struct {
	sw       Switch
	settings Settings

	state            model.PumpState
	lastActivation   time.Time
	lastDeactivation time.Time
	records          *ring.Buffer[model.ActivationRecord]

	listener func(Event)
}

func NewController(sw Switch, s Settings) *Controller {
	return &Controller{
		sw:       sw,
		settings: s,
		state:    model.PumpIdle,
		records:  ring.New[model.ActivationRecord](s.LogSize),
	}
}

// OnEvent registers a callback invoked after every state transition.
func (c *Controller) OnEvent(fn func(Event)) {
	c.listener = fn
}

func (c *Controller) State() model.PumpState { return c.state }

func (c *Controller) Running() bool { return c.state == model.PumpRunning }

func (c *Controller) Threshold() float64 { return c.settings.Threshold }

// Records returns the activation log, oldest first.
func (c *Controller) Records() []model.ActivationRecord { return c.records.Items() }

// SetThreshold accepts values in [0, 100]. Anything else is a RequestError
// and leaves the threshold untouched.
func (c *Controller) SetThreshold(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 100 {
		return faults.New(faults.RequestError, "set_threshold", fmt.Errorf("%v outside [0,100]", v))
	}
	c.settings.Threshold = v
	log.Info().Float64("threshold", v).Msg("Moisture threshold updated")
	return nil
}

// Activate energizes the pump. It is a no-op while Running.
func (c *Controller) Activate(now time.Time, reason Reason) error {
	if c.state == model.PumpRunning {
		return nil
	}
	if err := c.sw.Set(true); err != nil {
		return faults.New(faults.ActuatorFault, "pump_activate", err)
	}

	c.state = model.PumpRunning
	c.lastActivation = now
	c.records.Push(model.ActivationRecord{StartedAt: now})

	log.Info().Str("reason", string(reason)).Msg("Pump activated")
	c.emit(Event{State: c.state, Reason: reason, At: now, Record: *c.records.Last()})
	return nil
}

// Deactivate de-energizes the pump, completes the pending activation record
// and enters Cooldown. It is a no-op unless Running.
func (c *Controller) Deactivate(now time.Time, reason Reason) error {
	if c.state != model.PumpRunning {
		return nil
	}
	if err := c.sw.Set(false); err != nil {
		return faults.New(faults.ActuatorFault, "pump_deactivate", err)
	}

	elapsed := now.Sub(c.lastActivation).Truncate(time.Second)
	if rec := c.records.Last(); rec != nil {
		rec.Duration = elapsed
	}
	c.state = model.PumpCooldown
	c.lastDeactivation = now

	log.Info().Str("reason", string(reason)).Dur("ran", elapsed).Msg("Pump deactivated")
	c.emit(Event{State: c.state, Reason: reason, At: now, Record: *c.records.Last()})
	return nil
}

// CheckCooldown moves Cooldown to Idle once the cooldown period has elapsed.
func (c *Controller) CheckCooldown(now time.Time) {
	if c.state != model.PumpCooldown {
		return
	}
	if now.Sub(c.lastDeactivation) >= c.settings.Cooldown {
		c.state = model.PumpIdle
		log.Debug().Msg("Pump cooldown complete")
		c.emit(Event{State: c.state, At: now})
	}
}

func (c *Controller) runtimeExceeded(now time.Time) bool {
	return c.state == model.PumpRunning && now.Sub(c.lastActivation) >= c.settings.MaxRunTime
}

// Evaluate runs the automatic watering rules once. The runtime cap is
// enforced even while override is active.
func (c *Controller) Evaluate(moisture float64, override bool, now time.Time) error {
	var err error

	if !override {
		switch {
		case moisture < c.settings.Threshold && c.state != model.PumpCooldown:
			if c.state == model.PumpIdle {
				err = c.Activate(now, ReasonThreshold)
			} else if c.runtimeExceeded(now) {
				err = c.Deactivate(now, ReasonMaxRuntime)
			}
		case moisture >= c.settings.Threshold && c.state == model.PumpRunning:
			err = c.Deactivate(now, ReasonSatisfied)
		}
	}

	c.CheckCooldown(now)

	if c.runtimeExceeded(now) {
		log.Warn().Dur("limit", c.settings.MaxRunTime).Msg("Pump hit max runtime")
		if capErr := c.Deactivate(now, ReasonMaxRuntime); capErr != nil {
			err = capErr
		}
	}
	return err
}

func (c *Controller) emit(e Event) {
	if c.listener != nil {
		c.listener(e)
	}
}

// Override suspends automatic control while set.
type Override struct {
	active bool
}

func (o *Override) Set(active bool) {
	if o.active != active {
		log.Info().Bool("override", active).Msg("Manual override changed")
	}
	o.active = active
}

func (o *Override) Active() bool { return o.active }
