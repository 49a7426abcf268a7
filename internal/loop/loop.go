package loop

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/internal/api"
	"github.com/thatsimonsguy/irrigation-controller/internal/faults"
	"github.com/thatsimonsguy/irrigation-controller/internal/history"
	"github.com/thatsimonsguy/irrigation-controller/internal/model"
	"github.com/thatsimonsguy/irrigation-controller/internal/pump"
	"github.com/thatsimonsguy/irrigation-controller/internal/router"
)

type Sensors interface {
	Sample(now time.Time) model.SensorSample
}

type Connectivity interface {
	Connected() bool
	Reconnect(ctx context.Context) (string, error)
}

type Listener interface {
	Rebind(addr string) error
}

type Telemetry interface {
	Sample(s model.SensorSample)
	Fault(err error)
	Threshold(v float64)
	Update(at time.Time, message string)
}

type Kicker interface {
	Kick()
}

type Settings struct {
	AcceptTimeout   time.Duration
	WatchdogTimeout time.Duration
	GCInterval      time.Duration
	RetryDelay      time.Duration
	HTTPPort        int
}

type Deps struct {
	Requests  <-chan *api.Exchange
	Router    *router.Router
	Pump      *pump.Controller
	Override  *pump.Override
	Sensors   Sensors
	History   *history.Sampler
	Network   Connectivity
	Listener  Listener
	Telemetry Telemetry
	Watchdog  Kicker
	Restart   func(reason string)
}

// Loop is the single goroutine that owns the pump, override, history and
// every response. Nothing else mutates that state.
type Loop struct {
	Deps
	settings Settings

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
	gc    func()

	lastCheck  time.Time
	lastGC     time.Time
	lastUpdate string
}

func New(d Deps, s Settings) *Loop {
	if s.RetryDelay == 0 {
		s.RetryDelay = time.Second
	}
	return &Loop{
		Deps:     d,
		settings: s,
		now:      time.Now,
		sleep:    sleepCtx,
		gc:       debug.FreeOSMemory,
	}
}

// Prime runs the boot-time moisture check so a dry plant is watered before
// the network comes up.
func (l *Loop) Prime() {
	now := l.now()
	sample := l.Sensors.Sample(now)
	log.Info().Float64("moisture", sample.Moisture).Float64("threshold", l.Pump.Threshold()).Msg("Initial moisture check")
	if err := l.Pump.Evaluate(sample.Moisture, l.Override.Active(), now); err != nil {
		log.Error().Err(err).Msg("Initial pump evaluation failed")
		l.fault(err)
	}
	l.lastCheck = now
	l.lastGC = now
}

// Run iterates until ctx is cancelled or the watchdog fires. Connectivity
// and other per-iteration errors are logged and retried after RetryDelay.
func (l *Loop) Run(ctx context.Context) error {
	for {
		err := l.Iterate(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			continue
		}

		switch faults.KindOf(err) {
		case faults.WatchdogTimeout:
			log.Error().Err(err).Msg("Software watchdog reset")
			if l.Restart != nil {
				l.Restart("watchdog")
			}
			return err
		case faults.ConnectivityError:
			log.Warn().Err(err).Msg("Network unavailable, retrying next iteration")
		default:
			log.Error().Err(err).Msg("Iteration failed")
		}
		l.fault(err)
		if err := l.sleep(ctx, l.settings.RetryDelay); err != nil {
			return err
		}
	}
}

// Iterate runs one pass: accept at most one request, dispatch it, sample,
// record history, evaluate the pump, answer, then housekeeping.
func (l *Loop) Iterate(ctx context.Context) error {
	ex, err := l.accept(ctx)
	if err != nil {
		return err
	}
	now := l.now()

	var outcome router.Outcome
	if ex != nil {
		if router.Quiet(ex.Path) {
			log.Debug().Str("path", ex.Path).Msg("Request path")
		} else {
			log.Info().Str("path", ex.Path).Msg("Request path")
		}
		outcome = l.Router.Dispatch(ctx, ex.Request(), now)
		l.afterDispatch(outcome, now)
	}

	sample := l.Sensors.Sample(now)
	if l.Telemetry != nil {
		l.Telemetry.Sample(sample)
	}
	l.History.Offer(sample)

	if err := l.Pump.Evaluate(sample.Moisture, l.Override.Active(), now); err != nil {
		log.Error().Err(err).Msg("Pump evaluation failed")
		l.fault(err)
	}

	if ex != nil {
		ex.Respond(l.Router.Respond(outcome, router.View{
			Sample:        sample,
			History:       l.History.Points(),
			UpdateMessage: l.lastUpdate,
		}))
	}

	l.Pump.CheckCooldown(now)

	if !l.lastCheck.IsZero() && now.Sub(l.lastCheck) > l.settings.WatchdogTimeout {
		return faults.New(faults.WatchdogTimeout, "loop", fmt.Errorf("%s since last iteration", now.Sub(l.lastCheck).Truncate(time.Second)))
	}
	l.lastCheck = now
	if l.Watchdog != nil {
		l.Watchdog.Kick()
	}

	if l.settings.GCInterval > 0 && now.Sub(l.lastGC) >= l.settings.GCInterval {
		l.gc()
		l.lastGC = now
	}

	if l.Network != nil && !l.Network.Connected() {
		log.Warn().Msg("Lost network connection. Attempting to reconnect...")
		// Reconnect blocks past the runtime cap, so the pump cannot run through it.
		if l.Pump.Running() {
			if err := l.Pump.Deactivate(now, pump.ReasonNetworkLost); err != nil {
				return err
			}
		}
		ip, err := l.Network.Reconnect(ctx)
		if err != nil {
			return err
		}
		addr := net.JoinHostPort(ip, strconv.Itoa(l.settings.HTTPPort))
		if err := l.Listener.Rebind(addr); err != nil {
			return faults.New(faults.ConnectivityError, "rebind", err)
		}
	}
	return nil
}

func (l *Loop) accept(ctx context.Context) (*api.Exchange, error) {
	timer := time.NewTimer(l.settings.AcceptTimeout)
	defer timer.Stop()

	select {
	case ex := <-l.Requests:
		return ex, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loop) afterDispatch(o router.Outcome, now time.Time) {
	if o.Err != nil && faults.KindOf(o.Err) != faults.RequestError {
		l.fault(o.Err)
	}
	if o.Action == router.ActionUpdate {
		l.lastUpdate = o.UpdateMessage
	}
	if l.Telemetry == nil {
		return
	}
	switch {
	case o.Action == router.ActionThreshold && o.Err == nil:
		l.Telemetry.Threshold(l.Pump.Threshold())
	case o.Action == router.ActionUpdate:
		l.Telemetry.Update(now, o.UpdateMessage)
	}
}

func (l *Loop) fault(err error) {
	if l.Telemetry != nil {
		l.Telemetry.Fault(err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
