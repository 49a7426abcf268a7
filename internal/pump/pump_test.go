package pump

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/irrigation-controller/internal/faults"
	"github.com/thatsimonsguy/irrigation-controller/internal/gpio"
	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

var t0 = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func newTestController() (*Controller, *gpio.FakeOutput) {
	out := &gpio.FakeOutput{}
	c := NewController(out, Settings{
		Threshold:  30,
		MaxRunTime: 60 * time.Second,
		Cooldown:   30 * time.Second,
		LogSize:    10,
	})
	return c, out
}

func TestEvaluate_DryStartsPump(t *testing.T) {
	c, out := newTestController()

	require.NoError(t, c.Evaluate(20, false, t0))

	assert.Equal(t, model.PumpRunning, c.State())
	assert.True(t, out.Active())
	recs := c.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, t0, recs[0].StartedAt)
	assert.Zero(t, recs[0].Duration)
}

func TestEvaluate_MaxRuntimeForcesCooldown(t *testing.T) {
	c, out := newTestController()
	require.NoError(t, c.Evaluate(20, false, t0))

	require.NoError(t, c.Evaluate(20, false, t0.Add(61*time.Second)))

	assert.Equal(t, model.PumpCooldown, c.State())
	assert.False(t, out.Active())
	assert.Equal(t, 61*time.Second, c.Records()[0].Duration)
}

func TestEvaluate_MaxRuntimeAppliesUnderOverride(t *testing.T) {
	c, _ := newTestController()
	require.NoError(t, c.Activate(t0, ReasonManual))

	require.NoError(t, c.Evaluate(5, true, t0.Add(59*time.Second)))
	assert.Equal(t, model.PumpRunning, c.State())

	require.NoError(t, c.Evaluate(5, true, t0.Add(60*time.Second)))
	assert.Equal(t, model.PumpCooldown, c.State())
}

func TestEvaluate_OverrideSuppressesAutomatic(t *testing.T) {
	c, out := newTestController()

	require.NoError(t, c.Evaluate(5, true, t0))

	assert.Equal(t, model.PumpIdle, c.State())
	assert.Empty(t, out.Writes)
	assert.Empty(t, c.Records())
}

func TestEvaluate_SatisfiedStopsEarly(t *testing.T) {
	c, _ := newTestController()
	require.NoError(t, c.Evaluate(20, false, t0))

	require.NoError(t, c.Evaluate(30, false, t0.Add(12*time.Second+400*time.Millisecond)))

	assert.Equal(t, model.PumpCooldown, c.State())
	assert.Equal(t, 12*time.Second, c.Records()[0].Duration)
}

func TestEvaluate_CooldownBoundary(t *testing.T) {
	c, _ := newTestController()
	require.NoError(t, c.Evaluate(20, false, t0))
	stop := t0.Add(10 * time.Second)
	require.NoError(t, c.Evaluate(50, false, stop))
	require.Equal(t, model.PumpCooldown, c.State())

	// Still dry but cooling down: no reactivation.
	require.NoError(t, c.Evaluate(10, false, stop.Add(29*time.Second)))
	assert.Equal(t, model.PumpCooldown, c.State())
	assert.Len(t, c.Records(), 1)

	require.NoError(t, c.Evaluate(10, false, stop.Add(30*time.Second)))
	assert.Equal(t, model.PumpIdle, c.State())

	require.NoError(t, c.Evaluate(10, false, stop.Add(31*time.Second)))
	assert.Equal(t, model.PumpRunning, c.State())
	assert.Len(t, c.Records(), 2)
}

func TestActivateIsIdempotent(t *testing.T) {
	c, out := newTestController()

	require.NoError(t, c.Activate(t0, ReasonManual))
	require.NoError(t, c.Activate(t0.Add(time.Second), ReasonManual))

	assert.Equal(t, []bool{true}, out.Writes)
	assert.Len(t, c.Records(), 1)
}

func TestDeactivateWhenIdleIsNoop(t *testing.T) {
	c, out := newTestController()

	require.NoError(t, c.Deactivate(t0, ReasonManual))

	assert.Equal(t, model.PumpIdle, c.State())
	assert.Empty(t, out.Writes)
}

func TestActivationLogEvictsOldest(t *testing.T) {
	c, _ := newTestController()

	for i := 0; i < 12; i++ {
		at := t0.Add(time.Duration(i) * time.Minute)
		require.NoError(t, c.Activate(at, ReasonManual))
		require.NoError(t, c.Deactivate(at.Add(5*time.Second), ReasonManual))
	}

	recs := c.Records()
	require.Len(t, recs, 10)
	assert.Equal(t, t0.Add(2*time.Minute), recs[0].StartedAt)
	assert.Equal(t, t0.Add(11*time.Minute), recs[9].StartedAt)
}

func TestSetThreshold(t *testing.T) {
	c, _ := newTestController()

	for _, bad := range []float64{-5, 150} {
		err := c.SetThreshold(bad)
		assert.Equal(t, faults.RequestError, faults.KindOf(err))
		assert.Equal(t, 30.0, c.Threshold())
	}

	require.NoError(t, c.SetThreshold(45.5))
	assert.Equal(t, 45.5, c.Threshold())
	require.NoError(t, c.SetThreshold(0))
	require.NoError(t, c.SetThreshold(100))
}

func TestActuatorFailureLeavesStateUnchanged(t *testing.T) {
	c, out := newTestController()
	out.Fail = true

	err := c.Evaluate(10, false, t0)

	assert.Equal(t, faults.ActuatorFault, faults.KindOf(err))
	assert.ErrorIs(t, err, gpio.ErrFakeWrite)
	assert.Equal(t, model.PumpIdle, c.State())
	assert.Empty(t, c.Records())
}

func TestEventsEmitted(t *testing.T) {
	c, _ := newTestController()
	var events []Event
	c.OnEvent(func(e Event) { events = append(events, e) })

	require.NoError(t, c.Evaluate(10, false, t0))
	require.NoError(t, c.Evaluate(10, false, t0.Add(60*time.Second)))
	c.CheckCooldown(t0.Add(90 * time.Second))

	require.Len(t, events, 3)
	assert.Equal(t, ReasonThreshold, events[0].Reason)
	assert.Equal(t, ReasonMaxRuntime, events[1].Reason)
	assert.Equal(t, 60*time.Second, events[1].Record.Duration)
	assert.Equal(t, model.PumpIdle, events[2].State)
}

func TestOverride(t *testing.T) {
	var o Override
	assert.False(t, o.Active())
	o.Set(true)
	assert.True(t, o.Active())
	o.Set(false)
	assert.False(t, o.Active())
}
