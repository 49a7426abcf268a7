package router

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/irrigation-controller/internal/faults"
	"github.com/thatsimonsguy/irrigation-controller/internal/gpio"
	"github.com/thatsimonsguy/irrigation-controller/internal/led"
	"github.com/thatsimonsguy/irrigation-controller/internal/model"
	"github.com/thatsimonsguy/irrigation-controller/internal/pump"
)

type fakeUpdater struct {
	msg   string
	calls int
}

func (f *fakeUpdater) Apply(context.Context) string {
	f.calls++
	return f.msg
}

type fixture struct {
	router   *Router
	pump     *pump.Controller
	pumpOut  *gpio.FakeOutput
	ledOut   *gpio.FakeOutput
	light    *led.LED
	override *pump.Override
	updater  *fakeUpdater
}

func newFixture() *fixture {
	f := &fixture{
		pumpOut:  &gpio.FakeOutput{},
		ledOut:   &gpio.FakeOutput{},
		override: &pump.Override{},
		updater:  &fakeUpdater{msg: "No new software available"},
	}
	f.pump = pump.NewController(f.pumpOut, pump.Settings{Threshold: 30, MaxRunTime: time.Minute, Cooldown: 30 * time.Second, LogSize: 10})
	f.light = led.New(f.ledOut)
	f.router = New(f.pump, f.light, f.override, f.updater)
	return f
}

func req(raw string) Request {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return Request{Path: u.Path, Query: u.Query()}
}

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestClassify(t *testing.T) {
	f := newFixture()

	tests := []struct {
		path string
		want Action
	}{
		{"/", ActionIndex},
		{"/lighton", ActionLightOn},
		{"/lightoff", ActionLightOff},
		{"/pump?action=on", ActionPump},
		{"/pump?action=off", ActionPump},
		{"/pump?action=maybe", ActionBadPump},
		{"/pump", ActionBadPump},
		{"/autowater", ActionAutoWater},
		{"/threshold?value=40", ActionThreshold},
		{"/data", ActionData},
		{"/pumplog", ActionPumpLog},
		{"/update", ActionUpdate},
		{"/favicon.ico", ActionNotFound},
		{"/lighton/extra", ActionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, _ := f.router.Classify(req(tt.path))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLight(t *testing.T) {
	f := newFixture()

	out := f.router.Dispatch(context.Background(), req("/lighton"), now)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.True(t, f.light.On())

	f.router.Dispatch(context.Background(), req("/lightoff"), now)
	assert.False(t, f.light.On())
}

func TestManualPumpSetsOverride(t *testing.T) {
	f := newFixture()

	out := f.router.Dispatch(context.Background(), req("/pump?action=on"), now)
	require.NoError(t, out.Err)
	assert.True(t, f.override.Active())
	assert.Equal(t, model.PumpRunning, f.pump.State())

	f.router.Dispatch(context.Background(), req("/pump?action=off"), now.Add(10*time.Second))
	assert.True(t, f.override.Active())
	assert.Equal(t, model.PumpCooldown, f.pump.State())

	f.router.Dispatch(context.Background(), req("/autowater"), now.Add(11*time.Second))
	assert.False(t, f.override.Active())
}

func TestThreshold(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   float64
	}{
		{"/threshold?value=42.5", http.StatusOK, 42.5},
		{"/threshold?value=-5", http.StatusBadRequest, 30},
		{"/threshold?value=150", http.StatusBadRequest, 30},
		{"/threshold?value=abc", http.StatusBadRequest, 30},
		{"/threshold?value=", http.StatusBadRequest, 30},
		{"/threshold", http.StatusBadRequest, 30},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f := newFixture()
			out := f.router.Dispatch(context.Background(), req(tt.path), now)
			assert.Equal(t, tt.status, out.Status)
			assert.Equal(t, tt.want, f.pump.Threshold())

			res := f.router.Respond(out, View{})
			assert.Equal(t, tt.status, res.Status)
			if tt.status == http.StatusBadRequest {
				assert.Equal(t, "Invalid threshold value", res.Body)
				assert.Equal(t, faults.RequestError, faults.KindOf(out.Err))
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	f := newFixture()

	out := f.router.Dispatch(context.Background(), req("/nope"), now)
	res := f.router.Respond(out, View{})

	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Equal(t, "<h1>404 Not Found</h1>", res.Body)
}

func TestRespondData(t *testing.T) {
	f := newFixture()

	out := f.router.Dispatch(context.Background(), req("/data"), now)
	res := f.router.Respond(out, View{Sample: model.SensorSample{Temperature: 19.04, Moisture: 55.556}})

	assert.Equal(t, `{"temperature": 19.0, "moisture": 55.56}`, res.Body)
}

func TestRespondPumpLog(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.pump.Activate(now, pump.ReasonManual))
	require.NoError(t, f.pump.Deactivate(now.Add(7*time.Second), pump.ReasonManual))

	out := f.router.Dispatch(context.Background(), req("/pumplog"), now)
	res := f.router.Respond(out, View{})

	assert.Equal(t, "<p>Pump Activated (01/06/2024 at 12:00:00 for 7 seconds)</p>", res.Body)
}

func TestUpdate(t *testing.T) {
	f := newFixture()

	out := f.router.Dispatch(context.Background(), req("/update"), now)
	res := f.router.Respond(out, View{})

	assert.Equal(t, 1, f.updater.calls)
	assert.Equal(t, `{"message":"No new software available"}`, res.Body)
}

func TestRespondPageReflectsState(t *testing.T) {
	f := newFixture()
	f.router.Dispatch(context.Background(), req("/pump?action=on"), now)

	out := f.router.Dispatch(context.Background(), req("/"), now)
	res := f.router.Respond(out, View{Sample: model.SensorSample{Temperature: 20, Moisture: 12}})

	assert.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, res.Body, "Pump is ON")
	assert.Contains(t, res.Body, "disabled")
}

func TestRespondPageShowsUpdateMessage(t *testing.T) {
	f := newFixture()

	out := f.router.Dispatch(context.Background(), req("/"), now)
	res := f.router.Respond(out, View{UpdateMessage: "No new software available"})

	assert.Contains(t, res.Body, "No new software available")
}

func TestActuatorFailureStillOK(t *testing.T) {
	f := newFixture()
	f.ledOut.Fail = true

	out := f.router.Dispatch(context.Background(), req("/lighton"), now)

	assert.Equal(t, http.StatusOK, out.Status)
	assert.ErrorIs(t, out.Err, gpio.ErrFakeWrite)
	assert.False(t, f.light.On())
}

func TestQuiet(t *testing.T) {
	assert.True(t, Quiet("/data"))
	assert.True(t, Quiet("/pumplog"))
	assert.False(t, Quiet("/lighton"))
}
