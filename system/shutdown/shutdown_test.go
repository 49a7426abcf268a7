package shutdown

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/irrigation-controller/internal/gpio"
)

func captureExit(t *testing.T) *[]int {
	t.Helper()
	var codes []int
	orig := ExitFunc
	ExitFunc = func(code int) { codes = append(codes, code) }
	reset()
	t.Cleanup(func() {
		ExitFunc = orig
		reset()
	})
	return &codes
}

func TestRestartDeactivatesOutputs(t *testing.T) {
	codes := captureExit(t)
	pumpOut, ledOut := &gpio.FakeOutput{}, &gpio.FakeOutput{}
	pumpOut.Set(true)
	ledOut.Set(true)

	Restart("watchdog", pumpOut, nil, ledOut)

	assert.False(t, pumpOut.Active())
	assert.False(t, ledOut.Active())
	assert.Equal(t, []int{RestartExitCode}, *codes)
}

func TestOnlyFirstExitWins(t *testing.T) {
	codes := captureExit(t)

	Shutdown()
	Restart("update")
	ShutdownWithError(errors.New("x"), "late")

	assert.Equal(t, []int{0}, *codes)
}

func TestShutdownWithErrorDeactivatesAndFails(t *testing.T) {
	codes := captureExit(t)
	pumpOut := &gpio.FakeOutput{}
	require.NoError(t, pumpOut.Set(true))

	ShutdownWithError(errors.New("line busy"), "Failed to open LED output", pumpOut)

	assert.False(t, pumpOut.Active())
	assert.Equal(t, []int{1}, *codes)
}

func TestFailedDeactivationStillExits(t *testing.T) {
	codes := captureExit(t)
	out := &gpio.FakeOutput{Fail: true}

	Restart("update", out)

	assert.Equal(t, []int{RestartExitCode}, *codes)
}
