package gpio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

func mockPinctrl(t *testing.T, levels map[int]bool) *[][]string {
	t.Helper()
	var calls [][]string

	origSet, origRead := setPin, readLevel
	setPin = func(pin int, opts ...string) error {
		calls = append(calls, append([]string{}, opts...))
		levels[pin] = opts[len(opts)-1] == "dh"
		return nil
	}
	readLevel = func(pin int) (bool, error) {
		lvl, ok := levels[pin]
		if !ok {
			return false, errors.New("no such pin")
		}
		return lvl, nil
	}
	t.Cleanup(func() { setPin, readLevel = origSet, origRead })
	return &calls
}

func TestValidateStartupPins_Valid(t *testing.T) {
	mockPinctrl(t, map[int]bool{16: false, 25: true})

	err := ValidateStartupPins(map[string]model.GPIOPin{
		"pump": {Number: 16, ActiveHigh: true},
		"led":  {Number: 25, ActiveHigh: false},
	})
	assert.NoError(t, err)
}

func TestValidateStartupPins_Mismatch(t *testing.T) {
	mockPinctrl(t, map[int]bool{16: true})

	err := ValidateStartupPins(map[string]model.GPIOPin{
		"pump": {Number: 16, ActiveHigh: true},
	})
	assert.ErrorContains(t, err, "active at startup")
}

func TestValidateStartupPins_ReadError(t *testing.T) {
	mockPinctrl(t, map[int]bool{})

	err := ValidateStartupPins(map[string]model.GPIOPin{"pump": {Number: 16}})
	assert.ErrorContains(t, err, "GPIO 16")
}

func TestPinctrlOutputRespectsPolarity(t *testing.T) {
	levels := map[int]bool{}
	calls := mockPinctrl(t, levels)

	out, err := NewPinctrlOutput("pump", model.GPIOPin{Number: 16, ActiveHigh: false})
	require.NoError(t, err)
	assert.True(t, levels[16], "active-low output must idle high")

	require.NoError(t, out.Set(true))
	assert.False(t, levels[16])
	assert.True(t, out.Active())

	require.NoError(t, out.Close())
	assert.True(t, levels[16])
	assert.False(t, out.Active())
	assert.Equal(t, []string{"op", "pn", "dh"}, (*calls)[0])
}

func TestPinctrlOutputKeepsStateOnFailure(t *testing.T) {
	mockPinctrl(t, map[int]bool{})
	out, err := NewPinctrlOutput("led", model.GPIOPin{Number: 25, ActiveHigh: true})
	require.NoError(t, err)

	setPin = func(int, ...string) error { return errors.New("busy") }
	assert.Error(t, out.Set(true))
	assert.False(t, out.Active())
}

func TestOpenSafeModeNeverTouchesPins(t *testing.T) {
	calls := mockPinctrl(t, map[int]bool{})

	out, err := Open(BackendPinctrl, "gpiochip0", "pump", model.GPIOPin{Number: 16, ActiveHigh: true}, true)
	require.NoError(t, err)
	require.NoError(t, out.Set(true))

	assert.True(t, out.Active())
	assert.Empty(t, *calls)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open("sysfs", "gpiochip0", "pump", model.GPIOPin{Number: 16}, false)
	assert.Error(t, err)
}
