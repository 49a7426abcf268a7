package gpio

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/internal/model"
	"github.com/thatsimonsguy/irrigation-controller/internal/pinctrl"
)

// Output is a single digital output such as the pump relay or the status LED.
// Set takes the logical state; polarity is handled by the implementation.
type Output interface {
	Set(active bool) error
	Active() bool
	Close() error
}

type Backend string

const (
	BackendCdev    Backend = "cdev"
	BackendPinctrl Backend = "pinctrl"
)

// Open returns the output for pin on the selected backend. In safe mode the
// pin is never touched and every write is only logged.
func Open(backend Backend, chip, name string, pin model.GPIOPin, safeMode bool) (Output, error) {
	if safeMode {
		log.Warn().Str("output", name).Int("pin", pin.Number).Msg("Safe mode: GPIO writes disabled")
		return &SafeOutput{Name: name}, nil
	}

	switch backend {
	case BackendCdev:
		return NewCdevOutput(chip, name, pin)
	case BackendPinctrl:
		return NewPinctrlOutput(name, pin)
	default:
		return nil, fmt.Errorf("unknown gpio backend %q", backend)
	}
}

func physicalLevel(pin model.GPIOPin, active bool) bool {
	return active == pin.ActiveHigh
}

// PinctrlOutput drives the pin by shelling out to pinctrl.
type PinctrlOutput struct {
	name   string
	pin    model.GPIOPin
	mu     sync.Mutex
	active bool
}

func NewPinctrlOutput(name string, pin model.GPIOPin) (*PinctrlOutput, error) {
	o := &PinctrlOutput{name: name, pin: pin}
	if err := o.Set(false); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *PinctrlOutput) Set(active bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	drive := "dl"
	if physicalLevel(o.pin, active) {
		drive = "dh"
	}
	if err := setPin(o.pin.Number, "op", "pn", drive); err != nil {
		return fmt.Errorf("set %s (GPIO %d): %w", o.name, o.pin.Number, err)
	}
	o.active = active
	return nil
}

func (o *PinctrlOutput) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

func (o *PinctrlOutput) Close() error {
	return o.Set(false)
}

// SafeOutput records state without driving hardware.
type SafeOutput struct {
	Name   string
	mu     sync.Mutex
	active bool
}

func (o *SafeOutput) Set(active bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	log.Info().Str("output", o.Name).Bool("active", active).Msg("Safe mode: skipping GPIO write")
	o.active = active
	return nil
}

func (o *SafeOutput) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

func (o *SafeOutput) Close() error { return nil }

var (
	setPin    = pinctrl.SetPin
	readLevel = pinctrl.ReadLevel
)

// ValidateStartupPins checks that every named output reads inactive before
// the controller takes ownership of it.
func ValidateStartupPins(pins map[string]model.GPIOPin) error {
	for name, pin := range pins {
		level, err := readLevel(pin.Number)
		if err != nil {
			return fmt.Errorf("failed to read pin level for %s (GPIO %d): %w", name, pin.Number, err)
		}
		if physicalLevel(pin, true) == level {
			return fmt.Errorf("pin %d (%s) is active at startup", pin.Number, name)
		}
	}
	return nil
}
