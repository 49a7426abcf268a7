//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

// CdevOutput drives an output through the GPIO character device.
type CdevOutput struct {
	name   string
	pin    model.GPIOPin
	chip   *gpiocdev.Chip
	line   *gpiocdev.Line
	mu     sync.Mutex
	active bool
}

func NewCdevOutput(chipName, name string, pin model.GPIOPin) (*CdevOutput, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin.Number, gpiocdev.AsOutput(level(pin, false)), gpiocdev.WithConsumer("irrigation-"+name))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request %s pin %d: %w", name, pin.Number, err)
	}

	return &CdevOutput{name: name, pin: pin, chip: chip, line: line}, nil
}

func level(pin model.GPIOPin, active bool) int {
	if physicalLevel(pin, active) {
		return 1
	}
	return 0
}

func (o *CdevOutput) Set(active bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.line.SetValue(level(o.pin, active)); err != nil {
		return fmt.Errorf("set %s pin %d: %w", o.name, o.pin.Number, err)
	}
	o.active = active
	return nil
}

func (o *CdevOutput) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Close drives the output inactive, returns the line to an input with
// pull-down (the Pi boot default) and releases the chip.
func (o *CdevOutput) Close() error {
	var errs []error

	if err := o.Set(false); err != nil {
		errs = append(errs, err)
	}
	if o.line != nil {
		if err := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", o.name, err))
		}
		if err := o.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", o.name, err))
		}
	}
	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
