//go:build !linux

package gpio

import (
	"errors"

	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

type CdevOutput struct{ SafeOutput }

func NewCdevOutput(chipName, name string, pin model.GPIOPin) (*CdevOutput, error) {
	return nil, errors.New("gpio character device is only available on linux")
}
