// Package faults defines the fixed set of error kinds the controller
// branches on.
package faults

import (
	"errors"
	"fmt"
)

// Kind is a stable error identifier. It implements error so it can be used
// directly as an errors.Is target.
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	SensorFault       Kind = "sensor_fault"
	RequestError      Kind = "request_error"
	ConnectivityError Kind = "connectivity_error"
	WatchdogTimeout   Kind = "watchdog_timeout"
	UpdateError       Kind = "update_error"
	ActuatorFault     Kind = "actuator_fault"

	Unknown Kind = "error"
)

// Error carries a Kind together with the failing operation and its cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err. It returns "" for a nil error and
// Unknown for errors that carry no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return Unknown
}
