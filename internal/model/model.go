package model

import "time"

type PumpState int

const (
	PumpIdle PumpState = iota
	PumpRunning
	PumpCooldown
)

func (s PumpState) String() string {
	switch s {
	case PumpIdle:
		return "idle"
	case PumpRunning:
		return "running"
	case PumpCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

type GPIOPin struct {
	Number     int  `json:"number"`
	ActiveHigh bool `json:"active_high"`
}

// SensorSample is one calibrated reading of the soil sensor and the board
// temperature sensor.
type SensorSample struct {
	Moisture    float64   `json:"moisture"`
	Temperature float64   `json:"temperature"`
	Timestamp   time.Time `json:"timestamp"`
}

// ActivationRecord is appended when the pump starts. Duration stays zero
// until the matching deactivation rewrites it.
type ActivationRecord struct {
	StartedAt time.Time
	Duration  time.Duration
}

// HistoryPoint is the chart-facing form of a sample. Field names match what
// the page script expects.
type HistoryPoint struct {
	Time        string  `json:"time"`
	Temperature float64 `json:"temperature"`
	Moisture    float64 `json:"moisture"`
}
