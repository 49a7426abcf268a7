// Package mqtt publishes sensor samples and pump transitions for home
// automation dashboards.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

type Publisher interface {
	PublishSample(s model.SensorSample) error
	PublishPumpEvent(e PumpEvent) error
	Close() error
}

type PumpEvent struct {
	State    model.PumpState
	Reason   string
	At       time.Time
	Duration time.Duration
}

type samplePayload struct {
	Boot        string  `json:"boot_id"`
	Moisture    float64 `json:"moisture"`
	Temperature float64 `json:"temperature"`
	Timestamp   string  `json:"timestamp"`
}

type pumpPayload struct {
	Boot            string `json:"boot_id"`
	State           string `json:"state"`
	Reason          string `json:"reason,omitempty"`
	Timestamp       string `json:"timestamp"`
	DurationSeconds int    `json:"duration_seconds"`
}

func SampleTopic(base string) string { return base + "/sensors" }

func PumpTopic(base string) string { return base + "/pump" }

func FormatSample(bootID string, s model.SensorSample) ([]byte, error) {
	return json.Marshal(samplePayload{
		Boot:        bootID,
		Moisture:    s.Moisture,
		Temperature: s.Temperature,
		Timestamp:   s.Timestamp.UTC().Format(time.RFC3339),
	})
}

func FormatPumpEvent(bootID string, e PumpEvent) ([]byte, error) {
	return json.Marshal(pumpPayload{
		Boot:            bootID,
		State:           e.State.String(),
		Reason:          e.Reason,
		Timestamp:       e.At.UTC().Format(time.RFC3339),
		DurationSeconds: int(e.Duration.Seconds()),
	})
}

// Nop discards everything. Used when no broker is configured.
type Nop struct{}

func (Nop) PublishSample(model.SensorSample) error { return nil }
func (Nop) PublishPumpEvent(PumpEvent) error       { return nil }
func (Nop) Close() error                           { return nil }
