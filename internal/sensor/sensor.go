package sensor

import (
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/constraints"

	"github.com/thatsimonsguy/irrigation-controller/internal/faults"
	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

type Calibration struct {
	DryRaw    float64
	WetRaw    float64
	FullScale float64
	VRef      float64
}

func DefaultCalibration() Calibration {
	return Calibration{DryRaw: 43000, WetRaw: 50000, FullScale: 65535, VRef: 3.3}
}

// MoisturePercent inverts the raw count and maps it from [DryRaw, WetRaw]
// onto [0, 100].
func MoisturePercent(raw uint16, c Calibration) float64 {
	inverted := c.FullScale - float64(raw)
	pct := (inverted - c.DryRaw) * 100 / (c.WetRaw - c.DryRaw)
	return clamp(pct, 0, 100)
}

// TemperatureC applies the on-die sensor transfer function.
func TemperatureC(raw uint16, c Calibration) float64 {
	volts := float64(raw) * c.VRef / c.FullScale
	return 27 - (volts-0.706)/0.001721
}

func clamp[T constraints.Float | constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Reader never returns an error to the caller. A failed moisture read reports
// 0% (bone dry, biased toward watering) and a failed temperature read 0°C;
// both are logged and handed to OnFault.
type Reader struct {
	moisture    ADC
	temperature ADC
	cal         Calibration

	OnFault func(err error)
}

func NewReader(moisture, temperature ADC, cal Calibration) *Reader {
	return &Reader{moisture: moisture, temperature: temperature, cal: cal}
}

func (r *Reader) Moisture() float64 {
	raw, err := r.moisture.ReadRaw()
	if err != nil {
		r.fault("read_moisture", err)
		return 0
	}
	return MoisturePercent(raw, r.cal)
}

func (r *Reader) Temperature() float64 {
	raw, err := r.temperature.ReadRaw()
	if err != nil {
		r.fault("read_temperature", err)
		return 0
	}
	return TemperatureC(raw, r.cal)
}

func (r *Reader) Sample(now time.Time) model.SensorSample {
	return model.SensorSample{
		Moisture:    r.Moisture(),
		Temperature: r.Temperature(),
		Timestamp:   now,
	}
}

func (r *Reader) fault(op string, err error) {
	wrapped := faults.New(faults.SensorFault, op, err)
	log.Error().Err(wrapped).Msg("Sensor read failed, using fallback value")
	if r.OnFault != nil {
		r.OnFault(wrapped)
	}
}
