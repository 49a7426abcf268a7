// Package history keeps the rolling chart data shown on the status page.
package history

import (
	"time"

	"github.com/thatsimonsguy/irrigation-controller/internal/model"
	"github.com/thatsimonsguy/irrigation-controller/internal/ring"
)

const (
	FastInterval = 5 * time.Second
	SlowInterval = 60 * time.Second
	// FastWindow is how long after start the fast interval applies, inclusive.
	FastWindow = 60 * time.Second

	LabelFormat = "15:04:05"
)

type Sampler struct {
	start       time.Time
	points      *ring.Buffer[model.HistoryPoint]
	lastElapsed int64
}

func NewSampler(start time.Time, size int) *Sampler {
	return &Sampler{
		start:       start,
		points:      ring.New[model.HistoryPoint](size),
		lastElapsed: -1,
	}
}

// Interval is the sampling period in effect after elapsed time since start.
func Interval(elapsed time.Duration) time.Duration {
	if elapsed <= FastWindow {
		return FastInterval
	}
	return SlowInterval
}

// Due reports whether whole seconds elapsed since start fall on the current
// interval. A given second is only ever due once.
func (s *Sampler) Due(now time.Time) bool {
	elapsed := int64(now.Sub(s.start) / time.Second)
	if elapsed < 0 || elapsed == s.lastElapsed {
		return false
	}
	interval := int64(Interval(time.Duration(elapsed)*time.Second) / time.Second)
	return elapsed%interval == 0
}

// Offer records sample if it is due and reports whether it was recorded.
func (s *Sampler) Offer(sample model.SensorSample) bool {
	if !s.Due(sample.Timestamp) {
		return false
	}
	s.lastElapsed = int64(sample.Timestamp.Sub(s.start) / time.Second)
	s.points.Push(model.HistoryPoint{
		Time:        sample.Timestamp.Format(LabelFormat),
		Temperature: sample.Temperature,
		Moisture:    sample.Moisture,
	})
	return true
}

func (s *Sampler) Points() []model.HistoryPoint { return s.points.Items() }
