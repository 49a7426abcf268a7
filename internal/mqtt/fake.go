package mqtt

import (
	"sync"

	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

// FakePublisher records what was published for test assertions.
type FakePublisher struct {
	mu         sync.Mutex
	Samples    []model.SensorSample
	PumpEvents []PumpEvent
	Err        error
	Closed     bool
}

func (f *FakePublisher) PublishSample(s model.SensorSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Samples = append(f.Samples, s)
	return nil
}

func (f *FakePublisher) PublishPumpEvent(e PumpEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.PumpEvents = append(f.PumpEvents, e)
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
