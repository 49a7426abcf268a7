package gpio

import (
	"errors"
	"sync"
)

var ErrFakeWrite = errors.New("fake gpio write failure")

// FakeOutput is an in-memory Output for tests. Setting Fail makes every
// subsequent write return ErrFakeWrite without changing state.
type FakeOutput struct {
	mu     sync.Mutex
	active bool
	Fail   bool
	Writes []bool
	Closed bool
}

func (f *FakeOutput) Set(active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail {
		return ErrFakeWrite
	}
	f.active = active
	f.Writes = append(f.Writes, active)
	return nil
}

func (f *FakeOutput) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
	f.Closed = true
	return nil
}
