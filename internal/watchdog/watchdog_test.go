package watchdog

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpiresWithoutKick(t *testing.T) {
	fired := make(chan struct{})
	w := Start(20*time.Millisecond, func() { close(fired) })
	defer w.Stop()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("watchdog did not fire")
	}
}

func TestKickPostponesExpiry(t *testing.T) {
	var fired atomic.Bool
	w := Start(80*time.Millisecond, func() { fired.Store(true) })
	defer w.Stop()

	for i := 0; i < 5; i++ {
		time.Sleep(30 * time.Millisecond)
		w.Kick()
	}
	assert.False(t, fired.Load())
}

func TestStopPreventsExpiry(t *testing.T) {
	var fired atomic.Bool
	w := Start(20*time.Millisecond, func() { fired.Store(true) })
	w.Stop()
	w.Kick()

	time.Sleep(60 * time.Millisecond)
	assert.False(t, fired.Load())
}
