// Package watchdog restarts the process when the control loop stops making
// progress.
package watchdog

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Watchdog struct {
	timeout time.Duration
	expire  func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// Start arms a watchdog that calls expire once if Kick is not called within
// timeout. expire runs on its own goroutine.
func Start(timeout time.Duration, expire func()) *Watchdog {
	w := &Watchdog{timeout: timeout, expire: expire}
	w.timer = time.AfterFunc(timeout, w.fire)
	return w
}

func (w *Watchdog) Kick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.timer.Reset(w.timeout)
}

func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	w.timer.Stop()
}

func (w *Watchdog) fire() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	log.Error().Dur("timeout", w.timeout).Msg("Watchdog expired, control loop stalled")
	w.expire()
}
