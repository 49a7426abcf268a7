package shutdown

import (
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// RestartExitCode asks systemd (Restart=always) for a fresh process.
const RestartExitCode = 3

// ExitFunc is replaced in tests.
var ExitFunc = os.Exit

// Output is anything that must be driven inactive before exit.
type Output interface {
	Set(active bool) error
}

var once sync.Once

// Restart de-energizes outputs and exits with RestartExitCode. Only the
// first call among Restart and Shutdown takes effect.
func Restart(reason string, outputs ...Output) {
	once.Do(func() {
		log.Warn().Str("reason", reason).Msg("Restarting controller")
		deactivate(outputs)
		ExitFunc(RestartExitCode)
	})
}

func Shutdown(outputs ...Output) {
	once.Do(func() {
		deactivate(outputs)
		log.Info().Msg("Outputs deactivated, exiting")
		ExitFunc(0)
	})
}

func ShutdownWithError(err error, msg string, outputs ...Output) {
	log.Error().Err(err).Msg(msg)
	once.Do(func() {
		deactivate(outputs)
		ExitFunc(1)
	})
}

func deactivate(outputs []Output) {
	for _, o := range outputs {
		if o == nil {
			continue
		}
		if err := o.Set(false); err != nil {
			log.Error().Err(err).Msg("Failed to deactivate output during shutdown")
		}
	}
}

// reset re-arms the once guard; tests only.
func reset() {
	once = sync.Once{}
}
