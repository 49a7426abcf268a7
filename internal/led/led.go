package led

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

type Output interface {
	Set(active bool) error
}

// LED is the indicator light. Only the /lighton and /lightoff routes and
// shutdown touch it.
type LED struct {
	out Output
	on  bool
}

func New(out Output) *LED {
	return &LED{out: out}
}

func (l *LED) Set(on bool) error {
	if err := l.out.Set(on); err != nil {
		return fmt.Errorf("led set %v: %w", on, err)
	}
	l.on = on
	log.Info().Bool("on", on).Msg("LED switched")
	return nil
}

func (l *LED) On() bool { return l.on }
