package connectivity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/internal/faults"
)

// Link is a network interface that can be (re)associated.
type Link interface {
	Connected() bool
	Associate(ctx context.Context) error
	Address() (string, error)
}

var errNoAddress = errors.New("no IPv4 address")

// InterfaceLink treats an interface as connected when it is up and carries a
// non-loopback IPv4 address. Association runs an external command such as
// `wpa_cli -i wlan0 reconnect`.
type InterfaceLink struct {
	Name    string
	Command []string
}

func (l InterfaceLink) Connected() bool {
	_, err := l.Address()
	return err == nil
}

func (l InterfaceLink) Address() (string, error) {
	iface, err := net.InterfaceByName(l.Name)
	if err != nil {
		return "", err
	}
	if iface.Flags&net.FlagUp == 0 {
		return "", fmt.Errorf("%s is down", l.Name)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String(), nil
		}
	}
	return "", errNoAddress
}

func (l InterfaceLink) Associate(ctx context.Context) error {
	if len(l.Command) == 0 {
		return nil
	}
	out, err := exec.CommandContext(ctx, l.Command[0], l.Command[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("associate %s: %w (output: %s)", l.Name, err, out)
	}
	return nil
}

type Budget struct {
	Attempts int
	Poll     time.Duration
	Ceiling  time.Duration
}

func DefaultBudget() Budget {
	return Budget{Attempts: 3, Poll: 3 * time.Second, Ceiling: 60 * time.Second}
}

// Supervisor reconnects a Link within a fixed attempt budget.
type Supervisor struct {
	link   Link
	budget Budget
	sleep  func(context.Context, time.Duration) error
}

func NewSupervisor(link Link, budget Budget) *Supervisor {
	return &Supervisor{link: link, budget: budget, sleep: sleepCtx}
}

func (s *Supervisor) Connected() bool { return s.link.Connected() }

// Reconnect associates and polls until the link reports an address. Each
// attempt polls at most Ceiling/Poll times. When every attempt fails the
// error is a ConnectivityError.
func (s *Supervisor) Reconnect(ctx context.Context) (string, error) {
	polls := 1
	if s.budget.Poll > 0 {
		polls = int(s.budget.Ceiling / s.budget.Poll)
		if polls < 1 {
			polls = 1
		}
	}

	var lastErr error
	for attempt := 1; attempt <= s.budget.Attempts; attempt++ {
		log.Info().Int("attempt", attempt).Int("of", s.budget.Attempts).Msg("Reconnecting")

		if err := s.associate(ctx); err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt).Msg("Association failed")
		} else {
			for i := 0; i < polls; i++ {
				addr, err := s.link.Address()
				if err == nil {
					log.Info().Str("address", addr).Msg("Network connected")
					return addr, nil
				}
				lastErr = err
				if err := s.sleep(ctx, s.budget.Poll); err != nil {
					return "", faults.New(faults.ConnectivityError, "reconnect", err)
				}
			}
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	return "", faults.New(faults.ConnectivityError, "reconnect", fmt.Errorf("%d attempts exhausted: %w", s.budget.Attempts, lastErr))
}

// associate bounds one association by the attempt ceiling so a hung
// command cannot outlast the budget.
func (s *Supervisor) associate(ctx context.Context) error {
	if s.budget.Ceiling > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.budget.Ceiling)
		defer cancel()
	}
	return s.link.Associate(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
