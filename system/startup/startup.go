package startup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

// Service describes how systemd runs the controller.
type Service struct {
	UnitPath   string
	BootUnit   string
	User       string
	WorkDir    string
	ExecPath   string
	ConfigFile string
}

// WriteBootScript writes a script that drives every output inactive with
// pinctrl before the controller starts.
func WriteBootScript(path string, pins map[string]model.GPIOPin) error {
	lines := []string{"#!/bin/bash", "", "# Irrigation GPIO pin configuration at boot", ""}

	names := make([]string, 0, len(pins))
	for name := range pins {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pin := pins[name]
		drive := "dl"
		if !pin.ActiveHigh {
			drive = "dh"
		}
		lines = append(lines,
			fmt.Sprintf("# %s", name),
			fmt.Sprintf("pinctrl set %d op pn %s", pin.Number, drive),
			"")
	}

	contents := strings.Join(lines, "\n") + "\n"
	return os.WriteFile(path, []byte(contents), 0755)
}

func InstallBootService(unitPath, scriptPath string) error {
	unit := fmt.Sprintf(`[Unit]
Description=Configure irrigation GPIO pins at boot
After=network.target

[Service]
Type=oneshot
Environment=PATH=/usr/local/bin:/usr/bin:/bin
ExecStart=%s
RemainAfterExit=true

[Install]
WantedBy=multi-user.target
`, scriptPath)

	return os.WriteFile(unitPath, []byte(unit), 0644)
}

// InstallService writes the controller unit. Restart=always turns every
// watchdog or update exit into a fresh process.
func InstallService(svc Service) error {
	bootUnit := filepath.Base(svc.BootUnit)

	unit := fmt.Sprintf(`[Unit]
Description=Irrigation controller
After=%s network-online.target
Requires=%s
Wants=network-online.target

[Service]
Type=simple
User=%s
WorkingDirectory=%s
ExecStart=%s -config-file %s
Restart=always
RestartSec=5s

[Install]
WantedBy=multi-user.target
`, bootUnit, bootUnit, svc.User, svc.WorkDir, svc.ExecPath, svc.ConfigFile)

	return os.WriteFile(svc.UnitPath, []byte(unit), 0644)
}

func RunBootScript(path string) error {
	cmd := exec.Command("/bin/bash", path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
