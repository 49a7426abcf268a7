package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/thatsimonsguy/irrigation-controller/db"
	"github.com/thatsimonsguy/irrigation-controller/internal/config"
	"github.com/thatsimonsguy/irrigation-controller/internal/pinctrl"
	"github.com/thatsimonsguy/irrigation-controller/system/startup"
)

func main() {
	var dbPath, command, configFile, execPath string
	var limit int
	var olderThan time.Duration
	flag.StringVar(&dbPath, "db", "data/journal.db", "Path to the SQLite event journal")
	flag.StringVar(&command, "cmd", "", "Command to run: recent, counts, prune, install, pins")
	flag.StringVar(&configFile, "config-file", "config.json", "Controller config file (install, pins)")
	flag.StringVar(&execPath, "exec", "/opt/irrigation/irrigation-controller", "Controller binary path (install)")
	flag.IntVar(&limit, "limit", 20, "Number of events to show (recent)")
	flag.DurationVar(&olderThan, "older-than", 90*24*time.Hour, "Age of events to delete (prune)")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help || command == "" {
		fmt.Println("\nUsage of irrigation-journal:")
		fmt.Println("  -db string\tPath to the SQLite event journal (default 'data/journal.db')")
		fmt.Println("  -cmd string\tCommand to run: recent, counts, prune, install, pins")
		fmt.Println("  -config-file string\tController config file")
		fmt.Println("  -exec string\tController binary path for the systemd unit")
		fmt.Println("  -limit int\tNumber of events to show")
		fmt.Println("  -older-than duration\tAge of events to delete")
		fmt.Println("  -help\tShow this help message")
		os.Exit(0)
	}

	var err error
	switch command {
	case "recent":
		err = recent(dbPath, limit)
	case "counts":
		err = counts(dbPath)
	case "prune":
		err = prune(dbPath, olderThan)
	case "install":
		err = install(configFile, execPath)
	case "pins":
		err = pins(configFile)
	default:
		fmt.Println("Invalid command")
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Command %s failed: %v\n", command, err)
		os.Exit(1)
	}
}

func recent(dbPath string, limit int) error {
	j, err := db.Open(dbPath, "cli")
	if err != nil {
		return err
	}
	defer j.Close()

	events, err := j.Recent(context.Background(), limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tKIND\tDURATION\tDETAIL\tBOOT")
	for _, e := range events {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.At.Local().Format(time.DateTime), e.Kind, e.Duration, e.Detail, e.BootID)
	}
	return w.Flush()
}

func counts(dbPath string) error {
	j, err := db.Open(dbPath, "cli")
	if err != nil {
		return err
	}
	defer j.Close()

	byKind, err := j.CountByKind(context.Background())
	if err != nil {
		return err
	}
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("%-10s %d\n", k, byKind[db.EventKind(k)])
	}
	return nil
}

func prune(dbPath string, olderThan time.Duration) error {
	j, err := db.Open(dbPath, "cli")
	if err != nil {
		return err
	}
	defer j.Close()

	n, err := j.Prune(context.Background(), time.Now().Add(-olderThan))
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d events\n", n)
	return nil
}

func install(configFile, execPath string) error {
	cfg := config.FromFile(configFile)

	if err := startup.WriteBootScript(cfg.BootScriptFilePath, cfg.Pins()); err != nil {
		return fmt.Errorf("write boot script: %w", err)
	}
	if err := startup.InstallBootService(cfg.OSServicePath, cfg.BootScriptFilePath); err != nil {
		return fmt.Errorf("install boot service: %w", err)
	}
	if err := startup.InstallService(startup.Service{
		UnitPath:   cfg.MainServicePath,
		BootUnit:   cfg.OSServicePath,
		User:       cfg.ServiceUser,
		WorkDir:    cfg.WorkDir,
		ExecPath:   execPath,
		ConfigFile: cfg.ConfigFile,
	}); err != nil {
		return fmt.Errorf("install controller service: %w", err)
	}
	if err := startup.RunBootScript(cfg.BootScriptFilePath); err != nil {
		return fmt.Errorf("run boot script: %w", err)
	}

	fmt.Printf("Installed %s and %s; run `systemctl daemon-reload && systemctl enable --now %s`\n",
		cfg.OSServicePath, cfg.MainServicePath, cfg.MainServicePath)
	return nil
}

func pins(configFile string) error {
	cfg := config.FromFile(configFile)

	pinsByName := cfg.Pins()
	names := make([]string, 0, len(pinsByName))
	for name := range pinsByName {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pin := pinsByName[name]
		state, err := pinctrl.ReadPin(pin.Number)
		if err != nil {
			fmt.Printf("%-5s GPIO%-3d %v\n", name, pin.Number, err)
			continue
		}
		fmt.Printf("%-5s GPIO%-3d mode=%s drive=%s level=%s active_high=%v\n",
			name, pin.Number, state.Mode, state.Drive, state.Level, pin.ActiveHigh)
	}
	return nil
}
