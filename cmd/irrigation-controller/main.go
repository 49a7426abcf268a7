package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/db"
	"github.com/thatsimonsguy/irrigation-controller/internal/api"
	"github.com/thatsimonsguy/irrigation-controller/internal/config"
	"github.com/thatsimonsguy/irrigation-controller/internal/connectivity"
	"github.com/thatsimonsguy/irrigation-controller/internal/gpio"
	"github.com/thatsimonsguy/irrigation-controller/internal/history"
	"github.com/thatsimonsguy/irrigation-controller/internal/led"
	"github.com/thatsimonsguy/irrigation-controller/internal/logging"
	"github.com/thatsimonsguy/irrigation-controller/internal/loop"
	"github.com/thatsimonsguy/irrigation-controller/internal/metrics"
	"github.com/thatsimonsguy/irrigation-controller/internal/mqtt"
	"github.com/thatsimonsguy/irrigation-controller/internal/notifications"
	"github.com/thatsimonsguy/irrigation-controller/internal/pump"
	"github.com/thatsimonsguy/irrigation-controller/internal/router"
	"github.com/thatsimonsguy/irrigation-controller/internal/sensor"
	"github.com/thatsimonsguy/irrigation-controller/internal/telemetry"
	"github.com/thatsimonsguy/irrigation-controller/internal/updater"
	"github.com/thatsimonsguy/irrigation-controller/internal/watchdog"
	"github.com/thatsimonsguy/irrigation-controller/system/shutdown"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)

	bootID := uuid.NewString()
	log.Info().
		Str("boot_id", bootID).
		Str("config", cfg.ConfigFile).
		Bool("safe_mode", cfg.SafeMode).
		Msg("Starting irrigation controller")

	if cfg.SafeMode {
		log.Warn().Msg("SAFE MODE ENABLED - GPIO writes are disabled")
	} else if gpio.Backend(cfg.GPIOBackend) == gpio.BackendPinctrl {
		if err := gpio.ValidateStartupPins(cfg.Pins()); err != nil {
			log.Fatal().Err(err).Msg("Refusing to drive outputs due to unsafe pin states")
		}
	}

	pumpOut, err := gpio.Open(gpio.Backend(cfg.GPIOBackend), cfg.GPIOChip, "pump", *cfg.GPIO.Pump, cfg.SafeMode)
	if err != nil {
		shutdown.ShutdownWithError(err, "Failed to open pump output")
		return
	}
	ledOut, err := gpio.Open(gpio.Backend(cfg.GPIOBackend), cfg.GPIOChip, "led", *cfg.GPIO.LED, cfg.SafeMode)
	if err != nil {
		shutdown.ShutdownWithError(err, "Failed to open LED output", pumpOut)
		return
	}

	var journal telemetry.Journal
	j, err := db.Open(cfg.JournalPath, bootID)
	if err != nil {
		log.Warn().Err(err).Msg("Event journal unavailable, continuing without it")
	} else {
		journal = j
	}

	sink := metrics.New(metrics.DatadogConfig{
		Enabled:   cfg.EnableDatadog,
		Addr:      cfg.DDAgentAddr,
		Namespace: cfg.DDNamespace,
		Tags:      cfg.DDTags,
	})

	var publisher mqtt.Publisher = mqtt.Nop{}
	if cfg.MQTTBroker != "" {
		p, err := mqtt.NewRealPublisher(cfg.MQTTBroker, cfg.MQTTTopic, bootID)
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTTBroker).Msg("MQTT unavailable, continuing without it")
		} else {
			publisher = p
		}
	}

	var notifier telemetry.Notifier
	if n := notifications.New(cfg.NtfyTopic); n != nil {
		notifier = n
	}

	hub := telemetry.NewHub(journal, sink, publisher, notifier)
	hub.Boot(time.Now(), fmt.Sprintf("safe_mode=%v backend=%s", cfg.SafeMode, cfg.GPIOBackend))

	restart := func(reason string) {
		hub.Restart(time.Now(), reason)
		shutdown.Restart(reason, pumpOut, ledOut)
	}

	reader := sensor.NewReader(
		sensor.SysfsADC{Path: cfg.MoistureADC, Bits: cfg.ADCBits},
		sensor.SysfsADC{Path: cfg.TemperatureADC, Bits: cfg.ADCBits},
		sensor.Calibration{DryRaw: cfg.DryRaw, WetRaw: cfg.WetRaw, FullScale: cfg.ADCFullScale, VRef: cfg.VRef},
	)
	reader.OnFault = hub.Fault

	pumpCtl := pump.NewController(pumpOut, pump.Settings{
		Threshold:  cfg.MoistureThreshold,
		MaxRunTime: cfg.MaxPumpTime(),
		Cooldown:   cfg.CooldownTime(),
		LogSize:    cfg.PumpLogSize,
	})
	pumpCtl.OnEvent(hub.PumpEvent)
	hub.Threshold(pumpCtl.Threshold())

	light := led.New(ledOut)
	override := &pump.Override{}

	target := cfg.UpdateTarget
	if target == "" {
		if target, err = os.Executable(); err != nil {
			log.Warn().Err(err).Msg("Cannot resolve own executable, self-update disabled")
		}
	}
	upd := updater.New(cfg.UpdateURL, target, restart)

	var network loop.Connectivity
	host := "0.0.0.0"
	if cfg.Interface != "" {
		link := connectivity.InterfaceLink{Name: cfg.Interface, Command: cfg.AssociateCommand}
		network = connectivity.NewSupervisor(link, connectivity.Budget{
			Attempts: cfg.ReconnectAttempts,
			Poll:     cfg.ReconnectPoll(),
			Ceiling:  cfg.ReconnectTimeout(),
		})
		if addr, err := link.Address(); err == nil {
			host = addr
		} else {
			log.Warn().Err(err).Str("interface", cfg.Interface).Msg("Interface not ready, listening on all addresses")
		}
	}

	srv := api.NewServer(cfg.ReplyTimeout(), sink.Handler())

	lp := loop.New(loop.Deps{
		Requests:  srv.Requests(),
		Router:    router.New(pumpCtl, light, override, upd),
		Pump:      pumpCtl,
		Override:  override,
		Sensors:   reader,
		History:   history.NewSampler(time.Now(), cfg.HistorySize),
		Network:   network,
		Listener:  srv,
		Telemetry: hub,
		Restart:   restart,
	}, loop.Settings{
		AcceptTimeout:   cfg.AcceptTimeout(),
		WatchdogTimeout: cfg.WatchdogTimeout(),
		GCInterval:      cfg.GCInterval(),
		HTTPPort:        cfg.HTTPPort,
	})

	// Water a dry plant before anything that can block on the network.
	lp.Prime()

	if err := srv.Start(net.JoinHostPort(host, strconv.Itoa(cfg.HTTPPort))); err != nil {
		log.Error().Err(err).Msg("Failed to start HTTP server")
		restart("listen")
		return
	}

	wd := watchdog.Start(cfg.WatchdogTimeout(), func() { restart("watchdog") })
	lp.Watchdog = wd

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = lp.Run(ctx)
	wd.Stop()
	log.Info().Err(err).Msg("Control loop stopped")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server did not shut down cleanly")
	}

	if err := pumpCtl.Deactivate(time.Now(), pump.ReasonShutdown); err != nil {
		log.Error().Err(err).Msg("Failed to stop pump on shutdown")
	}
	if err := light.Set(false); err != nil {
		log.Error().Err(err).Msg("Failed to switch LED off on shutdown")
	}
	hub.Shutdown(time.Now())

	for name, out := range map[string]gpio.Output{"pump": pumpOut, "led": ledOut} {
		if err := out.Close(); err != nil {
			log.Error().Err(err).Str("output", name).Msg("Failed to release output")
		}
	}
	publisher.Close()
	sink.Close()
	if j != nil {
		j.Close()
	}

	shutdown.Shutdown()
}
