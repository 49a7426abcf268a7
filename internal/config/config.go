package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

type GPIO struct {
	Pump *model.GPIOPin `json:"pump"`
	LED  *model.GPIOPin `json:"led"`
}

type Config struct {
	ConfigFile  string
	LogFile     string
	JournalPath string
	LogLevel    zerolog.Level

	SafeMode    bool   `json:"safe_mode"`
	GPIOBackend string `json:"gpio_backend"` // "cdev" or "pinctrl"
	GPIOChip    string `json:"gpio_chip"`
	GPIO        GPIO   `json:"gpio"`

	// sysfs files exposing raw ADC counts, e.g. an IIO in_voltageN_raw
	MoistureADC    string `json:"moisture_adc"`
	TemperatureADC string `json:"temperature_adc"`
	ADCBits        int    `json:"adc_bits"`

	DryRaw       float64 `json:"dry_raw"`
	WetRaw       float64 `json:"wet_raw"`
	ADCFullScale float64 `json:"adc_full_scale"`
	VRef         float64 `json:"vref"`

	MoistureThreshold float64 `json:"moisture_threshold"`
	MaxPumpSeconds    int     `json:"max_pump_seconds"`
	CooldownSeconds   int     `json:"cooldown_seconds"`
	WatchdogSeconds   int     `json:"watchdog_seconds"`
	GCIntervalSeconds int     `json:"gc_interval_seconds"`
	HistorySize       int     `json:"history_size"`
	PumpLogSize       int     `json:"pump_log_size"`

	HTTPPort            int `json:"http_port"`
	AcceptTimeoutMillis int `json:"accept_timeout_ms"`
	ReplyTimeoutSeconds int `json:"reply_timeout_seconds"`

	Interface               string   `json:"interface"`
	AssociateCommand        []string `json:"associate_command"`
	ReconnectAttempts       int      `json:"reconnect_attempts"`
	ReconnectPollSeconds    int      `json:"reconnect_poll_seconds"`
	ReconnectTimeoutSeconds int      `json:"reconnect_timeout_seconds"`

	UpdateURL    string `json:"update_url"`
	UpdateTarget string `json:"update_target"`

	EnableDatadog bool     `json:"enable_datadog"`
	DDAgentAddr   string   `json:"dd_agent_addr"`
	DDNamespace   string   `json:"dd_namespace"`
	DDTags        []string `json:"dd_tags"`

	MQTTBroker string `json:"mqtt_broker"`
	MQTTTopic  string `json:"mqtt_topic"`

	NtfyTopic string `json:"ntfy_topic"`

	BootScriptFilePath string `json:"boot_script_file_path"`
	OSServicePath      string `json:"os_service_path"`
	MainServicePath    string `json:"main_service_path"`
	ServiceUser        string `json:"service_user"`
	WorkDir            string `json:"work_dir"`
}

func Load() Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to controller config file")
	flag.StringVar(&cfg.LogFile, "log-file", "/var/log/irrigation-controller.log", "Path to the append-only log file")
	flag.StringVar(&cfg.JournalPath, "journal", "data/journal.db", "Path to the SQLite event journal")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)
	cfg.readFile()
	return cfg
}

// FromFile loads and validates a config file without touching flags.
func FromFile(path string) Config {
	cfg := Config{ConfigFile: path, LogLevel: zerolog.InfoLevel}
	cfg.readFile()
	return cfg
}

func (cfg *Config) readFile() {
	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := decode(file, cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	cfg.validate()
}

// decode seeds the defaults first so that only keys present in r override
// them; an explicit zero stays zero.
func decode(r io.Reader, cfg *Config) error {
	cfg.applyDefaults()
	return json.NewDecoder(r).Decode(cfg)
}

func (cfg *Config) applyDefaults() {
	cfg.GPIOBackend = "cdev"
	cfg.GPIOChip = "gpiochip0"
	cfg.ADCBits = 16
	cfg.DryRaw = 43000
	cfg.WetRaw = 50000
	cfg.ADCFullScale = 65535
	cfg.VRef = 3.3
	cfg.MoistureThreshold = 30
	cfg.MaxPumpSeconds = 60
	cfg.CooldownSeconds = 30
	cfg.WatchdogSeconds = 180
	cfg.GCIntervalSeconds = 30
	cfg.HistorySize = 60
	cfg.PumpLogSize = 10
	cfg.HTTPPort = 80
	cfg.AcceptTimeoutMillis = 1000
	cfg.ReplyTimeoutSeconds = 45
	cfg.Interface = "wlan0"
	cfg.ReconnectAttempts = 3
	cfg.ReconnectPollSeconds = 3
	cfg.ReconnectTimeoutSeconds = 60
	cfg.DDAgentAddr = "127.0.0.1:8125"
	cfg.DDNamespace = "irrigation."
	cfg.MQTTTopic = "garden/irrigation"
	cfg.BootScriptFilePath = "/usr/local/bin/irrigation-gpio.sh"
	cfg.OSServicePath = "/etc/systemd/system/irrigation-gpio.service"
	cfg.MainServicePath = "/etc/systemd/system/irrigation-controller.service"
	cfg.ServiceUser = "pi"
	cfg.WorkDir = "/opt/irrigation"
}

// Pins returns every configured output by name.
func (cfg *Config) Pins() map[string]model.GPIOPin {
	pins := map[string]model.GPIOPin{}
	if cfg.GPIO.Pump != nil {
		pins["pump"] = *cfg.GPIO.Pump
	}
	if cfg.GPIO.LED != nil {
		pins["led"] = *cfg.GPIO.LED
	}
	return pins
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) validate() {
	var (
		missingFields []string
		usedPins      = map[int]string{}
		conflicts     []string
		invalid       []string
	)

	v := reflect.ValueOf(cfg.GPIO)
	t := reflect.TypeOf(cfg.GPIO)

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldName := t.Field(i).Tag.Get("json")

		if field.IsNil() {
			missingFields = append(missingFields, "gpio."+fieldName)
			continue
		}

		pin := field.Interface().(*model.GPIOPin).Number
		if other, exists := usedPins[pin]; exists {
			conflicts = append(conflicts, fmt.Sprintf("gpio.%s and gpio.%s both use pin %d", fieldName, other, pin))
		} else {
			usedPins[pin] = fieldName
		}
	}

	if cfg.MoistureADC == "" {
		missingFields = append(missingFields, "moisture_adc")
	}
	if cfg.TemperatureADC == "" {
		missingFields = append(missingFields, "temperature_adc")
	}

	if cfg.GPIOBackend != "cdev" && cfg.GPIOBackend != "pinctrl" {
		invalid = append(invalid, fmt.Sprintf("gpio_backend %q (want cdev or pinctrl)", cfg.GPIOBackend))
	}
	if cfg.ADCBits < 1 || cfg.ADCBits > 16 {
		invalid = append(invalid, fmt.Sprintf("adc_bits %d", cfg.ADCBits))
	}
	if cfg.DryRaw == cfg.WetRaw {
		invalid = append(invalid, "dry_raw equals wet_raw")
	}
	if math.IsNaN(cfg.MoistureThreshold) || cfg.MoistureThreshold < 0 || cfg.MoistureThreshold > 100 {
		invalid = append(invalid, fmt.Sprintf("moisture_threshold %.2f outside [0,100]", cfg.MoistureThreshold))
	}
	for name, n := range map[string]int{
		"max_pump_seconds":          cfg.MaxPumpSeconds,
		"watchdog_seconds":          cfg.WatchdogSeconds,
		"accept_timeout_ms":         cfg.AcceptTimeoutMillis,
		"reply_timeout_seconds":     cfg.ReplyTimeoutSeconds,
		"reconnect_attempts":        cfg.ReconnectAttempts,
		"reconnect_poll_seconds":    cfg.ReconnectPollSeconds,
		"reconnect_timeout_seconds": cfg.ReconnectTimeoutSeconds,
		"history_size":              cfg.HistorySize,
		"pump_log_size":             cfg.PumpLogSize,
	} {
		if n <= 0 {
			invalid = append(invalid, fmt.Sprintf("%s %d", name, n))
		}
	}
	if cfg.CooldownSeconds < 0 {
		invalid = append(invalid, fmt.Sprintf("cooldown_seconds %d", cfg.CooldownSeconds))
	}
	if cfg.GCIntervalSeconds < 0 {
		invalid = append(invalid, fmt.Sprintf("gc_interval_seconds %d", cfg.GCIntervalSeconds))
	}

	if len(missingFields) > 0 {
		panic("Missing required config fields: " + strings.Join(missingFields, ", "))
	}
	if len(conflicts) > 0 {
		panic("Conflicting GPIO pins: " + strings.Join(conflicts, ", "))
	}
	if len(invalid) > 0 {
		panic("Invalid config values: " + strings.Join(invalid, ", "))
	}
}

func (cfg *Config) MaxPumpTime() time.Duration {
	return time.Duration(cfg.MaxPumpSeconds) * time.Second
}

func (cfg *Config) CooldownTime() time.Duration {
	return time.Duration(cfg.CooldownSeconds) * time.Second
}

func (cfg *Config) WatchdogTimeout() time.Duration {
	return time.Duration(cfg.WatchdogSeconds) * time.Second
}

func (cfg *Config) GCInterval() time.Duration {
	return time.Duration(cfg.GCIntervalSeconds) * time.Second
}

func (cfg *Config) AcceptTimeout() time.Duration {
	return time.Duration(cfg.AcceptTimeoutMillis) * time.Millisecond
}

func (cfg *Config) ReplyTimeout() time.Duration {
	return time.Duration(cfg.ReplyTimeoutSeconds) * time.Second
}

func (cfg *Config) ReconnectPoll() time.Duration {
	return time.Duration(cfg.ReconnectPollSeconds) * time.Second
}

func (cfg *Config) ReconnectTimeout() time.Duration {
	return time.Duration(cfg.ReconnectTimeoutSeconds) * time.Second
}

func (cfg *Config) ListenAddr(host string) string {
	return fmt.Sprintf("%s:%d", host, cfg.HTTPPort)
}
