package config

import (
	"os"
	"time"

	"github.com/muurk/probewatch/internal/link"
)

// PassphraseEnvVar overrides link.passphrase so the secret can stay out of
// the file.
const PassphraseEnvVar = "PROBEWATCH_PASSPHRASE"

// Driver and backend names.
const (
	DriverSim = "sim"
	DriverWPA = "wpa"
)

// Indicator LED kinds.
const (
	LEDTerminal = "terminal"
	LEDSysfs    = "sysfs"
	LEDNone     = "none"
)

// Trigger sources.
const (
	TriggerSignal   = "signal"
	TriggerKeyboard = "keyboard"
	TriggerTUI      = "tui"
)

// Config represents the entire daemon configuration file.
type Config struct {
	Version   int             `yaml:"version"`
	Link      LinkConfig      `yaml:"link"`
	Scan      ScanConfig      `yaml:"scan"`
	Web       WebConfig       `yaml:"web"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Trigger   TriggerConfig   `yaml:"trigger"`
	Table     TableConfig     `yaml:"table"`
}

// LinkConfig configures the station link used in connected mode.
type LinkConfig struct {
	Interface    string          `yaml:"interface"`            // Wireless interface, e.g. wlan0
	SSID         string          `yaml:"ssid"`                 // Network to join
	Passphrase   string          `yaml:"passphrase,omitempty"` // WPA2 passphrase, empty for open networks
	Driver       string          `yaml:"driver"`               // "sim" or "wpa"
	ReadyTimeout time.Duration   `yaml:"ready_timeout"`        // Zero waits forever for an address
	DeinitPoll   time.Duration   `yaml:"deinit_poll"`          // Fallback poll while awaiting driver teardown
	Reconnect    ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig is the backoff applied after the first immediate
// reconnect of a disconnect streak.
type ReconnectConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	Multiplier      float64       `yaml:"multiplier"`
	MaxElapsed      time.Duration `yaml:"max_elapsed"`  // Zero retries forever
	MaxAttempts     uint64        `yaml:"max_attempts"` // Zero is unlimited
	Jitter          bool          `yaml:"jitter"`
}

// ScanConfig configures scan mode.
type ScanConfig struct {
	Interval time.Duration `yaml:"interval"`
	Backend  string        `yaml:"backend"` // "sim" or "wpa"
}

// WebConfig configures the web server of connected mode.
type WebConfig struct {
	Listen      string        `yaml:"listen"`       // host:port
	Advertise   bool          `yaml:"advertise"`    // Announce over mDNS
	ServiceName string        `yaml:"service_name"` // mDNS instance name
	PushPeriod  time.Duration `yaml:"push_period"`  // Websocket status refresh
}

// IndicatorConfig configures the transition LED.
type IndicatorConfig struct {
	LED       string        `yaml:"led"`        // "terminal", "sysfs" or "none"
	SysfsPath string        `yaml:"sysfs_path"` // e.g. /sys/class/leds/led0
	BlinkOn   time.Duration `yaml:"blink_on"`
	BlinkOff  time.Duration `yaml:"blink_off"`
}

// TriggerConfig configures the mode toggle input.
type TriggerConfig struct {
	Source   string        `yaml:"source"` // "signal", "keyboard" or "tui"
	Debounce time.Duration `yaml:"debounce"`
}

// TableConfig configures the observation table file.
type TableConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version: 1,
		Link: LinkConfig{
			Interface:    "wlan0",
			SSID:         "probewatch",
			Driver:       DriverSim,
			ReadyTimeout: 0,
			DeinitPoll:   link.DefaultDeinitPoll,
			Reconnect: ReconnectConfig{
				InitialInterval: time.Second,
				MaxInterval:     time.Minute,
				Multiplier:      2,
				Jitter:          true,
			},
		},
		Scan: ScanConfig{
			Interval: 5 * time.Second,
			Backend:  DriverSim,
		},
		Web: WebConfig{
			Listen:      ":8080",
			Advertise:   true,
			ServiceName: "probewatch",
			PushPeriod:  time.Second,
		},
		Indicator: IndicatorConfig{
			LED:       LEDTerminal,
			SysfsPath: "/sys/class/leds/led0",
			BlinkOn:   250 * time.Millisecond,
			BlinkOff:  250 * time.Millisecond,
		},
		Trigger: TriggerConfig{
			Source:   TriggerSignal,
			Debounce: 300 * time.Millisecond,
		},
		Table: TableConfig{
			Path: defaultTablePath(),
		},
	}
}

// Credentials returns the station credentials, with the passphrase taken
// from PROBEWATCH_PASSPHRASE when set.
func (c *Config) Credentials() link.Credentials {
	pass := c.Link.Passphrase
	if env, ok := os.LookupEnv(PassphraseEnvVar); ok {
		pass = env
	}
	return link.Credentials{SSID: c.Link.SSID, Passphrase: pass}
}

// Policy converts the reconnect section for link.NewReconnectPolicy.
func (r ReconnectConfig) Policy() link.PolicyConfig {
	return link.PolicyConfig{
		InitialInterval: r.InitialInterval,
		MaxInterval:     r.MaxInterval,
		Multiplier:      r.Multiplier,
		MaxElapsedTime:  r.MaxElapsed,
		MaxAttempts:     r.MaxAttempts,
		Jitter:          r.Jitter,
	}
}
