package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Field   string // Dotted YAML path, e.g. "link.driver"
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return invalid("version", "unsupported config version %d (expected 1)", c.Version)
	}

	if err := c.Credentials().Validate(); err != nil {
		return invalid("link", "%v", err)
	}
	if c.Link.Interface == "" {
		return invalid("link.interface", "must not be empty")
	}
	if !oneOf(c.Link.Driver, DriverSim, DriverWPA) {
		return invalid("link.driver", "must be %q or %q, got %q", DriverSim, DriverWPA, c.Link.Driver)
	}
	if c.Link.ReadyTimeout < 0 {
		return invalid("link.ready_timeout", "must not be negative")
	}
	if c.Link.DeinitPoll <= 0 {
		return invalid("link.deinit_poll", "must be positive")
	}
	r := c.Link.Reconnect
	if r.InitialInterval <= 0 {
		return invalid("link.reconnect.initial_interval", "must be positive")
	}
	if r.MaxInterval < r.InitialInterval {
		return invalid("link.reconnect.max_interval", "must be at least initial_interval")
	}
	if r.Multiplier < 1 {
		return invalid("link.reconnect.multiplier", "must be >= 1, got %g", r.Multiplier)
	}

	if c.Scan.Interval <= 0 {
		return invalid("scan.interval", "must be positive")
	}
	if !oneOf(c.Scan.Backend, DriverSim, DriverWPA) {
		return invalid("scan.backend", "must be %q or %q, got %q", DriverSim, DriverWPA, c.Scan.Backend)
	}

	if err := validateListen(c.Web.Listen); err != nil {
		return invalid("web.listen", "%v", err)
	}
	if c.Web.Advertise && c.Web.ServiceName == "" {
		return invalid("web.service_name", "required when advertise is enabled")
	}
	if c.Web.PushPeriod <= 0 {
		return invalid("web.push_period", "must be positive")
	}

	if !oneOf(c.Indicator.LED, LEDTerminal, LEDSysfs, LEDNone) {
		return invalid("indicator.led", "must be %q, %q or %q, got %q", LEDTerminal, LEDSysfs, LEDNone, c.Indicator.LED)
	}
	if c.Indicator.LED == LEDSysfs && c.Indicator.SysfsPath == "" {
		return invalid("indicator.sysfs_path", "required for the sysfs LED")
	}
	if c.Indicator.BlinkOn <= 0 || c.Indicator.BlinkOff <= 0 {
		return invalid("indicator", "blink_on and blink_off must be positive")
	}

	if !oneOf(c.Trigger.Source, TriggerSignal, TriggerKeyboard, TriggerTUI) {
		return invalid("trigger.source", "must be %q, %q or %q, got %q", TriggerSignal, TriggerKeyboard, TriggerTUI, c.Trigger.Source)
	}
	if c.Trigger.Debounce < 0 {
		return invalid("trigger.debounce", "must not be negative")
	}

	if c.Table.Path == "" {
		return invalid("table.path", "must not be empty")
	}
	return nil
}

func validateListen(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("port must be 0-65535, got %q", port)
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
