package service

import (
	"fmt"
	"io"
	"os"

	"github.com/muurk/probewatch/internal/config"
	"github.com/muurk/probewatch/internal/driver/sim"
	"github.com/muurk/probewatch/internal/driver/wpa"
	"github.com/muurk/probewatch/internal/events"
	"github.com/muurk/probewatch/internal/indicator"
	"github.com/muurk/probewatch/internal/link"
	"github.com/muurk/probewatch/internal/logging"
	"github.com/muurk/probewatch/internal/mode"
	"github.com/muurk/probewatch/internal/scan"
	"github.com/muurk/probewatch/internal/table"
	"github.com/muurk/probewatch/internal/trigger"
	"github.com/muurk/probewatch/internal/web"
	"go.uber.org/zap"
)

// Option customises Bootstrap.
type Option func(*options)

type options struct {
	trigger    trigger.Source
	ledOut     io.Writer
	version    string
	simNetwork *sim.Network
	simOptions *sim.Options
	onQuit     func()
}

// WithTrigger replaces the trigger source chosen by the configuration.
func WithTrigger(src trigger.Source) Option {
	return func(o *options) { o.trigger = src }
}

// WithLEDOutput sets where the terminal LED draws. Default stderr.
func WithLEDOutput(w io.Writer) Option {
	return func(o *options) { o.ledOut = w }
}

// WithVersion sets the version advertised by the web server.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithSimNetwork sets the radio environment of the sim driver and scan
// backend.
func WithSimNetwork(n *sim.Network) Option {
	return func(o *options) { o.simNetwork = n }
}

// WithSimOptions sets the sim driver latencies.
func WithSimOptions(so sim.Options) Option {
	return func(o *options) { o.simOptions = &so }
}

// WithQuit is called when the keyboard trigger asks to quit.
func WithQuit(fn func()) Option {
	return func(o *options) { o.onQuit = fn }
}

// Bootstrap performs the one-time process setup: the table store, the
// event loop, the wireless driver and every subsystem the orchestrator
// switches between. Nothing is started; call Run.
func Bootstrap(cfg *config.Config, opts ...Option) (*Service, error) {
	o := options{ledOut: os.Stderr, version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	creds := cfg.Credentials()

	s := &Service{
		cfg:     cfg,
		log:     logging.Named("service"),
		presses: make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}

	// Storage
	s.table = table.New(cfg.Table.Path)
	if err := s.table.Load(); err != nil {
		return nil, fmt.Errorf("failed to load table: %w", err)
	}

	// Event loop
	s.loop = events.NewLoop(events.DefaultQueueSize)

	// Network stack
	network := o.simNetwork
	if network == nil && (cfg.Link.Driver == config.DriverSim || cfg.Scan.Backend == config.DriverSim) {
		network = sim.DefaultNetwork(creds.SSID, creds.Passphrase)
	}

	switch cfg.Link.Driver {
	case config.DriverWPA:
		s.driver = wpa.New(cfg.Link.Interface, s.loop)
	default:
		so := sim.DefaultOptions()
		if o.simOptions != nil {
			so = *o.simOptions
		}
		so.Interface = cfg.Link.Interface
		s.sim = sim.New(network, s.loop, so)
		s.driver = s.sim
	}

	ctrl, err := link.NewController(s.driver, s.loop,
		link.WithPolicy(link.NewReconnectPolicy(cfg.Link.Reconnect.Policy())),
	)
	if err != nil {
		s.loop.Close()
		return nil, fmt.Errorf("failed to create link controller: %w", err)
	}
	s.ctrl = ctrl

	var backend scan.Backend = network
	if cfg.Scan.Backend == config.DriverWPA {
		wb := wpa.NewScanBackend(cfg.Link.Interface)
		s.closers = append(s.closers, wb.Close)
		backend = wb
	}
	s.scanner = scan.New(backend, s.table, cfg.Scan.Interval)

	s.web = web.New(web.Config{
		Listen:      cfg.Web.Listen,
		Advertise:   cfg.Web.Advertise,
		ServiceName: cfg.Web.ServiceName,
		PushPeriod:  cfg.Web.PushPeriod,
		Version:     o.version,
	}, s.table, s.webStatus)

	s.indicator = indicator.New(newLED(cfg.Indicator, o.ledOut), cfg.Indicator.BlinkOn, cfg.Indicator.BlinkOff)

	s.orch = mode.New(mode.Deps{
		Link:      s.ctrl,
		Bus:       s.loop,
		Web:       s.web,
		Scanner:   s.scanner,
		Indicator: s.indicator,
		Table:     s.table,
	}, mode.Config{
		Credentials:  creds,
		ReadyTimeout: cfg.Link.ReadyTimeout,
		DeinitPoll:   cfg.Link.DeinitPoll,
	})

	s.trigger = o.trigger
	if s.trigger == nil {
		s.trigger = newTrigger(cfg.Trigger, func() {
			if o.onQuit != nil {
				o.onQuit()
			}
			s.Quit()
		})
	}
	s.debounce = trigger.NewDebouncer(cfg.Trigger.Debounce)

	s.log.Info("Service bootstrapped",
		zap.String("driver", cfg.Link.Driver),
		zap.String("interface", s.driver.Interface()),
		zap.String("scan_backend", cfg.Scan.Backend),
		zap.String("trigger", cfg.Trigger.Source),
		zap.Int("table_entries", s.table.Len()),
	)
	return s, nil
}

func newLED(cfg config.IndicatorConfig, out io.Writer) indicator.LED {
	switch cfg.LED {
	case config.LEDTerminal:
		return indicator.NewTerminal(out, "switching mode")
	case config.LEDSysfs:
		led, err := indicator.NewSysfs(cfg.SysfsPath)
		if err != nil {
			logging.Warn("Sysfs LED unavailable, indicator disabled", zap.Error(err))
			return indicator.None{}
		}
		return led
	default:
		return indicator.None{}
	}
}

func newTrigger(cfg config.TriggerConfig, onQuit func()) trigger.Source {
	switch cfg.Source {
	case config.TriggerKeyboard:
		return trigger.NewKeyboard(os.Stdin, onQuit)
	case config.TriggerTUI:
		return trigger.NewManual()
	default:
		return trigger.NewSignal(nil)
	}
}
