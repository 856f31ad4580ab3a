package sim

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/muurk/probewatch/internal/events"
	"github.com/muurk/probewatch/internal/link"
	"github.com/muurk/probewatch/internal/logging"
	"go.uber.org/zap"
)

// Poster is the part of the event loop the driver posts notifications to.
type Poster interface {
	Post(events.Event) error
}

// Options tunes the simulated radio.
type Options struct {
	Interface    string        // Interface name, default "sim0"
	AssocLatency time.Duration // Delay between Connect and association
	DHCPLatency  time.Duration // Delay between association and address
	DeinitDelay  time.Duration // Tail between Deinit and DriverDeinitialized
	Address      netip.Addr    // Leased address, default 192.168.4.20
}

// DefaultOptions returns latencies in the range of a real station.
func DefaultOptions() Options {
	return Options{
		Interface:    "sim0",
		AssocLatency: 150 * time.Millisecond,
		DHCPLatency:  300 * time.Millisecond,
		DeinitDelay:  100 * time.Millisecond,
		Address:      netip.MustParseAddr("192.168.4.20"),
	}
}

var errNotStarted = errors.New("sim: radio not started")

// Driver is an in-memory link.Driver. Every notification is posted from a
// timer goroutine, never from inside a driver call.
type Driver struct {
	net  *Network
	bus  Poster
	opts Options
	log  *zap.Logger

	mu         sync.Mutex
	state      link.DriverState
	inited     bool
	started    bool
	associated bool
	storage    link.Storage
	creds      link.Credentials
	protocol   link.Protocol
	gen        uint64 // bumped to invalidate pending association timers
	timers     []*time.Timer
}

// New creates a driver attached to net that posts on bus.
func New(net *Network, bus Poster, opts Options) *Driver {
	def := DefaultOptions()
	if opts.Interface == "" {
		opts.Interface = def.Interface
	}
	if !opts.Address.IsValid() {
		opts.Address = def.Address
	}
	return &Driver{
		net:   net,
		bus:   bus,
		opts:  opts,
		log:   logging.Named("sim"),
		state: link.DriverDeinit,
	}
}

// Interface implements link.Driver.
func (d *Driver) Interface() string { return d.opts.Interface }

// Init implements link.Driver.
func (d *Driver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inited = true
	d.state = link.DriverInit
	d.protocol = link.Protocol11G | link.Protocol11N
	return nil
}

// SetStorage implements link.Driver.
func (d *Driver) SetStorage(s link.Storage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inited {
		return link.ErrNotInitialized
	}
	d.storage = s
	return nil
}

// SetMode implements link.Driver. Only station mode is simulated.
func (d *Driver) SetMode(m link.Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inited {
		return link.ErrNotInitialized
	}
	if m != link.ModeStation {
		return fmt.Errorf("sim: unsupported mode %d", m)
	}
	return nil
}

// SetConfig implements link.Driver.
func (d *Driver) SetConfig(c link.Credentials) error {
	if err := c.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inited {
		return link.ErrNotInitialized
	}
	d.creds = c
	return nil
}

// SetProtocol implements link.Driver.
func (d *Driver) SetProtocol(p link.Protocol) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inited {
		return link.ErrNotInitialized
	}
	d.protocol = p
	return nil
}

// Protocol returns the PHY protocol set currently applied.
func (d *Driver) Protocol() link.Protocol {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.protocol
}

// Start implements link.Driver.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inited {
		return link.ErrNotInitialized
	}
	d.started = true
	d.state = link.DriverStarted
	return nil
}

// Connect implements link.Driver. The outcome is posted after the
// association latency.
func (d *Driver) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return errNotStarted
	}
	d.cancelTimers()
	d.gen++
	gen := d.gen
	d.after(d.opts.AssocLatency, func() { d.associate(gen) })
	return nil
}

func (d *Driver) associate(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.started {
		d.mu.Unlock()
		return
	}
	creds, proto := d.creds, d.protocol
	ap, found := d.net.Lookup(creds.SSID)

	var reason link.Reason
	switch {
	case !found:
		reason = link.ReasonNoAPFound
	case ap.Passphrase != creds.Passphrase:
		reason = link.ReasonHandshakeTimeout
	case ap.LegacyRates && proto&link.Protocol11B == 0:
		reason = link.ReasonBasicRateNotSupport
	}
	if reason != 0 {
		d.mu.Unlock()
		d.log.Debug("Association rejected", zap.String("ssid", creds.SSID), zap.Stringer("reason", reason))
		d.postDisconnect(reason)
		return
	}

	d.associated = true
	d.after(d.opts.DHCPLatency, func() { d.lease(gen) })
	d.mu.Unlock()

	d.log.Debug("Associated", zap.String("ssid", ap.SSID), zap.String("bssid", ap.BSSID))
	d.post(events.Event{Class: events.LinkConnected})
}

func (d *Driver) lease(gen uint64) {
	d.mu.Lock()
	ok := gen == d.gen && d.associated
	d.mu.Unlock()
	if !ok {
		return
	}
	d.post(events.Event{
		Class: events.AddressAcquired,
		Data:  events.Address{Interface: d.opts.Interface, Addr: d.opts.Address},
	})
}

// InjectDisconnect drops the association as if the AP had sent reason.
// It returns false when the station was not associated.
func (d *Driver) InjectDisconnect(reason link.Reason) bool {
	d.mu.Lock()
	if !d.associated {
		d.mu.Unlock()
		return false
	}
	d.associated = false
	d.gen++
	d.mu.Unlock()

	go d.postDisconnect(reason)
	return true
}

// Associated reports whether the station is currently associated.
func (d *Driver) Associated() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.associated
}

// Stop implements link.Driver.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inited {
		return link.ErrNotInitialized
	}
	wasAssociated := d.associated
	d.cancelTimers()
	d.started = false
	d.associated = false
	d.state = link.DriverInit
	if wasAssociated {
		d.after(0, func() { d.postDisconnect(link.ReasonAssocLeave) })
	}
	return nil
}

// Deinit implements link.Driver. The driver reports DriverDeinit and posts
// DriverDeinitialized only after the configured tail.
func (d *Driver) Deinit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inited {
		return link.ErrNotInitialized
	}
	d.inited = false
	d.started = false
	d.cancelTimers()
	d.gen++
	gen := d.gen
	d.after(d.opts.DeinitDelay, func() { d.finishDeinit(gen) })
	return nil
}

func (d *Driver) finishDeinit(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.inited {
		d.mu.Unlock()
		return
	}
	d.state = link.DriverDeinit
	d.mu.Unlock()

	d.post(events.Event{Class: events.DriverDeinitialized})
}

// State implements link.Driver.
func (d *Driver) State() link.DriverState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// after schedules fn. Callers hold d.mu.
func (d *Driver) after(delay time.Duration, fn func()) {
	d.timers = append(d.timers, time.AfterFunc(delay, fn))
}

// cancelTimers stops pending notifications. Callers hold d.mu.
func (d *Driver) cancelTimers() {
	for _, t := range d.timers {
		t.Stop()
	}
	d.timers = nil
}

func (d *Driver) postDisconnect(reason link.Reason) {
	d.post(events.Event{
		Class: events.LinkDisconnected,
		Data:  events.Disconnect{Interface: d.opts.Interface, Reason: uint16(reason)},
	})
}

func (d *Driver) post(ev events.Event) {
	if err := d.bus.Post(ev); err != nil {
		d.log.Debug("Dropping event", zap.String("class", string(ev.Class)), zap.Error(err))
	}
}
