package wpa

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/muurk/probewatch/internal/events"
	"github.com/muurk/probewatch/internal/link"
	"github.com/muurk/probewatch/internal/logging"
	"go.uber.org/zap"
)

// statusUnsupportedRates is the 802.11 association status code an AP
// returns when the station lacks one of its basic rates.
const statusUnsupportedRates = 18

// DefaultAddressPoll is how often the interface is checked for an IPv4
// address once the supplicant reports completion.
const DefaultAddressPoll = 250 * time.Millisecond

// Poster is the part of the event loop the driver posts notifications to.
type Poster interface {
	Post(events.Event) error
}

// AddrFunc lists the addresses currently assigned to an interface.
type AddrFunc func(ifname string) ([]netip.Addr, error)

// Driver implements link.Driver on top of wpa_supplicant's D-Bus API.
// Address assignment is left to the system's DHCP client; the driver only
// watches for it.
type Driver struct {
	ifname string
	bus    Poster
	log    *zap.Logger

	addrs       AddrFunc
	addressPoll time.Duration

	mu          sync.Mutex
	sup         *supplicant
	sigCh       chan *dbus.Signal
	done        chan struct{}
	state       link.DriverState
	storage     link.Storage
	creds       link.Credentials
	protocol    link.Protocol
	network     dbus.ObjectPath
	supState    string
	reason      int32
	assocStatus int32
	associated  bool
	pollCancel  context.CancelFunc
}

// New creates a driver for the wireless interface ifname.
func New(ifname string, bus Poster) *Driver {
	return &Driver{
		ifname:      ifname,
		bus:         bus,
		log:         logging.Named("wpa"),
		addrs:       InterfaceAddrs,
		addressPoll: DefaultAddressPoll,
		state:       link.DriverDeinit,
		protocol:    link.ProtocolCompatible,
	}
}

// Interface implements link.Driver.
func (d *Driver) Interface() string { return d.ifname }

// Init connects to the system bus and subscribes to the interface's
// state changes.
func (d *Driver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sup != nil {
		return nil
	}

	sup, err := dialSupplicant(d.ifname)
	if err != nil {
		return err
	}
	d.sup = sup
	d.sigCh = sup.subscribe()
	d.done = make(chan struct{})
	d.supState = ""
	d.state = link.DriverInit

	go d.watch(d.sigCh, d.done)

	d.log.Debug("Attached to wpa_supplicant",
		zap.String("interface", d.ifname),
		zap.String("path", string(sup.iface)),
	)
	return nil
}

// SetStorage implements link.Driver. With StorageFlash the supplicant's
// configuration file is rewritten after the network is added.
func (d *Driver) SetStorage(s link.Storage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sup == nil {
		return link.ErrNotInitialized
	}
	d.storage = s
	return nil
}

// SetMode implements link.Driver. wpa_supplicant networks default to
// infrastructure (station) mode.
func (d *Driver) SetMode(m link.Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sup == nil {
		return link.ErrNotInitialized
	}
	if m != link.ModeStation {
		return fmt.Errorf("wpa: unsupported mode %d", m)
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
	if d.sup == nil {
		return link.ErrNotInitialized
	}
	d.creds = c
	return nil
}

// SetProtocol implements link.Driver. wpa_supplicant negotiates legacy
// rates itself; only HT can be switched per network, so the set is
// applied as disable_ht when 802.11n is excluded.
func (d *Driver) SetProtocol(p link.Protocol) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sup == nil {
		return link.ErrNotInitialized
	}
	d.protocol = p
	if d.network == "" {
		return nil
	}
	props := map[string]dbus.Variant{"disable_ht": dbus.MakeVariant(disableHT(p))}
	if err := d.sup.setProp(d.network, networkIface, "Properties", props); err != nil {
		return fmt.Errorf("set network properties: %w", err)
	}
	return nil
}

// Start adds the configured network, replacing any the supplicant knew.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sup == nil {
		return link.ErrNotInitialized
	}

	if err := d.sup.call("RemoveAllNetworks").Err; err != nil {
		return fmt.Errorf("remove networks: %w", err)
	}

	var path dbus.ObjectPath
	if err := d.sup.call("AddNetwork", networkArgs(d.creds, d.protocol)).Store(&path); err != nil {
		return fmt.Errorf("add network: %w", err)
	}
	d.network = path

	if d.storage == link.StorageFlash {
		if err := d.sup.call("SaveConfig").Err; err != nil {
			d.log.Warn("Failed to persist supplicant config", zap.Error(err))
		}
	}
	d.state = link.DriverStarted
	return nil
}

// Connect selects the configured network, which (re)starts association.
func (d *Driver) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sup == nil || d.network == "" {
		return errors.New("wpa: network not started")
	}
	if err := d.sup.call("SelectNetwork", d.network).Err; err != nil {
		return fmt.Errorf("select network: %w", err)
	}
	return nil
}

// Stop disconnects and forgets the network.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sup == nil {
		return link.ErrNotInitialized
	}
	d.stopPollLocked()

	if err := d.sup.call("Disconnect").Err; err != nil {
		d.log.Debug("Disconnect failed", zap.Error(err))
	}
	if err := d.sup.call("RemoveAllNetworks").Err; err != nil {
		return fmt.Errorf("remove networks: %w", err)
	}
	d.network = ""
	d.associated = false
	d.state = link.DriverInit
	return nil
}

// Deinit drops the bus connection. Completion is immediate but is still
// announced with DriverDeinitialized.
func (d *Driver) Deinit() error {
	d.mu.Lock()
	if d.sup == nil {
		d.mu.Unlock()
		return link.ErrNotInitialized
	}
	d.stopPollLocked()
	d.sup.unsubscribe(d.sigCh)
	close(d.done)
	d.sup.close()
	d.sup = nil
	d.sigCh = nil
	d.state = link.DriverDeinit
	d.mu.Unlock()

	go d.post(events.Event{Class: events.DriverDeinitialized})
	return nil
}

// State implements link.Driver.
func (d *Driver) State() link.DriverState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Driver) watch(ch <-chan *dbus.Signal, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case sig, ok := <-ch:
			if !ok {
				return
			}
			d.handleSignal(sig)
		}
	}
}

// handleSignal turns supplicant property changes into link events.
func (d *Driver) handleSignal(sig *dbus.Signal) {
	if sig == nil || sig.Name != propsSignal || len(sig.Body) < 2 {
		return
	}
	// Body: [interface_name string, changed_props map[string]Variant, invalidated []string]
	iface, ok := sig.Body[0].(string)
	if !ok || iface != ifaceIface {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	d.mu.Lock()
	if v, ok := changed["DisconnectReason"]; ok {
		if r, ok := v.Value().(int32); ok {
			d.reason = r
		}
	}
	if v, ok := changed["AssocStatusCode"]; ok {
		if s, ok := v.Value().(int32); ok {
			d.assocStatus = s
		}
	}
	v, ok := changed["State"]
	if !ok {
		d.mu.Unlock()
		return
	}
	next, _ := v.Value().(string)
	prev := d.supState
	d.supState = next

	var out []events.Event
	switch {
	case next == "completed" && prev != "completed":
		d.associated = true
		d.reason, d.assocStatus = 0, 0
		out = append(out, events.Event{Class: events.LinkConnected})
		d.startPollLocked()
	case isIdle(next) && d.network != "" && !isIdle(prev) && prev != "":
		reason := mapReason(d.reason, d.assocStatus, d.associated)
		d.associated = false
		d.reason, d.assocStatus = 0, 0
		d.stopPollLocked()
		out = append(out, events.Event{
			Class: events.LinkDisconnected,
			Data:  events.Disconnect{Interface: d.ifname, Reason: uint16(reason)},
		})
	}
	d.mu.Unlock()

	d.log.Debug("Supplicant state", zap.String("from", prev), zap.String("to", next))
	for _, ev := range out {
		d.post(ev)
	}
}

// startPollLocked waits for the DHCP client to assign an address.
func (d *Driver) startPollLocked() {
	d.stopPollLocked()
	ctx, cancel := context.WithCancel(context.Background())
	d.pollCancel = cancel
	go d.pollAddress(ctx)
}

func (d *Driver) stopPollLocked() {
	if d.pollCancel != nil {
		d.pollCancel()
		d.pollCancel = nil
	}
}

func (d *Driver) pollAddress(ctx context.Context) {
	ticker := time.NewTicker(d.addressPoll)
	defer ticker.Stop()

	for {
		if addr, ok := d.firstIPv4(); ok {
			if ctx.Err() != nil {
				return
			}
			d.post(events.Event{
				Class: events.AddressAcquired,
				Data:  events.Address{Interface: d.ifname, Addr: addr},
			})
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *Driver) firstIPv4() (netip.Addr, bool) {
	addrs, err := d.addrs(d.ifname)
	if err != nil {
		d.log.Debug("Failed to read interface addresses", zap.Error(err))
		return netip.Addr{}, false
	}
	for _, a := range addrs {
		a = a.Unmap()
		if a.Is4() && !a.IsLinkLocalUnicast() && !a.IsUnspecified() {
			return a, true
		}
	}
	return netip.Addr{}, false
}

func (d *Driver) post(ev events.Event) {
	if err := d.bus.Post(ev); err != nil {
		d.log.Debug("Dropping event", zap.String("class", string(ev.Class)), zap.Error(err))
	}
}

// InterfaceAddrs is the default AddrFunc.
func InterfaceAddrs(ifname string) ([]netip.Addr, error) {
	ifi, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, err
	}
	raw, err := ifi.Addrs()
	if err != nil {
		return nil, err
	}
	out := make([]netip.Addr, 0, len(raw))
	for _, a := range raw {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if addr, ok := netip.AddrFromSlice(ipnet.IP); ok {
			out = append(out, addr)
		}
	}
	return out, nil
}

// mapReason converts the supplicant's view of a disconnect to a link
// reason. Negative disconnect reasons are locally generated.
func mapReason(disconnect, assocStatus int32, wasAssociated bool) link.Reason {
	if assocStatus == statusUnsupportedRates {
		return link.ReasonBasicRateNotSupport
	}
	if disconnect < 0 {
		disconnect = -disconnect
	}
	if disconnect != 0 {
		return link.Reason(disconnect)
	}
	if !wasAssociated {
		return link.ReasonNoAPFound
	}
	return link.ReasonUnspecified
}

func isIdle(state string) bool {
	return state == "disconnected" || state == "inactive"
}

func disableHT(p link.Protocol) int32 {
	if p&link.Protocol11N == 0 {
		return 1
	}
	return 0
}

func networkArgs(c link.Credentials, p link.Protocol) map[string]dbus.Variant {
	args := map[string]dbus.Variant{
		"ssid":       dbus.MakeVariant(c.SSID),
		"scan_ssid":  dbus.MakeVariant(int32(1)),
		"disable_ht": dbus.MakeVariant(disableHT(p)),
	}
	if c.Passphrase == "" {
		args["key_mgmt"] = dbus.MakeVariant("NONE")
	} else {
		args["key_mgmt"] = dbus.MakeVariant("WPA-PSK")
		args["psk"] = dbus.MakeVariant(c.Passphrase)
	}
	return args
}
