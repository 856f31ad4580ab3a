package link

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"time"

	"github.com/muurk/probewatch/internal/events"
	"github.com/muurk/probewatch/internal/logging"
	"go.uber.org/zap"
)

// DefaultDeinitPoll is the fallback poll interval of AwaitDeinit.
const DefaultDeinitPoll = 50 * time.Millisecond

// Controller owns the wireless link lifecycle: bring-up, reconnection on
// loss and full teardown. It is the only writer of the link state.
type Controller struct {
	driver Driver
	bus    EventBus
	gate   *Gate
	policy *ReconnectPolicy
	log    *zap.Logger

	// opMu serialises Start, Stop and the driver calls made by event
	// handlers.
	opMu sync.Mutex

	mu         sync.Mutex
	state      State
	running    bool
	ssid       string
	addr       netip.Addr
	reconnects int
	handles    []events.Handle
	retryTimer *time.Timer

	// deinitDone is armed by each teardown and closed by its confirmation.
	// DriverDeinitialized only counts while a teardown is pending.
	deinitDone    chan struct{}
	deinitPending bool

	deinitHandle events.Handle
	faults       chan error
}

// Option customises a Controller.
type Option func(*Controller)

// WithPolicy sets the reconnect policy. The default is
// NewReconnectPolicy(DefaultPolicyConfig()).
func WithPolicy(p *ReconnectPolicy) Option {
	return func(c *Controller) { c.policy = p }
}

// WithGate supplies the readiness gate, for callers that share it.
func WithGate(g *Gate) Option {
	return func(c *Controller) { c.gate = g }
}

// NewController creates a controller bound to driver and bus.
func NewController(driver Driver, bus EventBus, opts ...Option) (*Controller, error) {
	c := &Controller{
		driver:     driver,
		bus:        bus,
		log:        logging.Named("link"),
		state:      StateUninitialized,
		faults:     make(chan error, 8),
		deinitDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.gate == nil {
		c.gate = NewGate()
	}
	if c.policy == nil {
		c.policy = NewReconnectPolicy(DefaultPolicyConfig())
	}

	h, err := bus.Register(events.DriverDeinitialized, c.onDeinitialized)
	if err != nil {
		return nil, err
	}
	c.deinitHandle = h
	return c, nil
}

// Close releases the controller's own event registration. Stop the link
// first.
func (c *Controller) Close() error {
	return c.bus.Unregister(c.deinitHandle)
}

// Faults delivers asynchronous subsystem failures (reconnect failures and
// policy exhaustion) to a supervisor.
func (c *Controller) Faults() <-chan error {
	return c.faults
}

// Gate returns the controller's readiness gate.
func (c *Controller) Gate() *Gate {
	return c.gate
}

// Start arms the link: init, event registration, station configuration and
// connect. It does not wait for the link to come up; use WaitReady.
func (c *Controller) Start(creds Credentials) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.gate.Create(); err != nil {
		return ErrAlreadyRunning
	}

	c.mu.Lock()
	c.state = StateConfiguring
	c.ssid = creds.SSID
	c.mu.Unlock()

	if err := c.bringUp(creds); err != nil {
		c.abortStart()
		return err
	}
	return nil
}

func (c *Controller) bringUp(creds Credentials) error {
	if err := c.driver.Init(); err != nil {
		return subsystem("init", err)
	}

	disc, err := c.bus.Register(events.LinkDisconnected, c.onDisconnect)
	if err != nil {
		return subsystem("register", err)
	}
	addr, err := c.bus.Register(events.AddressAcquired, c.onAddressAcquired)
	if err != nil {
		_ = c.bus.Unregister(disc)
		return subsystem("register", err)
	}

	c.mu.Lock()
	c.handles = []events.Handle{disc, addr}
	c.running = true
	c.reconnects = 0
	c.deinitPending = false
	c.mu.Unlock()

	c.policy.Reset()

	if err := c.driver.SetStorage(StorageRAM); err != nil {
		return subsystem("set_storage", err)
	}

	logging.LogLinkEvent("connecting",
		zap.String("interface", c.driver.Interface()),
		zap.String("ssid", creds.SSID),
	)

	if err := c.driver.SetMode(ModeStation); err != nil {
		return subsystem("set_mode", err)
	}
	if err := c.driver.SetConfig(creds); err != nil {
		return subsystem("set_config", err)
	}
	if err := c.driver.Start(); err != nil {
		return subsystem("start", err)
	}

	c.setState(StateConnecting)

	if err := c.driver.Connect(); err != nil {
		return subsystem("connect", err)
	}
	return nil
}

// abortStart undoes a partial Start so that a later Start is possible.
func (c *Controller) abortStart() {
	c.disarm()
	c.armDeinit()
	if err := c.driver.Stop(); err == nil {
		_ = c.driver.Deinit()
	}
	c.gate.Destroy()
	c.setState(StateUninitialized)
}

// disarm stops reacting to link events and cancels a pending reconnect.
func (c *Controller) disarm() {
	c.mu.Lock()
	c.running = false
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	handles := c.handles
	c.handles = nil
	c.mu.Unlock()

	for _, h := range handles {
		if err := c.bus.Unregister(h); err != nil && !errors.Is(err, events.ErrNotRegistered) {
			c.log.Warn("Failed to unregister link handler", zap.Error(err))
		}
	}
}

// Stop tears the link down: handlers are unregistered first, then the
// driver is stopped and deinitialised, and finally the readiness gate is
// destroyed. Stopping a link that was never started succeeds.
func (c *Controller) Stop() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.log.Info("Wifi service stopping")

	c.mu.Lock()
	if c.state != StateUninitialized {
		c.state = StateTearingDown
	}
	c.mu.Unlock()

	c.disarm()
	c.armDeinit()

	err := c.driver.Stop()
	if errors.Is(err, ErrNotInitialized) {
		c.finishStop()
		// A deinit started by an aborted Start may still be running.
		if c.driver.State() == DriverDeinit {
			c.markDeinitialized()
		}
		return nil
	}
	if err != nil {
		c.gate.Destroy()
		return subsystem("stop", err)
	}

	c.log.Info("Wifi service deinitializing")
	if err := c.driver.Deinit(); err != nil {
		c.gate.Destroy()
		return subsystem("deinit", err)
	}

	c.finishStop()
	logging.LogLinkEvent("disconnected_from_ap", zap.String("ssid", c.Status().SSID))
	return nil
}

func (c *Controller) finishStop() {
	c.gate.Destroy()
	c.setState(StateUninitialized)
}

// AwaitDeinit blocks until the driver confirms it is fully deinitialised.
// It wakes on the DriverDeinitialized event and also re-checks the driver
// state every poll interval.
func (c *Controller) AwaitDeinit(ctx context.Context, poll time.Duration) error {
	if poll <= 0 {
		poll = DefaultDeinitPoll
	}
	c.mu.Lock()
	done := c.deinitDone
	c.mu.Unlock()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if c.driver.State() == DriverDeinit {
			return nil
		}
		select {
		case <-done:
			return nil
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitReady blocks until the link has an address or the timeout elapses.
func (c *Controller) WaitReady(ctx context.Context, timeout time.Duration) error {
	if err := c.gate.WaitReady(ctx, timeout); err != nil {
		return err
	}
	st := c.Status()
	logging.LogLinkEvent("connected_to_ap", zap.String("ssid", st.SSID))
	c.log.Info("IPv4 address", zap.String("addr", st.LastAddress.String()))
	return nil
}

// State returns the current link state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastAddress returns the most recently acquired address. It is for
// diagnostics only.
func (c *Controller) LastAddress() netip.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:       c.state,
		Interface:   c.driver.Interface(),
		SSID:        c.ssid,
		LastAddress: c.addr,
		Reconnects:  c.reconnects,
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != s {
		c.log.Debug("Link state", zap.Stringer("from", c.state), zap.Stringer("to", s))
	}
	c.state = s
}

func (c *Controller) onDisconnect(ev events.Event) {
	info, _ := ev.Data.(events.Disconnect)
	reason := Reason(info.Reason)

	c.opMu.Lock()
	if !c.isRunning() {
		c.opMu.Unlock()
		return
	}
	c.setState(StateDisconnected)
	c.gate.Reset()
	logging.LogLinkEvent("disconnected",
		zap.Stringer("reason", reason),
		zap.Uint16("reason_code", uint16(reason)),
	)

	if reason == ReasonBasicRateNotSupport {
		c.log.Info("Falling back to 802.11b/g/n", zap.Stringer("protocol", ProtocolCompatible))
		if err := c.driver.SetProtocol(ProtocolCompatible); err != nil {
			c.log.Warn("Failed to change PHY protocol", zap.Error(err))
		}
	}
	c.opMu.Unlock()

	delay, ok := c.policy.Next()
	if !ok {
		c.fail(subsystem("reconnect", ErrReconnectExhausted))
		return
	}
	if delay == 0 {
		c.reconnect()
		return
	}

	c.log.Info("Reconnect scheduled", zap.Duration("delay", delay))
	c.mu.Lock()
	if c.running {
		c.retryTimer = time.AfterFunc(delay, c.reconnect)
	}
	c.mu.Unlock()
}

// reconnect re-issues connect unless the link was stopped meanwhile.
func (c *Controller) reconnect() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.retryTimer = nil
	c.reconnects++
	c.state = StateConnecting
	c.mu.Unlock()

	logging.LogLinkEvent("reconnecting")
	if err := c.driver.Connect(); err != nil {
		c.fail(subsystem("connect", err))
	}
}

func (c *Controller) isRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Controller) onAddressAcquired(ev events.Event) {
	info, _ := ev.Data.(events.Address)

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.state = StateConnected
	c.addr = info.Addr
	c.mu.Unlock()

	c.policy.Reset()
	logging.LogAddress(info.Interface, info.Addr.String())
	c.gate.Signal()
}

func (c *Controller) onDeinitialized(events.Event) {
	c.markDeinitialized()
}

// armDeinit starts a teardown whose completion AwaitDeinit waits for.
func (c *Controller) armDeinit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.deinitPending {
		c.deinitDone = make(chan struct{})
		c.deinitPending = true
	}
}

func (c *Controller) markDeinitialized() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.deinitPending {
		c.log.Debug("Ignoring deinit confirmation with no teardown pending")
		return
	}
	c.deinitPending = false
	close(c.deinitDone)
}

// fail reports an asynchronous fault and releases a caller blocked in
// WaitReady with the same error.
func (c *Controller) fail(err error) {
	c.report(err)
	c.gate.Fail(err)
}

func (c *Controller) report(err error) {
	c.log.Error("Link fault", zap.Error(err))
	select {
	case c.faults <- err:
	default:
		c.log.Warn("Fault channel full, dropping fault", zap.Error(err))
	}
}
