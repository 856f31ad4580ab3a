package mode

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/muurk/probewatch/internal/events"
	"github.com/muurk/probewatch/internal/indicator"
	"github.com/muurk/probewatch/internal/link"
	"github.com/muurk/probewatch/internal/logging"
	"github.com/muurk/probewatch/internal/web"
	"go.uber.org/zap"
)

// DefaultRecoverTimeout bounds the deinit wait of Recover.
const DefaultRecoverTimeout = 10 * time.Second

// Config holds the settings fixed at bootstrap.
type Config struct {
	Credentials  link.Credentials
	ReadyTimeout time.Duration // Zero waits until ctx is done
	DeinitPoll   time.Duration
}

// Deps are the subsystems the orchestrator switches between.
type Deps struct {
	Link      Link
	Bus       link.EventBus
	Web       Web
	Scanner   Scanner
	Indicator Indicator
	Table     TableLoader
}

// Orchestrator toggles between scan and connected mode. The two modes
// never run at the same time: the outgoing mode is fully torn down before
// the incoming one starts.
type Orchestrator struct {
	deps Deps
	cfg  Config
	log  *zap.Logger

	// toggleMu makes Toggle non-reentrant; Recover waits for it.
	toggleMu sync.Mutex

	mu           sync.Mutex
	mode         Mode
	transitional bool

	// webMu guards the web handle and the bridge flag. Bridge handlers run
	// on the event loop and take it too.
	webMu   sync.Mutex
	webH    web.Handle
	bridged bool
	bridges []events.Handle
}

// New creates an orchestrator. Nothing runs until the first Toggle, which
// enters scan mode.
func New(deps Deps, cfg Config) *Orchestrator {
	if deps.Indicator == nil {
		deps.Indicator = indicator.New(nil, 0, 0)
	}
	return &Orchestrator{
		deps: deps,
		cfg:  cfg,
		log:  logging.Named("mode"),
		// The first toggle leaves a connected mode that never started,
		// which tears down nothing and starts scanning.
		mode: Connected,
	}
}

// Mode returns the current operating mode.
func (o *Orchestrator) Mode() Mode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}

// Transitioning reports whether a mode change is in progress.
func (o *Orchestrator) Transitioning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transitional
}

// WebRunning reports whether the web server is up.
func (o *Orchestrator) WebRunning() bool {
	o.webMu.Lock()
	defer o.webMu.Unlock()
	return o.webH.Valid()
}

// Toggle switches to the other mode. It returns ErrToggleBusy if a toggle
// is already running. On failure the mode is unchanged and the error is a
// *TransitionError; call Recover to get back to a known state.
func (o *Orchestrator) Toggle(ctx context.Context) error {
	if !o.toggleMu.TryLock() {
		return ErrToggleBusy
	}
	defer o.toggleMu.Unlock()

	o.beginTransition(ctx)
	defer o.endTransition()

	from := o.Mode()
	to := from.Other()
	o.log.Info("Mode transition", zap.Stringer("from", from), zap.Stringer("to", to))

	var err error
	if from == Connected {
		err = o.enterScan(ctx)
	} else {
		err = o.enterConnected(ctx)
	}
	if err != nil {
		return err
	}

	o.setMode(to)
	logging.LogModeChange(from.String(), to.String())
	return nil
}

// Recover falls back to scan mode from whatever state a failed transition
// or link fault left behind. It stops the web server and the link, waits
// for the driver to deinitialise and restarts scanning.
func (o *Orchestrator) Recover(ctx context.Context) error {
	o.toggleMu.Lock()
	defer o.toggleMu.Unlock()

	o.beginTransition(ctx)
	defer o.endTransition()

	from := o.Mode()
	o.log.Warn("Recovering to scan mode", zap.Stringer("from", from))

	o.detachWeb()

	if err := o.deps.Link.Stop(); err != nil {
		return &TransitionError{From: from, To: Scan, Step: "stop link", Err: err}
	}
	waitCtx, cancel := context.WithTimeout(ctx, DefaultRecoverTimeout)
	defer cancel()
	if err := o.deps.Link.AwaitDeinit(waitCtx, o.cfg.DeinitPoll); err != nil {
		return &TransitionError{From: from, To: Scan, Step: "await deinit", Err: err}
	}

	if err := o.deps.Scanner.Stop(); err != nil {
		o.log.Warn("Failed to stop scanner before restart", zap.Error(err))
	}
	if err := o.deps.Scanner.Start(); err != nil {
		return &TransitionError{From: from, To: Scan, Step: "start scanner", Err: err}
	}

	o.setMode(Scan)
	logging.LogModeChange(from.String(), Scan.String())
	return nil
}

// Shutdown stops whichever mode is active. It is used on process exit.
func (o *Orchestrator) Shutdown() error {
	o.toggleMu.Lock()
	defer o.toggleMu.Unlock()

	o.detachWeb()
	var errs []error
	if err := o.deps.Scanner.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := o.deps.Link.Stop(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// enterScan leaves connected mode.
func (o *Orchestrator) enterScan(ctx context.Context) error {
	fail := func(step string, err error) error {
		return &TransitionError{From: Connected, To: Scan, Step: step, Err: err}
	}

	o.detachWeb()

	if err := o.deps.Link.Stop(); err != nil {
		return fail("stop link", err)
	}
	if err := o.deps.Link.AwaitDeinit(ctx, o.cfg.DeinitPoll); err != nil {
		return fail("await deinit", err)
	}
	o.log.Debug("Wifi driver deinitialized")

	if err := o.deps.Scanner.Start(); err != nil {
		return fail("start scanner", err)
	}
	return nil
}

// enterConnected leaves scan mode.
func (o *Orchestrator) enterConnected(ctx context.Context) error {
	fail := func(step string, err error) error {
		return &TransitionError{From: Scan, To: Connected, Step: step, Err: err}
	}

	if err := o.deps.Scanner.Stop(); err != nil {
		return fail("stop scanner", err)
	}
	if o.deps.Table != nil {
		if err := o.deps.Table.Load(); err != nil {
			return fail("load table", err)
		}
	}

	if err := o.deps.Link.Start(o.cfg.Credentials); err != nil && !errors.Is(err, link.ErrAlreadyRunning) {
		return fail("start link", err)
	}
	if err := o.deps.Link.WaitReady(ctx, o.cfg.ReadyTimeout); err != nil {
		return fail("wait ready", err)
	}

	if err := o.attachBridges(); err != nil {
		return fail("register bridges", err)
	}
	// The link may have come up before the bridges existed.
	if err := o.startWeb(); err != nil {
		return fail("start web", err)
	}
	return nil
}

func (o *Orchestrator) beginTransition(ctx context.Context) {
	o.mu.Lock()
	o.transitional = true
	o.mu.Unlock()
	o.deps.Indicator.Run(ctx, indicator.MonoBlink)
}

func (o *Orchestrator) endTransition() {
	o.deps.Indicator.Cancel()
	o.mu.Lock()
	o.transitional = false
	o.mu.Unlock()
}

func (o *Orchestrator) setMode(m Mode) {
	o.mu.Lock()
	o.mode = m
	o.mu.Unlock()
}
