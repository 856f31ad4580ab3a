package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/muurk/probewatch/internal/config"
	"github.com/muurk/probewatch/internal/driver/sim"
	"github.com/muurk/probewatch/internal/events"
	"github.com/muurk/probewatch/internal/indicator"
	"github.com/muurk/probewatch/internal/link"
	"github.com/muurk/probewatch/internal/mode"
	"github.com/muurk/probewatch/internal/scan"
	"github.com/muurk/probewatch/internal/table"
	"github.com/muurk/probewatch/internal/trigger"
	"github.com/muurk/probewatch/internal/web"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("service already running")
	// ErrRecoveryFailed wraps the error of a failed fallback to scan mode.
	ErrRecoveryFailed = errors.New("recovery to scan mode failed")
)

// Service owns every subsystem of the daemon and supervises mode changes.
type Service struct {
	cfg *config.Config
	log *zap.Logger

	table     *table.Table
	loop      *events.Loop
	driver    link.Driver
	sim       *sim.Driver
	ctrl      *link.Controller
	scanner   *scan.Scanner
	web       *web.Server
	indicator *indicator.Indicator
	orch      *mode.Orchestrator
	trigger   trigger.Source
	debounce  *trigger.Debouncer
	closers   []func() error

	presses  chan struct{}
	quit     chan struct{}
	quitOnce sync.Once

	mu        sync.Mutex
	running   bool
	lastError string
	recovered int
}

// Snapshot is a read-only view of the daemon for dashboards.
type Snapshot struct {
	Mode          mode.Mode
	Transitioning bool
	Link          link.Status
	WebRunning    bool
	Entries       int
	Scan          scan.Stats
	Recoveries    int
	LastError     string
}

// Press requests a mode toggle. Presses that bounce or arrive while one is
// already queued are dropped.
func (s *Service) Press() {
	if !s.debounce.Allow() {
		s.log.Debug("Trigger debounced")
		return
	}
	select {
	case s.presses <- struct{}{}:
	default:
		s.log.Debug("Trigger ignored, toggle already pending")
	}
}

// Quit makes Run return.
func (s *Service) Quit() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// Run enters the initial mode and then handles triggers and link faults
// until ctx is done or Quit is called. Toggles run one at a time on this
// goroutine. A failed toggle or a link fault falls back to scan mode; if
// that fallback fails too, Run stops everything and returns the error.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	defer s.shutdown()

	if err := s.trigger.Init(s.Press); err != nil {
		return fmt.Errorf("failed to initialize trigger: %w", err)
	}

	if err := s.toggle(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.quit:
			return nil
		case <-s.presses:
			if err := s.toggle(ctx); err != nil {
				return err
			}
		case fault := <-s.ctrl.Faults():
			s.log.Error("Link fault, falling back to scan mode", zap.Error(fault))
			s.setLastError(fault)
			if err := s.recover(ctx); err != nil {
				return err
			}
		}
	}
}

// toggle runs one transition and recovers from its failure.
func (s *Service) toggle(ctx context.Context) error {
	err := s.orch.Toggle(ctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	if errors.Is(err, mode.ErrToggleBusy) {
		return nil
	}

	s.log.Error("Mode transition failed", zap.Error(err))
	s.setLastError(err)
	return s.recover(ctx)
}

func (s *Service) recover(ctx context.Context) error {
	if err := s.orch.Recover(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.setLastError(err)
		return fmt.Errorf("%w: %w", ErrRecoveryFailed, err)
	}
	s.mu.Lock()
	s.recovered++
	s.mu.Unlock()

	// Faults of the link that was just torn down are already handled.
	for {
		select {
		case fault := <-s.ctrl.Faults():
			s.log.Debug("Discarding fault from the previous link", zap.Error(fault))
		default:
			return nil
		}
	}
}

func (s *Service) shutdown() {
	if err := s.trigger.Close(); err != nil {
		s.log.Warn("Failed to close trigger", zap.Error(err))
	}
	if err := s.orch.Shutdown(); err != nil {
		s.log.Warn("Shutdown incomplete", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.ctrl.AwaitDeinit(ctx, s.cfg.Link.DeinitPoll); err != nil {
		s.log.Warn("Driver teardown not confirmed", zap.Error(err))
	}
	s.indicator.Cancel()
	s.log.Info("Service stopped")
}

// Close releases what Bootstrap acquired. Call it after Run returns.
func (s *Service) Close() error {
	var errs []error
	if err := s.ctrl.Close(); err != nil && !errors.Is(err, events.ErrNotRegistered) {
		errs = append(errs, err)
	}
	s.loop.Close()
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Snapshot returns the current state of the daemon.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	lastErr, recovered := s.lastError, s.recovered
	s.mu.Unlock()
	return Snapshot{
		Mode:          s.orch.Mode(),
		Transitioning: s.orch.Transitioning(),
		Link:          s.ctrl.Status(),
		WebRunning:    s.orch.WebRunning(),
		Entries:       s.table.Len(),
		Scan:          s.scanner.Stats(),
		Recoveries:    recovered,
		LastError:     lastErr,
	}
}

// Table returns the observation table.
func (s *Service) Table() *table.Table {
	return s.table
}

// Trigger returns the trigger source in use.
func (s *Service) Trigger() trigger.Source {
	return s.trigger
}

// SimDriver returns the sim driver, or nil for real hardware.
func (s *Service) SimDriver() *sim.Driver {
	return s.sim
}

// WebAddr returns the address of the running web server, or "".
func (s *Service) WebAddr() string {
	if a := s.web.Addr(); a != nil {
		return a.String()
	}
	return ""
}

func (s *Service) webStatus() web.Status {
	st := s.ctrl.Status()
	out := web.Status{
		Mode:       s.orch.Mode().String(),
		Link:       st.State.String(),
		SSID:       st.SSID,
		Reconnects: st.Reconnects,
		Time:       time.Now(),
	}
	if st.LastAddress.IsValid() {
		out.Address = st.LastAddress.String()
	}
	return out
}

func (s *Service) setLastError(err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}
