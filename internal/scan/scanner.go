package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/muurk/probewatch/internal/logging"
	"github.com/muurk/probewatch/internal/table"
	"go.uber.org/zap"
)

// DefaultInterval is the time between two passive scans.
const DefaultInterval = 5 * time.Second

// ErrAlreadyRunning is returned by Start when the scanner is active.
var ErrAlreadyRunning = errors.New("scanner already running")

// Backend performs one passive scan.
type Backend interface {
	Scan(ctx context.Context) ([]table.Observation, error)
}

// Stats describes the scanner's progress.
type Stats struct {
	Running  bool      `json:"running"`
	Cycles   int       `json:"cycles"`
	LastScan time.Time `json:"last_scan,omitempty"`
	LastErr  string    `json:"last_error,omitempty"`
}

// Scanner periodically scans through a Backend and merges the results into
// a table, saving it after every cycle.
type Scanner struct {
	backend  Backend
	table    *table.Table
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	stats   Stats
}

// New creates a stopped scanner.
func New(backend Backend, tbl *table.Table, interval time.Duration) *Scanner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scanner{
		backend:  backend,
		table:    tbl,
		interval: interval,
	}
}

// Start launches the scan loop. The first scan runs immediately.
func (s *Scanner) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	logging.Info("Scanner starting", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
	return nil
}

// Stop ends the scan loop, waits for an in-flight scan and saves the table
// one last time. Stopping an idle scanner is a no-op.
func (s *Scanner) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()

	if err := s.table.Save(); err != nil {
		return err
	}
	logging.Info("Scanner stopped", zap.Int("entries", s.table.Len()))
	return nil
}

// Running reports whether the scan loop is active.
func (s *Scanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats returns a copy of the scanner's counters.
func (s *Scanner) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Running = s.running
	return st
}

func (s *Scanner) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.cycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scanner) cycle(ctx context.Context) {
	scanCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	obs, err := s.backend.Scan(scanCtx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.Warn("Scan failed", zap.Error(err))
		s.record(err)
		return
	}

	added := s.table.Merge(obs)
	logging.Debug("Scan cycle",
		zap.Int("observed", len(obs)),
		zap.Int("new", added),
		zap.Int("total", s.table.Len()),
	)

	if err := s.table.Save(); err != nil {
		logging.Warn("Failed to save table", zap.Error(err))
		s.record(err)
		return
	}
	s.record(nil)
}

func (s *Scanner) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Cycles++
	s.stats.LastScan = time.Now()
	s.stats.LastErr = ""
	if err != nil {
		s.stats.LastErr = err.Error()
	}
}
