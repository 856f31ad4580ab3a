package mode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/muurk/probewatch/internal/indicator"
	"github.com/muurk/probewatch/internal/link"
	"github.com/muurk/probewatch/internal/web"
)

// Mode is the daemon's operating mode.
type Mode int

const (
	// Scan passively scans and records access points.
	Scan Mode = iota
	// Connected joins the configured network and serves the table.
	Connected
)

func (m Mode) String() string {
	switch m {
	case Scan:
		return "scan"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Other returns the mode a toggle leads to.
func (m Mode) Other() Mode {
	if m == Connected {
		return Scan
	}
	return Connected
}

// ErrToggleBusy is returned when a toggle is requested while another one
// is still running.
var ErrToggleBusy = errors.New("mode transition already in progress")

// TransitionError reports the step at which a mode change failed. The mode
// is left unchanged.
type TransitionError struct {
	From Mode
	To   Mode
	Step string
	Err  error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("switching from %s to %s: %s: %v", e.From, e.To, e.Step, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// Link is the connectivity manager used in connected mode.
type Link interface {
	Start(link.Credentials) error
	WaitReady(ctx context.Context, timeout time.Duration) error
	Stop() error
	AwaitDeinit(ctx context.Context, poll time.Duration) error
}

// Web is the web-serving subsystem.
type Web interface {
	Start() (web.Handle, error)
	Stop(web.Handle) error
}

// Scanner is the scanning subsystem. Stop on an idle scanner is a no-op.
type Scanner interface {
	Start() error
	Stop() error
}

// Indicator shows a pattern while a transition runs.
type Indicator interface {
	Run(ctx context.Context, p indicator.Pattern)
	Cancel()
}

// TableLoader reloads the persisted observation table.
type TableLoader interface {
	Load() error
}
