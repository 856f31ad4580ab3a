package trigger

import (
	"errors"
	"sync"
	"time"
)

// ErrAlreadyInitialized is returned when a source already has a callback.
var ErrAlreadyInitialized = errors.New("trigger source already initialized")

// Source delivers mode toggle presses to a single callback.
type Source interface {
	// Init registers the callback and starts delivering presses to it.
	Init(onPress func()) error
	// Close stops delivery. It is safe to call more than once.
	Close() error
}

// Debouncer drops presses that arrive closer together than its interval.
type Debouncer struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewDebouncer creates a debouncer. An interval of zero lets every press
// through.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval, now: time.Now}
}

// Allow reports whether a press arriving now should be delivered.
func (d *Debouncer) Allow() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if !d.last.IsZero() && now.Sub(d.last) < d.interval {
		return false
	}
	d.last = now
	return true
}

// Wrap returns fn guarded by the debouncer.
func (d *Debouncer) Wrap(fn func()) func() {
	return func() {
		if d.Allow() {
			fn()
		}
	}
}

// Manual is a source fired from code, e.g. a dashboard key binding.
type Manual struct {
	mu      sync.Mutex
	onPress func()
	closed  bool
}

// NewManual creates a manual source.
func NewManual() *Manual {
	return &Manual{}
}

// Init implements Source.
func (m *Manual) Init(onPress func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.onPress != nil {
		return ErrAlreadyInitialized
	}
	m.onPress = onPress
	return nil
}

// Fire delivers one press. It reports false when nothing received it.
func (m *Manual) Fire() bool {
	m.mu.Lock()
	fn := m.onPress
	closed := m.closed
	m.mu.Unlock()

	if fn == nil || closed {
		return false
	}
	fn()
	return true
}

// Close implements Source.
func (m *Manual) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
