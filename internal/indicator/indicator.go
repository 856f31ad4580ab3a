package indicator

import (
	"context"
	"sync"
	"time"

	"github.com/muurk/probewatch/internal/logging"
	"go.uber.org/zap"
)

// Pattern is what the LED shows while a task runs.
type Pattern int

const (
	// Off keeps the LED dark.
	Off Pattern = iota
	// Solid keeps the LED lit.
	Solid
	// MonoBlink alternates on and off; it marks a mode transition.
	MonoBlink
)

func (p Pattern) String() string {
	switch p {
	case Off:
		return "off"
	case Solid:
		return "solid"
	case MonoBlink:
		return "mono_blink"
	default:
		return "unknown"
	}
}

// LED is a single on/off light.
type LED interface {
	Set(on bool) error
}

// Default blink timings.
const (
	DefaultBlinkOn  = 250 * time.Millisecond
	DefaultBlinkOff = 250 * time.Millisecond
)

// Indicator runs one pattern at a time on an LED.
type Indicator struct {
	led      LED
	blinkOn  time.Duration
	blinkOff time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an indicator. Zero timings use the defaults.
func New(led LED, blinkOn, blinkOff time.Duration) *Indicator {
	if led == nil {
		led = None{}
	}
	if blinkOn <= 0 {
		blinkOn = DefaultBlinkOn
	}
	if blinkOff <= 0 {
		blinkOff = DefaultBlinkOff
	}
	return &Indicator{led: led, blinkOn: blinkOn, blinkOff: blinkOff}
}

// Run starts p in the background, replacing any running pattern. The task
// ends when ctx is done or Cancel is called.
func (i *Indicator) Run(ctx context.Context, p Pattern) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.stopLocked()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	i.cancel = cancel
	i.done = done

	go func() {
		defer close(done)
		i.run(ctx, p)
	}()
}

// Cancel stops the running pattern, if any, and switches the LED off. It
// returns once the task has exited.
func (i *Indicator) Cancel() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.stopLocked()
	i.set(false)
}

func (i *Indicator) stopLocked() {
	if i.cancel == nil {
		return
	}
	i.cancel()
	<-i.done
	i.cancel = nil
	i.done = nil
}

func (i *Indicator) run(ctx context.Context, p Pattern) {
	switch p {
	case Solid:
		i.set(true)
		<-ctx.Done()
	case MonoBlink:
		on := true
		for {
			i.set(on)
			d := i.blinkOff
			if on {
				d = i.blinkOn
			}
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
			on = !on
		}
	default:
		i.set(false)
		<-ctx.Done()
	}
}

func (i *Indicator) set(on bool) {
	if err := i.led.Set(on); err != nil {
		logging.Debug("Failed to set LED", zap.Bool("on", on), zap.Error(err))
	}
}
