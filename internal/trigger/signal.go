package trigger

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/muurk/probewatch/internal/logging"
	"go.uber.org/zap"
)

// Signal turns a process signal into presses, SIGUSR1 by default:
//
//	kill -USR1 $(pidof probewatch)
type Signal struct {
	sig os.Signal

	mu   sync.Mutex
	ch   chan os.Signal
	done chan struct{}
	once sync.Once
}

// NewSignal creates a source for sig, or SIGUSR1 when sig is nil.
func NewSignal(sig os.Signal) *Signal {
	if sig == nil {
		sig = syscall.SIGUSR1
	}
	return &Signal{sig: sig, done: make(chan struct{})}
}

// Init implements Source.
func (s *Signal) Init(onPress func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil {
		return ErrAlreadyInitialized
	}

	s.ch = make(chan os.Signal, 1)
	signal.Notify(s.ch, s.sig)
	logging.Debug("Listening for trigger signal", zap.String("signal", s.sig.String()))

	ch := s.ch
	go func() {
		for {
			select {
			case <-s.done:
				return
			case <-ch:
				onPress()
			}
		}
	}()
	return nil
}

// Close implements Source.
func (s *Signal) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		if s.ch != nil {
			signal.Stop(s.ch)
		}
		s.mu.Unlock()
		close(s.done)
	})
	return nil
}
