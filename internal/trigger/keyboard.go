package trigger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/muesli/cancelreader"
	"github.com/muurk/probewatch/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// ErrNotTerminal is returned when the keyboard source has no terminal.
var ErrNotTerminal = errors.New("keyboard trigger needs a terminal on stdin")

// Keyboard reads single key presses from a terminal in raw mode. Space and
// enter press the button; q and ctrl-c call OnQuit.
type Keyboard struct {
	in     *os.File
	onQuit func()

	mu      sync.Mutex
	state   *term.State
	reader  cancelreader.CancelReader
	done    chan struct{}
	started bool
	once    sync.Once
}

// NewKeyboard creates a keyboard source reading in, os.Stdin when nil.
func NewKeyboard(in *os.File, onQuit func()) *Keyboard {
	if in == nil {
		in = os.Stdin
	}
	if onQuit == nil {
		onQuit = func() {}
	}
	return &Keyboard{in: in, onQuit: onQuit}
}

// Init implements Source.
func (k *Keyboard) Init(onPress func()) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.started {
		return ErrAlreadyInitialized
	}

	fd := int(k.in.Fd())
	if !term.IsTerminal(fd) {
		return ErrNotTerminal
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}
	k.state = state

	if err := k.listenLocked(onPress); err != nil {
		_ = term.Restore(fd, state)
		k.state = nil
		return err
	}
	k.started = true
	return nil
}

// listenLocked starts the read loop on a cancelable reader so that Close
// can stop it. Callers hold k.mu.
func (k *Keyboard) listenLocked(onPress func()) error {
	r, err := cancelreader.NewReader(k.in)
	if err != nil {
		return fmt.Errorf("failed to open keyboard reader: %w", err)
	}
	k.reader = r
	k.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		k.read(r, onPress)
	}(k.done)
	return nil
}

func (k *Keyboard) read(r io.Reader, onPress func()) {
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) && !errors.Is(err, cancelreader.ErrCanceled) {
				logging.Debug("Keyboard trigger stopped", zap.Error(err))
			}
			return
		}
		if n == 0 {
			continue
		}
		switch dispatchKey(buf[0]) {
		case keyPress:
			onPress()
		case keyQuit:
			k.onQuit()
			return
		}
	}
}

type keyAction int

const (
	keyIgnore keyAction = iota
	keyPress
	keyQuit
)

func dispatchKey(b byte) keyAction {
	switch b {
	case ' ', '\r', '\n':
		return keyPress
	case 'q', 'Q', 0x03: // ctrl-c
		return keyQuit
	default:
		return keyIgnore
	}
}

// Close stops the read loop and restores the terminal.
func (k *Keyboard) Close() error {
	var errs []error
	k.once.Do(func() {
		k.mu.Lock()
		defer k.mu.Unlock()
		if k.reader != nil {
			if k.reader.Cancel() {
				<-k.done
			}
			errs = append(errs, k.reader.Close())
		}
		if k.state != nil {
			errs = append(errs, term.Restore(int(k.in.Fd()), k.state))
		}
	})
	return errors.Join(errs...)
}
