package link

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by Controller.Start while a readiness
	// gate from a previous Start is still active.
	ErrAlreadyRunning = errors.New("link already running")

	// ErrAlreadyActive is returned by Gate.Create when the gate exists.
	ErrAlreadyActive = errors.New("readiness gate already active")

	// ErrGateClosed is returned by WaitReady when the gate is not active or
	// is destroyed while waiting.
	ErrGateClosed = errors.New("readiness gate closed")

	// ErrTimeout is returned by WaitReady when the bounded wait elapses.
	ErrTimeout = errors.New("timed out waiting for link readiness")

	// ErrNotInitialized is returned by drivers asked to stop before Init.
	// The controller treats it as a successful stop.
	ErrNotInitialized = errors.New("wifi driver not initialized")

	// ErrReconnectExhausted is reported when the reconnect policy gives up.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// SubsystemError wraps an unexpected failure from the wireless or network
// stack. These are the conditions a supervisor must act on.
type SubsystemError struct {
	Op  string // driver operation: "init", "connect", "stop", ...
	Err error
}

func (e *SubsystemError) Error() string {
	return fmt.Sprintf("wifi %s: %v", e.Op, e.Err)
}

func (e *SubsystemError) Unwrap() error { return e.Err }

func subsystem(op string, err error) error {
	if err == nil {
		return nil
	}
	return &SubsystemError{Op: op, Err: err}
}

// IsSubsystemFatal reports whether err came from the wireless stack.
func IsSubsystemFatal(err error) bool {
	var se *SubsystemError
	return errors.As(err, &se)
}

// IsRecoverable reports whether err is an idempotency guard or timeout the
// caller may treat as a no-op or retry.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrAlreadyRunning) ||
		errors.Is(err, ErrAlreadyActive) ||
		errors.Is(err, ErrTimeout)
}
