package link

import "github.com/muurk/probewatch/internal/events"

// Driver is the platform wireless stack the Controller drives. The
// Controller serialises its calls; asynchronous notifications
// (events.LinkDisconnected, events.AddressAcquired,
// events.DriverDeinitialized) are posted on the event loop the driver was
// built with.
type Driver interface {
	// Interface returns the network interface name (e.g. "wlan0").
	Interface() string
	Init() error
	SetStorage(Storage) error
	SetMode(Mode) error
	SetConfig(Credentials) error
	SetProtocol(Protocol) error
	Start() error
	Connect() error
	// Stop returns ErrNotInitialized if Init was never called.
	Stop() error
	// Deinit releases driver resources. Completion may be asynchronous;
	// it is confirmed by DriverDeinitialized or State() == DriverDeinit.
	Deinit() error
	State() DriverState
}

// EventBus is the subset of the event loop the controller needs.
type EventBus interface {
	Register(events.Class, events.Handler) (events.Handle, error)
	Unregister(events.Handle) error
}
