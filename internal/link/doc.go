// Package link manages the lifecycle of the device's wireless link.
//
// The package has three parts:
//
//   - Controller drives a platform Driver through init, configure, start and
//     connect, reacts to link-layer events from the event loop, reconnects
//     after a loss and tears everything down again on Stop.
//   - Gate is the readiness primitive: a single bit, set when the interface
//     obtains an address, that one waiter consumes.
//   - ReconnectPolicy decides how soon a dropped link is retried. The first
//     retry after a healthy connection is immediate; later retries in the
//     same streak back off exponentially (github.com/cenkalti/backoff).
//
// # Lifecycle
//
//	Uninitialized -> Configuring -> Connecting -> Connected
//	Connected -> Disconnected -> Connecting (automatic reconnect)
//	Connected|Disconnected -> TearingDown -> Uninitialized (Stop)
//
// # Usage
//
//	ctrl, err := link.NewController(driver, loop)
//	if err != nil {
//	    return err
//	}
//	if err := ctrl.Start(link.Credentials{SSID: "lab", Passphrase: "secret123"}); err != nil {
//	    return err
//	}
//	if err := ctrl.WaitReady(ctx, 30*time.Second); err != nil {
//	    return err
//	}
//	fmt.Println("address:", ctrl.LastAddress())
//
// # Errors
//
// ErrAlreadyRunning, ErrAlreadyActive and ErrTimeout are recoverable. Any
// failure of the wireless stack is wrapped in *SubsystemError and returned
// to the caller, or delivered on Faults() when it happens asynchronously.
// Stopping a driver that was never initialised is not an error.
package link
