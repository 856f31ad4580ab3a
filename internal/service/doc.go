// Package service wires the daemon together and supervises it.
//
// Bootstrap performs the one-time setup: it loads the observation table,
// creates the event loop, builds the wireless driver and link controller
// named by the configuration and hands every subsystem to a
// mode.Orchestrator.
//
// Run then enters scan mode and serves trigger presses one at a time. When
// a transition fails, or the link controller reports a fault it cannot
// handle itself (for example an exhausted reconnect policy), the service
// falls back to scan mode. Only a failed fallback makes Run return an
// error, leaving the restart to the process manager.
package service
