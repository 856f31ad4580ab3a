// Package mode switches the daemon between scan mode and connected mode.
//
// The Orchestrator owns the operating mode. Each Toggle tears the outgoing
// mode down completely before the incoming one starts:
//
//	connected -> scan: stop web, drop bridges, stop link, await driver
//	                   deinit, start scanner
//	scan -> connected: stop scanner, load table, start link, wait for an
//	                   address, add bridges, start web
//
// While in connected mode two bridge handlers on the event loop keep the
// web server in step with the link: an acquired address starts it and a
// disconnect stops it.
//
// The mode only changes when a transition completes. A failed transition
// returns a *TransitionError and leaves the mode as it was; Recover brings
// the daemon back to scan mode.
package mode
