// Package logging provides structured logging for the probewatch daemon.
//
// This package wraps a global zap logger with convenience functions used by
// every component. The console encoder keeps the output line-oriented so it
// doubles as the device's diagnostic status output.
//
// # Log Levels
//
//   - Debug: event dispatch, driver calls, websocket pushes
//   - Info: link events, address acquisition, mode changes
//   - Warn: recoverable failures (timeouts, dropped triggers, retries)
//   - Error: subsystem failures handed to the supervisor
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.InitializeWithDefault(flagLevel, "info"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// When no level is configured the logger is a no-op, which keeps one-shot
// CLI commands quiet.
//
// # Domain Helpers
//
//	logging.LogLinkEvent("disconnected", zap.Uint16("reason", 8))
//	logging.LogAddress("wlan0", "192.168.1.23")
//	logging.LogModeChange("scan", "connected")
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
