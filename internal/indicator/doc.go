// Package indicator blinks an LED while the daemon changes mode.
//
// An Indicator runs one Pattern at a time in a background goroutine. Run
// replaces whatever is running; Cancel stops it and leaves the LED dark.
//
// Three LEDs are provided: Terminal draws a styled dot on a terminal,
// Sysfs writes a Linux LED class device, and None discards everything.
package indicator
