// Package trigger provides the button that toggles the daemon's mode.
//
// A Source delivers presses to the one callback given to Init. Signal maps
// SIGUSR1 to a press, Keyboard reads space or enter from a raw terminal,
// and Manual is fired from code (the dashboard uses it). Wrap the callback
// with a Debouncer to drop bounces.
package trigger
