// Package tui is the interactive dashboard of probewatch run --tui.
//
// It shows the operating mode, link state, web server state and the
// strongest recorded access points, polling the daemon every
// RefreshInterval. Space stands in for the physical button, q quits.
package tui
