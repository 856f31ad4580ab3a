// Package sim provides a simulated wireless stack.
//
// Network models the access points in range; Driver implements link.Driver
// against it with configurable association and DHCP latency, disconnect
// injection and an asynchronous deinit tail. The same Network doubles as a
// scan backend, so the whole daemon can run on a machine without a radio.
package sim
