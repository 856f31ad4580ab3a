// Package wpa drives a real wireless interface through wpa_supplicant's
// D-Bus API (fi.w1.wpa_supplicant1) on the system bus.
//
// wpa_supplicant must run with its D-Bus control interface enabled (-u).
// The driver adds a single network, follows the interface's State,
// DisconnectReason and AssocStatusCode properties and turns them into link
// events. Addressing is left to the system's DHCP client: once the
// supplicant reports "completed" the driver polls the interface until an
// IPv4 address appears.
package wpa
