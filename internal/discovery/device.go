package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Sensor represents a probewatch instance discovered on the network
type Sensor struct {
	// Instance is the mDNS service instance name (e.g., "probewatch-lab")
	Instance string

	// Hostname is the mDNS hostname (e.g., "pi-zero.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	// Port is the HTTP port of the sensor's web server
	Port int

	// Metadata contains the TXT record data
	// Common fields: "app=probewatch", "version=1.0.0", "path=/"
	Metadata map[string]string

	// DiscoveredAt is when the sensor was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the sensor
func (s *Sensor) String() string {
	return fmt.Sprintf("probewatch %s (%s) at %s", s.Instance, s.Hostname, net.JoinHostPort(s.IP, strconv.Itoa(s.Port)))
}

// BaseURL returns the HTTP base URL for the sensor
func (s *Sensor) BaseURL() string {
	return "http://" + net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (s *Sensor) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}
