// Package discovery announces and finds probewatch sensors over mDNS.
//
// In connected mode the web server is advertised as an "_http._tcp" service
// whose TXT records carry "app=probewatch", so a laptop on the same network
// can find the sensor without knowing the address DHCP handed out.
//
// # Usage Example
//
//	// Announce the web server
//	ad, err := discovery.Advertise("probewatch-lab", 8080, "path=/")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ad.Shutdown()
//
//	// Find sensors from another machine
//	sensors, err := discovery.Discover(ctx, 5*time.Second)
//	for _, s := range sensors {
//	    fmt.Println(s.Instance, s.BaseURL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Sensors must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
