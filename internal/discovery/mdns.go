package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/probewatch/internal/logging"
	"go.uber.org/zap"
)

const (
	// ServiceType is the mDNS service type the web server is announced as
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// AppKey and AppValue mark a TXT record set as ours, so plain HTTP
	// services on the network are ignored
	AppKey   = "app"
	AppValue = "probewatch"

	// DefaultBrowseTimeout is the default timeout for discovery
	DefaultBrowseTimeout = 5 * time.Second

	// DefaultPort is assumed when an entry carries no port
	DefaultPort = 80
)

// Browser handles mDNS discovery of probewatch sensors
type Browser struct {
	// Timeout is the maximum time to wait for answers
	Timeout time.Duration
}

// NewBrowser creates a new browser with default settings
func NewBrowser() *Browser {
	return &Browser{
		Timeout: DefaultBrowseTimeout,
	}
}

// Browse collects every sensor that answers before the timeout
func (b *Browser) Browse(ctx context.Context) ([]*Sensor, error) {
	ctx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu      sync.Mutex
		sensors = make([]*Sensor, 0)
		seen    = make(map[string]bool)
		done    = make(chan struct{})
	)

	go func() {
		defer close(done)
		for entry := range entries {
			sensor := b.parseServiceEntry(entry)
			if sensor == nil || seen[sensor.Instance] {
				continue
			}
			seen[sensor.Instance] = true
			mu.Lock()
			sensors = append(sensors, sensor)
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	// The resolver closes entries once it notices the cancellation.
	select {
	case <-done:
	case <-time.After(time.Second):
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]*Sensor(nil), sensors...), nil
}

// parseServiceEntry converts a zeroconf service entry to a Sensor.
// Returns nil if the entry is not a probewatch web server.
func (b *Browser) parseServiceEntry(entry *zeroconf.ServiceEntry) *Sensor {
	metadata := parseTXT(entry.Text)
	if metadata[AppKey] != AppValue {
		return nil
	}

	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Sensor{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

func parseTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		// TXT records are in "key=value" format
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}
	return metadata
}

// Advertisement is a running mDNS announcement
type Advertisement struct {
	server *zeroconf.Server
	once   sync.Once
}

// Advertise announces an HTTP service on port. The app marker is added to
// txt automatically.
func Advertise(instance string, port int, txt ...string) (*Advertisement, error) {
	records := append([]string{AppKey + "=" + AppValue}, txt...)

	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, records, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("mDNS advertisement started",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the announcement. It is safe to call more than once.
func (a *Advertisement) Shutdown() {
	if a == nil {
		return
	}
	a.once.Do(func() {
		a.server.Shutdown()
		logging.Debug("mDNS advertisement stopped")
	})
}

// Discover is a convenience function to browse with a custom timeout
func Discover(ctx context.Context, timeout time.Duration) ([]*Sensor, error) {
	browser := NewBrowser()
	if timeout > 0 {
		browser.Timeout = timeout
	}
	return browser.Browse(ctx)
}
