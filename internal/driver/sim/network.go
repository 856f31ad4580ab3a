package sim

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/muurk/probewatch/internal/table"
)

// AP is a simulated access point.
type AP struct {
	SSID       string
	BSSID      string
	Channel    int
	RSSI       int // dBm at the station
	Passphrase string
	// LegacyRates makes the AP require 802.11b basic rates, so a station
	// limited to g/n is rejected with reason 205.
	LegacyRates bool
}

// Network is an in-memory radio environment shared by the simulated driver
// and the simulated scan backend.
type Network struct {
	mu     sync.RWMutex
	aps    []AP
	jitter int
	rng    *rand.Rand
}

// NewNetwork returns a network containing aps.
func NewNetwork(aps ...AP) *Network {
	return &Network{
		aps:    append([]AP(nil), aps...),
		jitter: 3,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// DefaultNetwork is the environment used when no real radio is available.
// It contains ssid with passphrase plus a handful of neighbours.
func DefaultNetwork(ssid, passphrase string) *Network {
	return NewNetwork(
		AP{SSID: ssid, BSSID: "02:00:00:00:01:01", Channel: 6, RSSI: -52, Passphrase: passphrase},
		AP{SSID: "neighbour-5g", BSSID: "02:00:00:00:02:01", Channel: 36, RSSI: -71, Passphrase: "not-yours"},
		AP{SSID: "cafe-guest", BSSID: "02:00:00:00:03:01", Channel: 1, RSSI: -78},
		AP{SSID: "", BSSID: "02:00:00:00:04:01", Channel: 11, RSSI: -84},
	)
}

// SetJitter sets the maximum random RSSI deviation, in dB, applied to scan
// results. Zero makes scans deterministic.
func (n *Network) SetJitter(db int) {
	n.mu.Lock()
	n.jitter = max(db, 0)
	n.mu.Unlock()
}

// Add places an access point in range, replacing one with the same BSSID.
func (n *Network) Add(ap AP) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.aps {
		if strings.EqualFold(n.aps[i].BSSID, ap.BSSID) {
			n.aps[i] = ap
			return
		}
	}
	n.aps = append(n.aps, ap)
}

// Remove takes the access point with bssid out of range.
func (n *Network) Remove(bssid string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.aps {
		if strings.EqualFold(n.aps[i].BSSID, bssid) {
			n.aps = append(n.aps[:i], n.aps[i+1:]...)
			return
		}
	}
}

// Lookup returns the strongest access point broadcasting ssid.
func (n *Network) Lookup(ssid string) (AP, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	var best AP
	found := false
	for _, ap := range n.aps {
		if ap.SSID != ssid {
			continue
		}
		if !found || ap.RSSI > best.RSSI {
			best, found = ap, true
		}
	}
	return best, found
}

// Scan reports every access point in range. It satisfies scan.Backend.
func (n *Network) Scan(ctx context.Context) ([]table.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	obs := make([]table.Observation, 0, len(n.aps))
	for _, ap := range n.aps {
		rssi := ap.RSSI
		if n.jitter > 0 {
			rssi += n.rng.IntN(2*n.jitter+1) - n.jitter
		}
		obs = append(obs, table.Observation{
			SSID:    ap.SSID,
			BSSID:   ap.BSSID,
			Channel: ap.Channel,
			RSSI:    rssi,
		})
	}
	return obs, nil
}
