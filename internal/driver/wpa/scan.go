package wpa

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/muurk/probewatch/internal/table"
)

// ScanBackend runs passive scans through wpa_supplicant. It satisfies
// scan.Backend and keeps its own bus connection so it can run while the
// station driver is down.
type ScanBackend struct {
	ifname string

	mu    sync.Mutex
	sup   *supplicant
	sigCh chan *dbus.Signal
}

// NewScanBackend returns a backend for ifname. The bus connection is made
// on the first scan.
func NewScanBackend(ifname string) *ScanBackend {
	return &ScanBackend{ifname: ifname}
}

// Scan requests a passive scan and returns every BSS the supplicant knows
// once the scan completes.
func (b *ScanBackend) Scan(ctx context.Context) ([]table.Observation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sup == nil {
		sup, err := dialSupplicant(b.ifname)
		if err != nil {
			return nil, err
		}
		b.sup = sup
		b.sigCh = sup.subscribe()
	}

	args := map[string]dbus.Variant{"Type": dbus.MakeVariant("passive")}
	if err := b.sup.call("Scan", args).Err; err != nil {
		return nil, fmt.Errorf("request scan: %w", err)
	}

	if err := waitScanDone(ctx, b.sigCh); err != nil {
		return nil, err
	}
	return b.readBSSs()
}

// Close releases the bus connection.
func (b *ScanBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sup == nil {
		return nil
	}
	b.sup.unsubscribe(b.sigCh)
	b.sup.close()
	b.sup, b.sigCh = nil, nil
	return nil
}

func waitScanDone(ctx context.Context, ch <-chan *dbus.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-ch:
			if !ok {
				return fmt.Errorf("signal channel closed")
			}
			if sig.Name != scanDoneSig || len(sig.Body) == 0 {
				continue
			}
			if success, _ := sig.Body[0].(bool); !success {
				return fmt.Errorf("scan failed")
			}
			return nil
		}
	}
}

func (b *ScanBackend) readBSSs() ([]table.Observation, error) {
	v, err := b.sup.getProp(b.sup.iface, ifaceIface, "BSSs")
	if err != nil {
		return nil, fmt.Errorf("read BSS list: %w", err)
	}
	paths, ok := v.Value().([]dbus.ObjectPath)
	if !ok {
		return nil, fmt.Errorf("property BSSs is not an object path array")
	}

	obs := make([]table.Observation, 0, len(paths))
	for _, p := range paths {
		var props map[string]dbus.Variant
		err := b.sup.conn.Object(busName, p).Call(propsIface+".GetAll", 0, bssIface).Store(&props)
		if err != nil {
			// BSS objects expire between listing and reading.
			continue
		}
		if o, ok := observationFromProps(props); ok {
			obs = append(obs, o)
		}
	}
	return obs, nil
}

func observationFromProps(props map[string]dbus.Variant) (table.Observation, bool) {
	bssid, _ := props["BSSID"].Value().([]byte)
	if len(bssid) != 6 {
		return table.Observation{}, false
	}
	ssid, _ := props["SSID"].Value().([]byte)
	signal, _ := props["Signal"].Value().(int16)
	freq, _ := props["Frequency"].Value().(uint16)

	return table.Observation{
		SSID:    string(ssid),
		BSSID:   formatBSSID(bssid),
		Channel: freqToChannel(int(freq)),
		RSSI:    int(signal),
	}, true
}
