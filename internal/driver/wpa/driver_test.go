package wpa

import (
	"net/netip"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/muurk/probewatch/internal/events"
	"github.com/muurk/probewatch/internal/link"
)

type chanPoster chan events.Event

func (c chanPoster) Post(ev events.Event) error {
	c <- ev
	return nil
}

func (c chanPoster) next(t *testing.T) events.Event {
	t.Helper()
	select {
	case ev := <-c:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event within 1s")
		return events.Event{}
	}
}

func (c chanPoster) none(t *testing.T) {
	t.Helper()
	select {
	case ev := <-c:
		t.Fatalf("unexpected event %s", ev.Class)
	case <-time.After(30 * time.Millisecond):
	}
}

func stateSignal(props map[string]interface{}) *dbus.Signal {
	changed := make(map[string]dbus.Variant, len(props))
	for k, v := range props {
		changed[k] = dbus.MakeVariant(v)
	}
	return &dbus.Signal{
		Path: "/fi/w1/wpa_supplicant1/Interfaces/0",
		Name: propsSignal,
		Body: []interface{}{ifaceIface, changed, []string{}},
	}
}

func newTestDriver(addrs AddrFunc) (*Driver, chanPoster) {
	bus := make(chanPoster, 8)
	d := New("wlan0", bus)
	d.addrs = addrs
	d.addressPoll = 5 * time.Millisecond
	d.network = "/fi/w1/wpa_supplicant1/Interfaces/0/Networks/0"
	return d, bus
}

func TestHandleSignal_CompletedThenAddress(t *testing.T) {
	calls := 0
	d, bus := newTestDriver(func(string) ([]netip.Addr, error) {
		calls++
		if calls < 3 {
			return []netip.Addr{netip.MustParseAddr("169.254.10.1")}, nil
		}
		return []netip.Addr{
			netip.MustParseAddr("fe80::1"),
			netip.MustParseAddr("192.168.1.7"),
		}, nil
	})

	d.handleSignal(stateSignal(map[string]interface{}{"State": "associating"}))
	d.handleSignal(stateSignal(map[string]interface{}{"State": "completed"}))

	if ev := bus.next(t); ev.Class != events.LinkConnected {
		t.Fatalf("event = %s, want %s", ev.Class, events.LinkConnected)
	}
	ev := bus.next(t)
	if ev.Class != events.AddressAcquired {
		t.Fatalf("event = %s, want %s", ev.Class, events.AddressAcquired)
	}
	if got := ev.Data.(events.Address).Addr.String(); got != "192.168.1.7" {
		t.Errorf("address = %s, want 192.168.1.7", got)
	}
}

func TestHandleSignal_Disconnect(t *testing.T) {
	d, bus := newTestDriver(func(string) ([]netip.Addr, error) { return nil, nil })

	d.handleSignal(stateSignal(map[string]interface{}{"State": "completed"}))
	bus.next(t)

	d.handleSignal(stateSignal(map[string]interface{}{
		"DisconnectReason": int32(-3),
		"State":            "disconnected",
	}))

	ev := bus.next(t)
	if ev.Class != events.LinkDisconnected {
		t.Fatalf("event = %s, want disconnect", ev.Class)
	}
	if got := link.Reason(ev.Data.(events.Disconnect).Reason); got != link.ReasonAuthLeave {
		t.Errorf("reason = %v, want %v", got, link.ReasonAuthLeave)
	}

	// Staying idle does not repeat the event.
	d.handleSignal(stateSignal(map[string]interface{}{"State": "inactive"}))
	bus.none(t)
}

func TestHandleSignal_UnsupportedRates(t *testing.T) {
	d, bus := newTestDriver(nil)

	d.handleSignal(stateSignal(map[string]interface{}{"State": "associating"}))
	d.handleSignal(stateSignal(map[string]interface{}{
		"AssocStatusCode": int32(statusUnsupportedRates),
		"State":           "disconnected",
	}))

	ev := bus.next(t)
	if got := link.Reason(ev.Data.(events.Disconnect).Reason); got != link.ReasonBasicRateNotSupport {
		t.Errorf("reason = %v, want basic rate", got)
	}
}

func TestHandleSignal_IgnoredWithoutNetwork(t *testing.T) {
	d, bus := newTestDriver(nil)
	d.network = ""

	d.handleSignal(stateSignal(map[string]interface{}{"State": "associated"}))
	d.handleSignal(stateSignal(map[string]interface{}{"State": "disconnected"}))
	bus.none(t)
}

func TestHandleSignal_ForeignSignals(t *testing.T) {
	d, bus := newTestDriver(nil)

	d.handleSignal(nil)
	d.handleSignal(&dbus.Signal{Name: scanDoneSig, Body: []interface{}{true}})
	d.handleSignal(&dbus.Signal{Name: propsSignal, Body: []interface{}{bssIface, map[string]dbus.Variant{}}})
	bus.none(t)
}

func TestMapReason(t *testing.T) {
	tests := []struct {
		name       string
		disconnect int32
		status     int32
		associated bool
		want       link.Reason
	}{
		{"rates rejected", 0, statusUnsupportedRates, false, link.ReasonBasicRateNotSupport},
		{"remote deauth", 2, 0, true, link.ReasonAuthExpire},
		{"locally generated", -3, 0, true, link.ReasonAuthLeave},
		{"never associated", 0, 0, false, link.ReasonNoAPFound},
		{"unknown after association", 0, 0, true, link.ReasonUnspecified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapReason(tt.disconnect, tt.status, tt.associated); got != tt.want {
				t.Errorf("mapReason() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFreqToChannel(t *testing.T) {
	tests := map[int]int{
		2412: 1,
		2437: 6,
		2472: 13,
		2484: 14,
		5180: 36,
		5745: 149,
		5955: 1,
		900:  0,
	}
	for freq, want := range tests {
		if got := freqToChannel(freq); got != want {
			t.Errorf("freqToChannel(%d) = %d, want %d", freq, got, want)
		}
	}
}

func TestNetworkArgs(t *testing.T) {
	open := networkArgs(link.Credentials{SSID: "cafe"}, link.ProtocolCompatible)
	if open["key_mgmt"].Value() != "NONE" {
		t.Errorf("open network key_mgmt = %v", open["key_mgmt"].Value())
	}
	if _, ok := open["psk"]; ok {
		t.Error("open network should not carry a psk")
	}

	wpa := networkArgs(link.Credentials{SSID: "lab", Passphrase: "secret123"}, link.Protocol11B|link.Protocol11G)
	if wpa["key_mgmt"].Value() != "WPA-PSK" || wpa["psk"].Value() != "secret123" {
		t.Errorf("psk network args = %v", wpa)
	}
	if wpa["disable_ht"].Value() != int32(1) {
		t.Errorf("disable_ht = %v, want 1 without 802.11n", wpa["disable_ht"].Value())
	}
}

func TestObservationFromProps(t *testing.T) {
	props := map[string]dbus.Variant{
		"BSSID":     dbus.MakeVariant([]byte{0xaa, 0xbb, 0xcc, 0x01, 0x02, 0x03}),
		"SSID":      dbus.MakeVariant([]byte("lab")),
		"Signal":    dbus.MakeVariant(int16(-61)),
		"Frequency": dbus.MakeVariant(uint16(2437)),
	}

	o, ok := observationFromProps(props)
	if !ok {
		t.Fatal("observationFromProps() rejected a valid BSS")
	}
	if o.BSSID != "aa:bb:cc:01:02:03" || o.SSID != "lab" || o.RSSI != -61 || o.Channel != 6 {
		t.Errorf("observation = %+v", o)
	}

	if _, ok := observationFromProps(map[string]dbus.Variant{}); ok {
		t.Error("observationFromProps() accepted a BSS without BSSID")
	}
}
