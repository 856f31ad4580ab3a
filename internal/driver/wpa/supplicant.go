package wpa

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	busName         = "fi.w1.wpa_supplicant1"
	rootPath        = dbus.ObjectPath("/fi/w1/wpa_supplicant1")
	rootIface       = "fi.w1.wpa_supplicant1"
	ifaceIface      = "fi.w1.wpa_supplicant1.Interface"
	bssIface        = "fi.w1.wpa_supplicant1.BSS"
	networkIface    = "fi.w1.wpa_supplicant1.Network"
	propsIface      = "org.freedesktop.DBus.Properties"
	propsSignal     = "org.freedesktop.DBus.Properties.PropertiesChanged"
	scanDoneSig     = ifaceIface + ".ScanDone"
	errIfaceUnknown = "fi.w1.wpa_supplicant1.InterfaceUnknown"
)

// supplicant wraps a private system bus connection bound to one
// wpa_supplicant interface object.
type supplicant struct {
	conn  *dbus.Conn
	iface dbus.ObjectPath
}

func dialSupplicant(ifname string) (*supplicant, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}

	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	found := false
	for _, n := range names {
		if n == busName {
			found = true
			break
		}
	}
	if !found {
		conn.Close()
		return nil, fmt.Errorf("%s not found on system bus, is wpa_supplicant running with -u?", busName)
	}

	s := &supplicant{conn: conn}
	path, err := s.interfacePath(ifname)
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.iface = path
	return s, nil
}

// interfacePath returns the object for ifname, asking wpa_supplicant to
// manage the interface if it does not yet.
func (s *supplicant) interfacePath(ifname string) (dbus.ObjectPath, error) {
	root := s.conn.Object(busName, rootPath)

	var path dbus.ObjectPath
	err := root.Call(rootIface+".GetInterface", 0, ifname).Store(&path)
	if err == nil {
		return path, nil
	}
	var dbusErr dbus.Error
	if !asDBusError(err, &dbusErr) || dbusErr.Name != errIfaceUnknown {
		return "", fmt.Errorf("get interface %s: %w", ifname, err)
	}

	args := map[string]dbus.Variant{"Ifname": dbus.MakeVariant(ifname)}
	if err := root.Call(rootIface+".CreateInterface", 0, args).Store(&path); err != nil {
		return "", fmt.Errorf("create interface %s: %w", ifname, err)
	}
	return path, nil
}

func asDBusError(err error, target *dbus.Error) bool {
	switch e := err.(type) {
	case dbus.Error:
		*target = e
		return true
	case *dbus.Error:
		*target = *e
		return true
	}
	return false
}

func (s *supplicant) close() {
	s.conn.Close()
}

func (s *supplicant) call(method string, args ...interface{}) *dbus.Call {
	return s.conn.Object(busName, s.iface).Call(ifaceIface+"."+method, 0, args...)
}

func (s *supplicant) getProp(path dbus.ObjectPath, iface, prop string) (dbus.Variant, error) {
	var v dbus.Variant
	err := s.conn.Object(busName, path).Call(propsIface+".Get", 0, iface, prop).Store(&v)
	return v, err
}

func (s *supplicant) setProp(path dbus.ObjectPath, iface, prop string, val interface{}) error {
	return s.conn.Object(busName, path).Call(propsIface+".Set", 0, iface, prop, dbus.MakeVariant(val)).Err
}

// subscribe routes PropertiesChanged and ScanDone signals of the interface
// object to a new channel.
func (s *supplicant) subscribe() chan *dbus.Signal {
	for _, rule := range s.matchRules() {
		s.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule)
	}
	ch := make(chan *dbus.Signal, 16)
	s.conn.Signal(ch)
	return ch
}

func (s *supplicant) unsubscribe(ch chan *dbus.Signal) {
	for _, rule := range s.matchRules() {
		s.conn.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, rule)
	}
	s.conn.RemoveSignal(ch)
}

func (s *supplicant) matchRules() []string {
	return []string{
		"type='signal',interface='" + propsIface + "',member='PropertiesChanged',path='" + string(s.iface) + "'",
		"type='signal',interface='" + ifaceIface + "',member='ScanDone',path='" + string(s.iface) + "'",
	}
}

// formatBSSID renders a 6-byte hardware address as aa:bb:cc:dd:ee:ff.
func formatBSSID(b []byte) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = fmt.Sprintf("%02x", c)
	}
	return strings.Join(parts, ":")
}

// freqToChannel converts a centre frequency in MHz to an 802.11 channel
// number, or 0 when the frequency is outside the known bands.
func freqToChannel(mhz int) int {
	switch {
	case mhz == 2484:
		return 14
	case mhz >= 2412 && mhz <= 2472:
		return (mhz-2412)/5 + 1
	case mhz >= 5955 && mhz <= 7115:
		return (mhz - 5950) / 5
	case mhz >= 5160 && mhz <= 5885:
		return (mhz - 5000) / 5
	}
	return 0
}
