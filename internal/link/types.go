package link

import (
	"fmt"
	"net/netip"
	"strings"
)

// State is the lifecycle state of the managed link.
type State int

const (
	StateUninitialized State = iota
	StateConfiguring
	StateConnecting
	StateConnected
	StateDisconnected
	StateTearingDown
)

// String returns the lower-case state name used in logs and the status API.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfiguring:
		return "configuring"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateTearingDown:
		return "tearing_down"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DriverState mirrors the wireless driver's own view of its lifecycle.
type DriverState int

const (
	DriverDeinit DriverState = iota
	DriverInit
	DriverStarted
)

func (s DriverState) String() string {
	switch s {
	case DriverDeinit:
		return "deinit"
	case DriverInit:
		return "init"
	case DriverStarted:
		return "started"
	default:
		return fmt.Sprintf("DriverState(%d)", int(s))
	}
}

// Mode is the radio operating mode requested from the driver.
type Mode int

const (
	ModeStation Mode = iota + 1
)

// Storage selects where the driver keeps its network configuration.
type Storage int

const (
	// StorageRAM keeps credentials in memory only; nothing survives a
	// restart of the wireless stack.
	StorageRAM Storage = iota + 1
	StorageFlash
)

// Protocol is a bit set of 802.11 PHY protocols.
type Protocol uint8

const (
	Protocol11B Protocol = 1 << iota
	Protocol11G
	Protocol11N
)

// ProtocolCompatible is the broad fallback set applied when the AP rejects
// the station's basic rates.
const ProtocolCompatible = Protocol11B | Protocol11G | Protocol11N

func (p Protocol) String() string {
	var parts []string
	if p&Protocol11B != 0 {
		parts = append(parts, "b")
	}
	if p&Protocol11G != 0 {
		parts = append(parts, "g")
	}
	if p&Protocol11N != 0 {
		parts = append(parts, "n")
	}
	if len(parts) == 0 {
		return "none"
	}
	return "802.11" + strings.Join(parts, "/")
}

// Reason is a disconnect reason code. Values below 200 are IEEE 802.11
// reason codes; 200 and above are station-side codes reported by the driver.
type Reason uint16

const (
	ReasonUnspecified         Reason = 1
	ReasonAuthExpire          Reason = 2
	ReasonAuthLeave           Reason = 3
	ReasonAssocExpire         Reason = 4
	ReasonAssocLeave          Reason = 8
	ReasonHandshakeTimeout    Reason = 15
	ReasonBeaconTimeout       Reason = 200
	ReasonNoAPFound           Reason = 201
	ReasonAuthFail            Reason = 202
	ReasonAssocFail           Reason = 203
	ReasonBasicRateNotSupport Reason = 205
)

func (r Reason) String() string {
	switch r {
	case ReasonUnspecified:
		return "unspecified"
	case ReasonAuthExpire:
		return "auth_expire"
	case ReasonAuthLeave:
		return "auth_leave"
	case ReasonAssocExpire:
		return "assoc_expire"
	case ReasonAssocLeave:
		return "assoc_leave"
	case ReasonHandshakeTimeout:
		return "4way_handshake_timeout"
	case ReasonBeaconTimeout:
		return "beacon_timeout"
	case ReasonNoAPFound:
		return "no_ap_found"
	case ReasonAuthFail:
		return "auth_fail"
	case ReasonAssocFail:
		return "assoc_fail"
	case ReasonBasicRateNotSupport:
		return "basic_rate_not_supported"
	default:
		return fmt.Sprintf("reason(%d)", uint16(r))
	}
}

// Credentials are the station credentials. They are fixed at bootstrap and
// passed by value.
type Credentials struct {
	SSID       string
	Passphrase string
}

// String masks the passphrase.
func (c Credentials) String() string {
	if c.Passphrase == "" {
		return fmt.Sprintf("%s (open)", c.SSID)
	}
	return fmt.Sprintf("%s (passphrase: %d chars)", c.SSID, len(c.Passphrase))
}

// Validate checks the credentials against 802.11/WPA2 limits.
func (c Credentials) Validate() error {
	if c.SSID == "" {
		return fmt.Errorf("ssid is required")
	}
	if len(c.SSID) > 32 {
		return fmt.Errorf("ssid must be at most 32 bytes, got %d", len(c.SSID))
	}
	if n := len(c.Passphrase); n != 0 && (n < 8 || n > 63) {
		return fmt.Errorf("passphrase must be 8-63 characters, got %d", n)
	}
	return nil
}

// Status is a read-only snapshot of the controller.
type Status struct {
	State       State
	Interface   string
	SSID        string
	LastAddress netip.Addr
	Reconnects  int
}
