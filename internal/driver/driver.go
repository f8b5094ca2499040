// Package driver defines the downward contract the WCM core consumes from
// the SDIO-attached firmware (spec §6). The bus driver, firmware wire
// protocol, supplicant, and DHCP/IPv6/DNS stack are external collaborators
// out of scope for this repository (spec §1); this interface is the only
// seam the core depends on, letting internal/sta, internal/uap, and
// internal/powersave be tested against internal/driver/fakedriver instead
// of real hardware.
package driver

import (
	"wcm/internal/types"
)

// Iface selects which virtual interface a command applies to.
type Iface int

// Interfaces.
const (
	IfaceSTA Iface = iota
	IfaceUAP
)

// ScanRequest is the command constructed by the Scan Coordinator
// (spec §4.3).
type ScanRequest struct {
	BSSType     types.BSSType
	BSSID       types.MAC // zero = broadcast
	SSIDs       [2]string
	Channels    []int // empty = all channels
	Probes      int
	ChannelGap  int // 0 when idle, policy constant when serving traffic
	Passive     bool
	Directed    bool // true for hidden-SSID follow-up / FT scans
}

// AssocRequest is the command constructed when the STA SM starts an
// association attempt (spec §4.5, §6).
type AssocRequest struct {
	BSSID      types.MAC
	Channel    int
	Security   types.Security
	TKIPOnly   bool
	OWETrans   bool
	FT         bool // ft_bss flag: tell firmware/supplicant to skip the 4-way handshake
}

// UapStartFields is the configuration passed to uap_start (spec §4.6).
type UapStartFields struct {
	Profile types.Profile
	Channel int
}

// HostSleepAction selects between programming and activating wake-on-X
// filters (spec §4.8).
type HostSleepAction int

// Host-sleep actions.
const (
	HostSleepConfigure HostSleepAction = iota
	HostSleepActivate
)

// WakeConditions is the wake-on-X bitmap (spec §4.8, GLOSSARY).
type WakeConditions uint32

// Wake condition bits.
const (
	WakeBroadcast WakeConditions = 1 << iota
	WakeUnicast
	WakeMacEvent
	WakeMulticast
	WakeArpBroadcast
	WakeMgmtFrame
)

// CancelHostSleep is the sentinel "conditions == CANCEL" value of §4.8.
const CancelHostSleep WakeConditions = 0

// PacketFilter configures firmware-side packet filtering (spec §6); opaque
// to the core beyond being forwarded.
type PacketFilter struct {
	Rules []byte
}

// Driver is the downward contract consumed by the core. Every method is an
// asynchronous, non-blocking command submission (spec §5): it returns as
// soon as the command has been accepted for delivery to firmware, with the
// actual completion arriving later as an event on the Bus the Driver was
// constructed with.
type Driver interface {
	Scan(req ScanRequest) error
	Associate(req AssocRequest) error
	Deauthenticate(bssid types.MAC) error

	SendHostSleepCfg(iface Iface, ipv4 [4]byte, action HostSleepAction, conditions WakeConditions) error
	EnterIEEEPowerSave() error
	ExitIEEEPowerSave() error
	EnterDeepSleepPowerSave() error
	ExitDeepSleepPowerSave() error
	SendSleepConfirm(iface Iface) error
	HasInFlightTransfer() bool

	UapStart(fields UapStartFields) error
	UapStop() error

	AddWPAPSK(passphrase string) error
	AddWPA3Password(password string) error
	AddWPAPMK(pmk []byte) error
	SetWEPKey(idx int, key string) error

	SetRSSILowThreshold(threshold int) error
	ConfigBgscanAndRSSI(ssid string) error
	SetPacketFilters(flt PacketFilter) error

	SendNeighborRequest() error
	SendBTMQuery() error
	SendBTMResponse(bssid types.MAC) error
	SendBTMReject() error

	GetDeviceMAC() (types.MAC, error)
	GetDeviceUAPMAC() (types.MAC, error)
	GetFWVersionExt() (string, error)
	GetTSF() (uint64, error)
}
