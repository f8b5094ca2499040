package types

// Role distinguishes which virtual interface a profile governs.
type Role int

// Roles, per spec §3.
const (
	RoleSTA Role = iota
	RoleUAP
)

// BSSType mirrors the driver's BSS-type filter (spec §4.3).
type BSSType int

// BSS types.
const (
	BSSInfrastructure BSSType = iota
	BSSIndependent
	BSSAny
)

// AddrMode selects how a profile's IPv4 address is obtained.
type AddrMode int

// Address modes, per spec §3.
const (
	AddrDHCP AddrMode = iota
	AddrStatic
	AddrLinkLocal
)

// IPv4Config describes a profile's IPv4 addressing.
type IPv4Config struct {
	Mode    AddrMode
	Addr    [4]byte
	Gateway [4]byte
	Mask    [4]byte
	DNS1    [4]byte
	DNS2    [4]byte
}

// IPv6Config describes a profile's optional IPv6 addressing.
type IPv6Config struct {
	Enabled bool
	Addr    [16]byte
}

// Discovered holds attributes a profile learns the first time it matches a
// scan entry (spec §3 "cached discovered attributes").
type Discovered struct {
	Channel         int
	BeaconPeriod    int
	DTIMPeriod      int
	HT              bool
	VHT             bool
	MobilityDomain  uint16
	Supports11k     bool
	Supports11v     bool
	OWETransitionSSID string
}

// Profile is a stored network definition (spec §3).
type Profile struct {
	Name string

	SSID   string // empty = match any SSID
	BSSID  MAC    // zero = match any
	Channel int    // 0 = any

	Role    Role
	BSSType BSSType

	Security Security

	IPv4 IPv4Config
	IPv6 IPv6Config

	Discovered Discovered

	// Derived "specific" flags, filled at add-time (spec §3).
	SSIDSpecific     bool
	BSSIDSpecific    bool
	ChannelSpecific  bool
	SecuritySpecific bool
}

// ScanEntry is a single result row from the driver's scan table (spec §4.3).
type ScanEntry struct {
	SSID    string
	BSSID   MAC
	Channel int
	RSSI    int // dBm

	SecurityBits CipherBitmap
	HT           bool
	VHT          bool

	BeaconPeriod int
	DTIMPeriod   int

	MobilityDomain uint16
	Supports11k    bool
	Supports11v    bool

	OWETransition bool
	OWETransitionSSID string
}
