package sta

import "wcm/internal/types"

// AssociationResult is the Data payload of events.TagAssociation (spec §4.5).
type AssociationResult struct {
	OK    bool
	BSSID types.MAC
}

// AuthResult is the Data payload of events.TagAuthentication (spec §4.5).
type AuthResult struct {
	OK bool

	// MIC indicates an authentication failure was specifically a MIC
	// failure, which arms the assoc-pause timer (spec §3, §4.5).
	MIC bool

	// SameESSFTRoam indicates this authentication completed an FT roam
	// within the same ESS, which skips DHCP and publishes success
	// directly (spec §4.5).
	SameESSFTRoam bool
}

// NetAddrConfigResult is the Data payload of events.TagNetAddrConfig.
type NetAddrConfigResult struct {
	Mode types.AddrMode // Static, DHCP, or LinkLocal
	Addr types.IPv4Config
}

// DhcpResult is the Data payload of events.TagDhcpConfig.
type DhcpResult struct {
	OK   bool
	IPv4 [4]byte
}

// ChanSwitchResult is the Data payload of events.TagChanSwitchAnn
// (spec §4.5).
type ChanSwitchResult struct {
	ECSAAware  bool
	NewChannel int
}
