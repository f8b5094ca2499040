// Package match implements Match/Select (spec §4.4): whether a scan entry
// satisfies a profile, and which of several matches wins.
package match

import (
	"fmt"

	"wcm/internal/types"
)

// RegulatoryAllowed reports whether channel is currently allowed by the
// active 11d policy. The core's 11d/region tables are an external
// collaborator (spec §1); callers inject the live policy.
type RegulatoryAllowed func(channel int) bool

// Result is the outcome of matching a single scan entry against a
// profile.
type Result struct {
	Matches    bool
	Diagnostic string // set when Matches is false and the reason is worth surfacing (e.g. WEP/HT certification rule)
}

// Match reports whether entry satisfies profile (spec §4.4).
func Match(p types.Profile, e types.ScanEntry, allowed RegulatoryAllowed) Result {
	if p.ChannelSpecific && p.Channel != e.Channel {
		return Result{Matches: false}
	}
	if p.BSSIDSpecific && p.BSSID != e.BSSID {
		return Result{Matches: false}
	}
	if p.SSIDSpecific {
		ssidOK := p.SSID == e.SSID
		if !ssidOK && e.OWETransition && p.SSID == e.OWETransitionSSID {
			ssidOK = true
		}
		if !ssidOK {
			return Result{Matches: false}
		}
	}
	if allowed != nil && !allowed(e.Channel) {
		return Result{Matches: false}
	}

	return matchSecurity(p.Security.Type, p.Security, e)
}

func matchSecurity(t types.SecurityType, sec types.Security, e types.ScanEntry) Result {
	bits := e.SecurityBits
	switch t {
	case types.SecurityNone:
		if bits.Any(types.CipherWEP40 | types.CipherWEP104 | types.CipherBitWPA | types.CipherBitWPA2) {
			return Result{Matches: false}
		}
		if e.OWETransition && bits.Any(types.CipherBitOWE) {
			return Result{Matches: false}
		}
		return Result{Matches: true}

	case types.SecurityWEPOpen, types.SecurityWEPShared:
		if !bits.Any(types.CipherWEP40 | types.CipherWEP104) {
			return Result{Matches: false}
		}
		if bits.Has(types.CipherBitHT) {
			return Result{Matches: false, Diagnostic: "WEP is not permitted with an HT-capable AP (certification rule)"}
		}
		return Result{Matches: true}

	case types.SecurityWPA:
		if !bits.Has(types.CipherBitWPA) {
			return Result{Matches: false}
		}
		if bits.Has(types.CipherTKIP) && !bits.Any(types.CipherCCMP) {
			return Result{Matches: false, Diagnostic: "AP offers only TKIP under WPA, which this profile rejects"}
		}
		return Result{Matches: true}

	case types.SecurityWPA2, types.SecurityWPA2FT:
		if bits.Has(types.CipherBitWPA2) {
			return Result{Matches: true}
		}
		return Result{Matches: false}

	case types.SecurityWPA2SHA256:
		if bits.Has(types.CipherBitWPA2) {
			return Result{Matches: true}
		}
		return Result{Matches: false}

	case types.SecurityWPAWPA2Mixed:
		if bits.Any(types.CipherBitWPA | types.CipherBitWPA2) {
			return Result{Matches: true}
		}
		return Result{Matches: false}

	case types.SecurityWPA3SAE, types.SecurityWPA3SAEFT:
		capable, _ := sec.RequiresMFP()
		if bits.Has(types.CipherBitSAE) && capable {
			return Result{Matches: true}
		}
		return Result{Matches: false}

	case types.SecurityWPA2WPA3Mixed:
		if bits.Any(types.CipherBitSAE|types.CipherBitWPA2) && sec.MFPCapable {
			return Result{Matches: true}
		}
		return Result{Matches: false}

	case types.SecurityOWEOnly:
		if bits.Has(types.CipherBitOWE) {
			return Result{Matches: true}
		}
		return Result{Matches: false}

	case types.SecurityWildcard:
		return Result{Matches: true}

	case types.SecurityEAP, types.SecurityEAPSHA256, types.SecurityEAPFT:
		if bits.Any(types.CipherBitWPA | types.CipherBitWPA2) {
			return Result{Matches: true}
		}
		return Result{Matches: false}

	default:
		panic(fmt.Sprintf("match: unhandled security type %v", t))
	}
}

// ResolveWildcard resolves a Wildcard security type into the strongest
// offered among {SAE+WPA2-mixed, SAE, WPA2, WPA-WPA2-mixed, WEP-open, OWE,
// None} (spec §4.4).
func ResolveWildcard(e types.ScanEntry) types.SecurityType {
	bits := e.SecurityBits
	switch {
	case bits.Has(types.CipherBitSAE) && bits.Has(types.CipherBitWPA2):
		return types.SecurityWPA2WPA3Mixed
	case bits.Has(types.CipherBitSAE):
		return types.SecurityWPA3SAE
	case bits.Has(types.CipherBitWPA2):
		return types.SecurityWPA2
	case bits.Has(types.CipherBitWPA):
		return types.SecurityWPAWPA2Mixed
	case bits.Any(types.CipherWEP40 | types.CipherWEP104):
		return types.SecurityWEPOpen
	case bits.Has(types.CipherBitOWE):
		return types.SecurityOWEOnly
	default:
		return types.SecurityNone
	}
}

// Selection is the outcome of running Select over a results table.
type Selection struct {
	Best           *types.ScanEntry
	HiddenChannels []int // channels with a zero-length-SSID hit, for the follow-up scan
}

// Select iterates every scan entry, keeping the single best match by
// highest RSSI (ties resolved by first-seen), and remembering channels
// that returned a hidden (zero-length SSID) entry so a follow-up directed
// scan can be issued if nothing matched (spec §4.4).
func Select(p types.Profile, entries []types.ScanEntry, allowed RegulatoryAllowed) Selection {
	var sel Selection
	seenHiddenChan := make(map[int]bool)

	for i := range entries {
		e := &entries[i]
		if e.SSID == "" && p.SSIDSpecific {
			if !seenHiddenChan[e.Channel] {
				seenHiddenChan[e.Channel] = true
				sel.HiddenChannels = append(sel.HiddenChannels, e.Channel)
			}
			continue
		}

		r := Match(p, *e, allowed)
		if !r.Matches {
			continue
		}
		if sel.Best == nil || e.RSSI > sel.Best.RSSI {
			sel.Best = e
		}
	}

	if sel.Best != nil {
		sel.HiddenChannels = nil
	}
	return sel
}

// ApplyDiscovered fills previously-unspecified fields of p from the
// winning entry (spec §4.4), resolving a Wildcard security type into the
// strongest offered variant.
func ApplyDiscovered(p types.Profile, e types.ScanEntry) types.Profile {
	if !p.ChannelSpecific {
		p.Channel = e.Channel
	}
	if !p.BSSIDSpecific {
		p.BSSID = e.BSSID
	}
	p.Discovered.Channel = e.Channel
	p.Discovered.BeaconPeriod = e.BeaconPeriod
	p.Discovered.DTIMPeriod = e.DTIMPeriod
	p.Discovered.HT = e.HT
	p.Discovered.VHT = e.VHT
	p.Discovered.MobilityDomain = e.MobilityDomain
	p.Discovered.Supports11k = e.Supports11k
	p.Discovered.Supports11v = e.Supports11v
	if e.OWETransition {
		p.Discovered.OWETransitionSSID = e.OWETransitionSSID
	}

	if p.Security.Type == types.SecurityWildcard {
		p.Security.Type = ResolveWildcard(e)
	}
	return p
}
