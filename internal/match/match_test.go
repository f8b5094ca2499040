package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wcm/internal/types"
)

func allowAll(int) bool { return true }

func TestMatchRejectsConstrainedFieldMismatch(t *testing.T) {
	p := types.Profile{
		SSIDSpecific: true,
		SSID:         "home",
		Security:     types.Security{Type: types.SecurityNone},
	}
	e := types.ScanEntry{SSID: "other"}
	assert.False(t, Match(p, e, allowAll).Matches)
}

func TestMatchRejectsDisallowedChannel(t *testing.T) {
	p := types.Profile{
		SSIDSpecific: true,
		SSID:         "home",
		Security:     types.Security{Type: types.SecurityNone},
	}
	e := types.ScanEntry{SSID: "home", Channel: 12}
	denyAll := func(int) bool { return false }
	assert.False(t, Match(p, e, denyAll).Matches)
}

func TestMatchWEPRejectsHTCapableEntry(t *testing.T) {
	p := types.Profile{
		SSIDSpecific: true,
		SSID:         "home",
		Security:     types.Security{Type: types.SecurityWEPOpen},
	}
	e := types.ScanEntry{
		SSID:         "home",
		SecurityBits: types.CipherWEP40 | types.CipherBitHT,
	}
	r := Match(p, e, allowAll)
	assert.False(t, r.Matches)
	assert.NotEmpty(t, r.Diagnostic, "WEP/HT rejection must carry a certification diagnostic")
}

func TestMatchWEPAcceptsNonHTEntry(t *testing.T) {
	p := types.Profile{
		SSIDSpecific: true,
		SSID:         "home",
		Security:     types.Security{Type: types.SecurityWEPOpen},
	}
	e := types.ScanEntry{SSID: "home", SecurityBits: types.CipherWEP40}
	assert.True(t, Match(p, e, allowAll).Matches)
}

func TestMatchWPARejectsTKIPOnly(t *testing.T) {
	p := types.Profile{
		SSIDSpecific: true,
		SSID:         "home",
		Security:     types.Security{Type: types.SecurityWPA},
	}
	e := types.ScanEntry{
		SSID:         "home",
		SecurityBits: types.CipherBitWPA | types.CipherTKIP,
	}
	r := Match(p, e, allowAll)
	assert.False(t, r.Matches)
	assert.NotEmpty(t, r.Diagnostic)
}

// TestMatchWPA3SAERequiresSAEBit exercises spec §4.4: WPA3-SAE "implies
// MFPC" automatically (RequiresMFP hardcodes capable=true for this type,
// spec §3), so matching turns on the scan entry's SAE bit alone.
func TestMatchWPA3SAERequiresSAEBit(t *testing.T) {
	p := types.Profile{
		SSIDSpecific: true,
		SSID:         "home",
		Security:     types.Security{Type: types.SecurityWPA3SAE},
	}
	assert.False(t, Match(p, types.ScanEntry{SSID: "home"}, allowAll).Matches, "no SAE bit offered")
	assert.True(t, Match(p, types.ScanEntry{SSID: "home", SecurityBits: types.CipherBitSAE}, allowAll).Matches)
}

// TestMatchWPA2WPA3MixedRequiresMFPCConfigured exercises spec §4.4's
// WPA2-WPA3-mixed rule, which (unlike plain WPA3-SAE) checks the
// profile's own MFPCapable field rather than an implied default.
func TestMatchWPA2WPA3MixedRequiresMFPCConfigured(t *testing.T) {
	p := types.Profile{
		SSIDSpecific: true,
		SSID:         "home",
		Security:     types.Security{Type: types.SecurityWPA2WPA3Mixed, MFPCapable: false},
	}
	e := types.ScanEntry{SSID: "home", SecurityBits: types.CipherBitSAE}
	assert.False(t, Match(p, e, allowAll).Matches, "mixed mode requires MFPC configured on the profile")

	p.Security.MFPCapable = true
	assert.True(t, Match(p, e, allowAll).Matches)
}

func TestMatchOWEHonorsTransitionSSID(t *testing.T) {
	p := types.Profile{
		SSIDSpecific: true,
		SSID:         "owe-ssid",
		Security:     types.Security{Type: types.SecurityNone},
	}
	e := types.ScanEntry{
		SSID:              "open-ssid",
		OWETransition:     true,
		OWETransitionSSID: "owe-ssid",
	}
	assert.True(t, Match(p, e, allowAll).Matches)
}

// TestSelectPicksBestRSSI exercises spec §8 scenario 2: of several
// matching entries for the same profile, the highest-RSSI one wins.
func TestSelectPicksBestRSSI(t *testing.T) {
	p := types.Profile{
		SSIDSpecific: true,
		SSID:         "home",
		Security:     types.Security{Type: types.SecurityWPA2},
	}
	entries := []types.ScanEntry{
		{SSID: "home", BSSID: types.MAC{1}, RSSI: -70, SecurityBits: types.CipherBitWPA2},
		{SSID: "home", BSSID: types.MAC{2}, RSSI: -55, SecurityBits: types.CipherBitWPA2},
		{SSID: "home", BSSID: types.MAC{3}, RSSI: -60, SecurityBits: types.CipherBitWPA2},
	}
	sel := Select(p, entries, allowAll)
	require.NotNil(t, sel.Best)
	assert.Equal(t, types.MAC{2}, sel.Best.BSSID)
}

func TestSelectRemembersHiddenChannelsWhenNoMatch(t *testing.T) {
	p := types.Profile{
		SSIDSpecific: true,
		SSID:         "home",
		Security:     types.Security{Type: types.SecurityWPA2},
	}
	entries := []types.ScanEntry{
		{SSID: "", Channel: 6},
		{SSID: "other", Channel: 6, SecurityBits: types.CipherBitWPA2},
	}
	sel := Select(p, entries, allowAll)
	assert.Nil(t, sel.Best)
	assert.Equal(t, []int{6}, sel.HiddenChannels)
}

func TestSelectClearsHiddenChannelsWhenMatchFound(t *testing.T) {
	p := types.Profile{
		SSIDSpecific: true,
		SSID:         "home",
		Security:     types.Security{Type: types.SecurityWPA2},
	}
	entries := []types.ScanEntry{
		{SSID: "", Channel: 6},
		{SSID: "home", Channel: 1, BSSID: types.MAC{1}, SecurityBits: types.CipherBitWPA2},
	}
	sel := Select(p, entries, allowAll)
	require.NotNil(t, sel.Best)
	assert.Empty(t, sel.HiddenChannels)
}

func TestResolveWildcardPrefersStrongest(t *testing.T) {
	e := types.ScanEntry{SecurityBits: types.CipherBitSAE | types.CipherBitWPA2}
	assert.Equal(t, types.SecurityWPA2WPA3Mixed, ResolveWildcard(e))

	e = types.ScanEntry{SecurityBits: types.CipherBitWPA2}
	assert.Equal(t, types.SecurityWPA2, ResolveWildcard(e))

	e = types.ScanEntry{SecurityBits: 0}
	assert.Equal(t, types.SecurityNone, ResolveWildcard(e))
}

func TestApplyDiscoveredFillsUnspecifiedFields(t *testing.T) {
	p := types.Profile{
		SSIDSpecific: true,
		SSID:         "home",
		Security:     types.Security{Type: types.SecurityWildcard},
	}
	e := types.ScanEntry{
		SSID:         "home",
		BSSID:        types.MAC{9, 9, 9, 9, 9, 9},
		Channel:      11,
		SecurityBits: types.CipherBitWPA2,
		BeaconPeriod: 100,
		DTIMPeriod:   2,
	}
	out := ApplyDiscovered(p, e)
	assert.Equal(t, e.BSSID, out.BSSID)
	assert.Equal(t, e.Channel, out.Discovered.Channel)
	assert.Equal(t, types.SecurityWPA2, out.Security.Type, "Wildcard resolves to the strongest offered variant")
}
