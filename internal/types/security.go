package types

// SecurityType is the closed tag for a profile's security configuration.
// Spec §9 calls out "polymorphism over security type" as a bug class the
// source's switch-on-enum style invites; here it is a closed Go type, but
// Go has no sum types, so the compiler does not check that switches over
// it are exhaustive — new variants must be threaded through internal/match
// and internal/sta by hand. The security switch in internal/match panics
// on an unhandled default; other switches (String, RequiresMFP, the store's
// key validation) fall back to a default result.
type SecurityType int

// Security tags, per spec §3.
const (
	SecurityNone SecurityType = iota
	SecurityWEPOpen
	SecurityWEPShared
	SecurityWPA
	SecurityWPA2
	SecurityWPA2SHA256
	SecurityWPAWPA2Mixed
	SecurityWPA2FT
	SecurityWPA3SAE
	SecurityWPA3SAEFT
	SecurityWPA2WPA3Mixed
	SecurityOWEOnly
	SecurityWildcard
	SecurityEAP
	SecurityEAPSHA256
	SecurityEAPFT
)

func (s SecurityType) String() string {
	switch s {
	case SecurityNone:
		return "none"
	case SecurityWEPOpen:
		return "wep-open"
	case SecurityWEPShared:
		return "wep-shared"
	case SecurityWPA:
		return "wpa"
	case SecurityWPA2:
		return "wpa2"
	case SecurityWPA2SHA256:
		return "wpa2-sha256"
	case SecurityWPAWPA2Mixed:
		return "wpa-wpa2-mixed"
	case SecurityWPA2FT:
		return "wpa2-ft"
	case SecurityWPA3SAE:
		return "wpa3-sae"
	case SecurityWPA3SAEFT:
		return "wpa3-sae-ft"
	case SecurityWPA2WPA3Mixed:
		return "wpa2-wpa3-mixed"
	case SecurityOWEOnly:
		return "owe-only"
	case SecurityWildcard:
		return "wildcard"
	case SecurityEAP, SecurityEAPSHA256, SecurityEAPFT:
		return "eap"
	default:
		return "unknown"
	}
}

// CipherBitmap is a per-cipher capability/requirement bitmap, used both to
// describe what a profile will accept and what a scan entry advertises.
type CipherBitmap uint32

// Cipher bits, shared between the profile's configured ciphers and the bits
// decoded off a beacon/probe-response by the driver.
const (
	CipherWEP40 CipherBitmap = 1 << iota
	CipherWEP104
	CipherTKIP
	CipherCCMP
	CipherGCMP256
	CipherBitWPA
	CipherBitWPA2
	CipherBitSAE
	CipherBitOWE
	CipherBitHT // 802.11n capable, used by the WEP certification guard
)

// Has reports whether all bits in mask are set.
func (c CipherBitmap) Has(mask CipherBitmap) bool {
	return c&mask == mask
}

// Any reports whether any bit in mask is set.
func (c CipherBitmap) Any(mask CipherBitmap) bool {
	return c&mask != 0
}

// Security holds a profile's full security configuration (spec §3).
type Security struct {
	Type SecurityType

	Passphrase string // PSK/passphrase, 8..63 ASCII or 64 hex digits
	SAEPassword string // 8..255 chars
	PMK        []byte // optional, pre-derived
	WEPKeys    [4]string
	WEPKeyIdx  int

	MFPCapable  bool
	MFPRequired bool

	Ciphers CipherBitmap // configured/allowed ciphers for this profile

	// EAP fields, populated only for SecurityEAP* variants.
	EAPIdentity string
	EAPPassword string
}

// RequiresMFP reports whether this security type mandates MFP support per
// spec §3's invariant ("WPA3-SAE and WPA2-SHA256 imply MFPC; WPA3-SAE
// implies MFPR").
func (s Security) RequiresMFP() (capable, required bool) {
	switch s.Type {
	case SecurityWPA3SAE, SecurityWPA3SAEFT, SecurityWPA2WPA3Mixed:
		return true, s.Type != SecurityWPA2WPA3Mixed
	case SecurityWPA2SHA256:
		return true, false
	default:
		return s.MFPCapable, s.MFPRequired
	}
}
