// Package store implements the Network Store (spec §4.2): a fixed-size
// array of Profile slots, guarded so that add/remove are refused while the
// referring interface is actively connected/started (spec §4.2, §3).
package store

import (
	"sync"

	"github.com/pkg/errors"

	"wcm/internal/types"
	"wcm/internal/wcmerr"
)

const (
	nameMinLen = 1
	nameMaxLen = 32

	pskMinLen = 8
	pskMaxLen = 65 // 63 ASCII or 64 hex digits; one extra for the length check below
	pskHexLen = 64

	saePasswordMinLen = 8
	saePasswordMaxLen = 255
)

// InterfaceBusy reports, for a profile's role, whether its interface is in
// a state where add/remove would race with the control task (spec §4.2).
// The Handle wires this to the live STA/µAP state machines.
type InterfaceBusy func(role types.Role) bool

// Store is the Network Store. Zero value is not usable; construct with
// New.
type Store struct {
	mu       sync.Mutex
	max      int
	profiles []*types.Profile // nil slots are free
	busy     InterfaceBusy

	currentSTA int // index into profiles, or -1
	currentUAP int // index into profiles, or -1
}

// None is the sentinel "no current network" index (spec §3).
const None = -1

// New allocates a Store with room for max profiles.
func New(max int, busy InterfaceBusy) *Store {
	if busy == nil {
		busy = func(types.Role) bool { return false }
	}
	return &Store{
		max:        max,
		profiles:   make([]*types.Profile, max),
		busy:       busy,
		currentSTA: None,
		currentUAP: None,
	}
}

// validateName checks the name-length invariant (spec §3, §4.2).
func validateName(name string) error {
	if len(name) < nameMinLen || len(name) > nameMaxLen {
		return errors.Wrapf(wcmerr.ErrInvalidName, "name length %d outside [%d,%d]",
			len(name), nameMinLen, nameMaxLen)
	}
	return nil
}

// validateKey checks PSK/SAE-password length and encoding (spec §3, §8;
// bounds pinned by original_source/incl/wlcmgr/wlan.h).
func validateKey(sec types.Security) error {
	switch sec.Type {
	case types.SecurityWPA, types.SecurityWPA2, types.SecurityWPA2SHA256,
		types.SecurityWPAWPA2Mixed, types.SecurityWPA2FT:
		return validatePSK(sec.Passphrase)
	case types.SecurityWPA3SAE, types.SecurityWPA3SAEFT, types.SecurityWPA2WPA3Mixed:
		if len(sec.SAEPassword) < saePasswordMinLen || len(sec.SAEPassword) > saePasswordMaxLen {
			return errors.Wrapf(wcmerr.ErrKeyInvalid, "SAE password length %d outside [%d,%d]",
				len(sec.SAEPassword), saePasswordMinLen, saePasswordMaxLen)
		}
		if sec.Passphrase != "" {
			return validatePSK(sec.Passphrase)
		}
	}
	return nil
}

func validatePSK(psk string) error {
	n := len(psk)
	if n == pskHexLen {
		for _, c := range psk {
			if !isHexDigit(c) {
				return errors.Wrapf(wcmerr.ErrKeyInvalid, "64-char PSK must be all hex digits")
			}
		}
		return nil
	}
	if n < pskMinLen || n >= pskMaxLen {
		return errors.Wrapf(wcmerr.ErrKeyInvalid, "PSK length %d outside [%d,63] ASCII or %d hex",
			n, pskMinLen, pskHexLen)
	}
	for _, c := range psk {
		if c < 0x20 || c > 0x7e {
			return errors.Wrapf(wcmerr.ErrKeyInvalid, "PSK must be printable ASCII")
		}
	}
	return nil
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// validateMFP enforces the MFP-implication invariant of spec §3.
func validateMFP(sec types.Security) error {
	capable, required := sec.RequiresMFP()
	if capable && !sec.MFPCapable {
		// A type that implies MFPC is accepted without MFPCapable set;
		// the stored flag is kept as given. Required-but-not-capable is
		// the only hard error.
		return nil
	}
	if required && !capable {
		return errors.Wrap(wcmerr.ErrKeyInvalid, "security type requires MFP but MFPRequired is false")
	}
	return nil
}

// deriveSpecificFlags fills the "specific" flags described in spec §3.
func deriveSpecificFlags(p *types.Profile) {
	p.SSIDSpecific = p.SSID != ""
	p.BSSIDSpecific = !p.BSSID.IsZero()
	p.ChannelSpecific = p.Channel != 0
	p.SecuritySpecific = p.Security.Type != types.SecurityWildcard
}

// defaultUAPCapabilities fills default 802.11n/ac capability for a µAP
// profile if unset (spec §4.2).
func defaultUAPCapabilities(p *types.Profile) {
	if p.Role != types.RoleUAP {
		return
	}
	if !p.Discovered.HT && !p.Discovered.VHT {
		p.Discovered.HT = true
	}
}

// Add validates and inserts a profile (spec §4.2).
func (s *Store) Add(p types.Profile) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateName(p.Name); err != nil {
		return None, err
	}
	if p.SSID == "" && p.BSSID.IsZero() {
		return None, errors.Wrap(wcmerr.ErrParam, "at least one of SSID, BSSID must be constrained")
	}
	if p.Role == types.RoleUAP && p.IPv4.Gateway != p.IPv4.Addr {
		return None, errors.Wrap(wcmerr.ErrParam, "µAP profile gateway must equal the device address")
	}
	if err := validateKey(p.Security); err != nil {
		return None, err
	}
	if err := validateMFP(p.Security); err != nil {
		return None, err
	}
	if s.busy(p.Role) {
		return None, errors.Wrapf(wcmerr.ErrState, "profile %q's interface is active", p.Name)
	}

	free := -1
	for i, slot := range s.profiles {
		if slot == nil {
			if free < 0 {
				free = i
			}
			continue
		}
		if slot.Name == p.Name {
			return None, errors.Wrapf(wcmerr.ErrDuplicateName, "profile %q already exists", p.Name)
		}
	}
	if free < 0 {
		return None, errors.Wrap(wcmerr.ErrNomem, "network store is full")
	}

	np := p
	deriveSpecificFlags(&np)
	defaultUAPCapabilities(&np)
	s.profiles[free] = &np
	return free, nil
}

// Remove deletes a profile by name, refusing while its interface is active
// (spec §4.2).
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, slot := range s.profiles {
		if slot == nil || slot.Name != name {
			continue
		}
		if s.busy(slot.Role) {
			return errors.Wrapf(wcmerr.ErrState, "profile %q's interface is active", name)
		}
		if i == s.currentSTA {
			s.currentSTA = None
		}
		if i == s.currentUAP {
			s.currentUAP = None
		}
		s.profiles[i] = nil
		return nil
	}
	return errors.Wrapf(wcmerr.ErrNotFound, "profile %q", name)
}

// GetByName returns a copy of the named profile.
func (s *Store) GetByName(name string) (types.Profile, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, slot := range s.profiles {
		if slot != nil && slot.Name == name {
			return *slot, i, nil
		}
	}
	return types.Profile{}, None, errors.Wrapf(wcmerr.ErrNotFound, "profile %q", name)
}

// GetByIndex returns a copy of the profile at idx.
func (s *Store) GetByIndex(idx int) (types.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.profiles) || s.profiles[idx] == nil {
		return types.Profile{}, errors.Wrap(wcmerr.ErrNotFound, "no profile at index")
	}
	return *s.profiles[idx], nil
}

// Count returns the number of occupied slots.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, slot := range s.profiles {
		if slot != nil {
			n++
		}
	}
	return n
}

// Update overwrites the stored profile at idx, used by Match/Select to
// fill previously-unspecified fields (spec §4.4).
func (s *Store) Update(idx int, p types.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.profiles) || s.profiles[idx] == nil {
		return errors.Wrap(wcmerr.ErrNotFound, "no profile at index")
	}
	s.profiles[idx] = &p
	return nil
}

// CurrentSTA returns the index of the profile the STA is currently
// connecting to or connected on, or None.
func (s *Store) CurrentSTA() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSTA
}

// SetCurrentSTA sets or clears (None) the current STA profile index (spec
// §3: "set when a connect attempt begins, cleared on disconnect").
func (s *Store) SetCurrentSTA(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentSTA = idx
}

// CurrentUAP returns the index of the profile the µAP is currently using,
// or None.
func (s *Store) CurrentUAP() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentUAP
}

// SetCurrentUAP sets or clears (None) the current µAP profile index.
func (s *Store) SetCurrentUAP(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUAP = idx
}
