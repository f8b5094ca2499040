// Package fakedriver provides a mocked driver.Driver, a peer to
// common/mockcfg in spirit: it records every command and lets a test drive
// firmware events onto the same Bus the state machines are listening on,
// without touching real hardware.
package fakedriver

import (
	"sync"

	"wcm/internal/driver"
	"wcm/internal/events"
	"wcm/internal/types"
)

// Fake is a driver.Driver double that records calls and can be scripted to
// fail specific commands.
type Fake struct {
	bus *events.Bus

	mu sync.Mutex

	ScanCalls     []driver.ScanRequest
	AssocCalls    []driver.AssocRequest
	DeauthCalls   []types.MAC
	UapStartCalls []driver.UapStartFields
	UapStopCalls  int
	SlpCfmCalls   []driver.Iface
	HostSleepCalls []hostSleepCall

	NeighborRequestCalls int
	BTMQueryCalls        int
	BTMResponseCalls     []types.MAC
	BTMRejectCalls       int

	InFlightTransfer bool

	ScanErr   error
	AssocErr  error
	UapStartErr error

	DeviceMAC    types.MAC
	DeviceUAPMAC types.MAC
	FWVersion    string
}

type hostSleepCall struct {
	Iface      driver.Iface
	IPv4       [4]byte
	Action     driver.HostSleepAction
	Conditions driver.WakeConditions
}

// New returns a Fake that will deliver synthetic firmware events onto bus.
// bus may be nil if the caller will bind one later with SetBus, e.g. when
// the Fake is handed to wcm.New before its internal Bus exists.
func New(bus *events.Bus) *Fake {
	return &Fake{bus: bus, FWVersion: "fake-fw-1.0"}
}

// SetBus rebinds the Bus Deliver sends onto.
func (f *Fake) SetBus(bus *events.Bus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bus = bus
}

// Scan records the request and, unless ScanErr is set, leaves result
// delivery to the test (call Deliver with a TagScanResult message).
func (f *Fake) Scan(req driver.ScanRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ScanCalls = append(f.ScanCalls, req)
	return f.ScanErr
}

// Associate records the request; completion is delivered by the test via
// Deliver with TagAssociation/TagAuthentication messages.
func (f *Fake) Associate(req driver.AssocRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AssocCalls = append(f.AssocCalls, req)
	return f.AssocErr
}

// Deauthenticate records the target BSSID.
func (f *Fake) Deauthenticate(bssid types.MAC) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeauthCalls = append(f.DeauthCalls, bssid)
	return nil
}

// SendHostSleepCfg records the call.
func (f *Fake) SendHostSleepCfg(iface driver.Iface, ipv4 [4]byte, action driver.HostSleepAction, conditions driver.WakeConditions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HostSleepCalls = append(f.HostSleepCalls, hostSleepCall{iface, ipv4, action, conditions})
	return nil
}

// EnterIEEEPowerSave is a no-op completion; the test drives EnableDone.
func (f *Fake) EnterIEEEPowerSave() error { return nil }

// ExitIEEEPowerSave is a no-op completion; the test drives DisableDone.
func (f *Fake) ExitIEEEPowerSave() error { return nil }

// EnterDeepSleepPowerSave is a no-op completion.
func (f *Fake) EnterDeepSleepPowerSave() error { return nil }

// ExitDeepSleepPowerSave is a no-op completion.
func (f *Fake) ExitDeepSleepPowerSave() error { return nil }

// SendSleepConfirm records the call; the test drives SlpCfm.
func (f *Fake) SendSleepConfirm(iface driver.Iface) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SlpCfmCalls = append(f.SlpCfmCalls, iface)
	return nil
}

// HasInFlightTransfer reports the scripted InFlightTransfer value.
func (f *Fake) HasInFlightTransfer() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.InFlightTransfer
}

// UapStart records the request.
func (f *Fake) UapStart(fields driver.UapStartFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UapStartCalls = append(f.UapStartCalls, fields)
	return f.UapStartErr
}

// UapStop records the call.
func (f *Fake) UapStop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UapStopCalls++
	return nil
}

// AddWPAPSK is a no-op.
func (f *Fake) AddWPAPSK(string) error { return nil }

// AddWPA3Password is a no-op.
func (f *Fake) AddWPA3Password(string) error { return nil }

// AddWPAPMK is a no-op.
func (f *Fake) AddWPAPMK([]byte) error { return nil }

// SetWEPKey is a no-op.
func (f *Fake) SetWEPKey(int, string) error { return nil }

// SetRSSILowThreshold is a no-op.
func (f *Fake) SetRSSILowThreshold(int) error { return nil }

// ConfigBgscanAndRSSI is a no-op.
func (f *Fake) ConfigBgscanAndRSSI(string) error { return nil }

// SetPacketFilters is a no-op.
func (f *Fake) SetPacketFilters(driver.PacketFilter) error { return nil }

// SendNeighborRequest records the call.
func (f *Fake) SendNeighborRequest() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.NeighborRequestCalls++
	return nil
}

// SendBTMQuery records the call.
func (f *Fake) SendBTMQuery() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BTMQueryCalls++
	return nil
}

// SendBTMResponse records the target BSSID.
func (f *Fake) SendBTMResponse(bssid types.MAC) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BTMResponseCalls = append(f.BTMResponseCalls, bssid)
	return nil
}

// SendBTMReject records the call.
func (f *Fake) SendBTMReject() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BTMRejectCalls++
	return nil
}

// GetDeviceMAC returns the scripted DeviceMAC.
func (f *Fake) GetDeviceMAC() (types.MAC, error) { return f.DeviceMAC, nil }

// GetDeviceUAPMAC returns the scripted DeviceUAPMAC.
func (f *Fake) GetDeviceUAPMAC() (types.MAC, error) { return f.DeviceUAPMAC, nil }

// GetFWVersionExt returns the scripted FWVersion.
func (f *Fake) GetFWVersionExt() (string, error) { return f.FWVersion, nil }

// GetTSF returns a fixed timestamp.
func (f *Fake) GetTSF() (uint64, error) { return 0, nil }

// Deliver pushes an event onto the Bus as if firmware had emitted it.
func (f *Fake) Deliver(msg events.Message) {
	f.mu.Lock()
	bus := f.bus
	f.mu.Unlock()
	bus.Send(msg)
}
