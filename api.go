package wcm

import (
	"github.com/pkg/errors"

	"wcm/internal/driver"
	"wcm/internal/events"
	"wcm/internal/roam"
	"wcm/internal/scan"
	"wcm/internal/store"
	"wcm/internal/types"
	"wcm/internal/wcmerr"
)

// AddNetwork validates and stores a network profile (spec §6 add, §4.2).
// It returns the profile's index, used by Connect/StartNetwork.
func (h *Handle) AddNetwork(p types.Profile) (int, error) {
	return h.store.Add(p)
}

// RemoveNetwork deletes the named profile (spec §6 remove, §4.2). Refused
// while its interface is actively connected/started.
func (h *Handle) RemoveNetwork(name string) error {
	return h.store.Remove(name)
}

// GetNetwork returns the profile named name.
func (h *Handle) GetNetwork(name string) (types.Profile, error) {
	p, _, err := h.store.GetByName(name)
	return p, err
}

// GetNetworkByIndex returns the profile at idx.
func (h *Handle) GetNetworkByIndex(idx int) (types.Profile, error) {
	return h.store.GetByIndex(idx)
}

// NetworkCount returns the number of stored profiles.
func (h *Handle) NetworkCount() int {
	return h.store.Count()
}

// Connect enqueues a connect attempt against the profile at idx (spec §6
// connect, §4.5). It takes the scan lock synchronously, matching the
// source's "connect() blocks briefly to take sl_scan2_lock" behavior, so
// callers observe ErrState immediately when a scan is already in flight
// rather than discovering it later via a dropped callback.
func (h *Handle) Connect(idx int) error {
	if _, err := h.store.GetByIndex(idx); err != nil {
		return err
	}
	if !h.scanCo.Lock().TryAcquire() {
		return errors.Wrap(wcmerr.ErrState, "scan lock held by another operation")
	}
	h.bus.Send(events.Message{Tag: events.TagUserConnect, Data: idx})
	return nil
}

// Reassociate re-attempts connection to the presently-selected network
// (spec §6 reassociate).
func (h *Handle) Reassociate() error {
	if !h.scanCo.Lock().TryAcquire() {
		return errors.Wrap(wcmerr.ErrState, "scan lock held by another operation")
	}
	h.bus.Send(events.Message{Tag: events.TagUserReassociate})
	return nil
}

// Disconnect enqueues a user-initiated disconnect (spec §6 disconnect).
func (h *Handle) Disconnect() {
	h.bus.Send(events.Message{Tag: events.TagUserDisconnect})
}

// StartNetwork enqueues a µAP start against the profile at idx (spec §6
// start_network, §4.6).
func (h *Handle) StartNetwork(idx int) error {
	if _, err := h.store.GetByIndex(idx); err != nil {
		return err
	}
	h.bus.Send(events.Message{Tag: events.TagStartNetwork, Data: idx})
	return nil
}

// StopNetwork enqueues a µAP stop (spec §6 stop_network).
func (h *Handle) StopNetwork() {
	h.bus.Send(events.Message{Tag: events.TagStopNetwork})
}

// Scan enqueues a broadcast user scan across all networks (spec §6 scan).
func (h *Handle) Scan() error {
	return h.ScanWithOpt(scan.UserScanParams{})
}

// ScanWithOpt enqueues a constrained user scan (spec §6 scan_with_opt).
func (h *Handle) ScanWithOpt(params scan.UserScanParams) error {
	if !h.scanCo.Lock().TryAcquire() {
		return errors.Wrap(wcmerr.ErrState, "scan lock held by another operation")
	}
	h.bus.Send(events.Message{Tag: events.TagUserScan, Data: params})
	return nil
}

// GetScanResult returns the buffered result at index, callable only from
// within the EvtSuccess/EvtNetworkNotFound callback of a user scan (spec §6
// get_scan_result).
func (h *Handle) GetScanResult(index int) (types.ScanEntry, bool) {
	return h.scanCo.Result(index)
}

// GetScanResultCount returns the number of buffered scan results.
func (h *Handle) GetScanResultCount() int {
	return h.scanCo.Count()
}

// GetConnectionState returns the STA connection state (spec §6
// get_connection_state).
func (h *Handle) GetConnectionState() types.STAState {
	return h.staSM.State()
}

// GetUapConnectionState returns the µAP connection state (spec §6
// get_uap_connection_state).
func (h *Handle) GetUapConnectionState() types.UAPState {
	return h.uapSM.State()
}

// GetAddress returns the STA's currently-configured IPv4 address, if any
// (spec §6 get_address).
func (h *Handle) GetAddress() (types.IPv4Config, bool) {
	return h.getSTAAddr()
}

// GetUapAddress returns the µAP's currently-configured IPv4 address, if
// any (spec §6 get_uap_address).
func (h *Handle) GetUapAddress() ([4]byte, bool) {
	return h.getUAPAddr()
}

// GetCurrentNetwork returns the STA's current profile index, or
// store.None.
func (h *Handle) GetCurrentNetwork() int {
	return h.staSM.CurrentNetwork()
}

// GetCurrentUapNetwork returns the µAP's current profile index, or
// store.None.
func (h *Handle) GetCurrentUapNetwork() int {
	return h.uapSM.CurrentNetwork()
}

// GetCurrentChannel returns the STA's current channel.
func (h *Handle) GetCurrentChannel() int {
	return h.staSM.CurrentChannel()
}

// GetCurrentUapChannel returns the µAP's current channel.
func (h *Handle) GetCurrentUapChannel() int {
	return h.uapSM.CurrentChannel()
}

// GetCurrentBSSID returns the STA's current BSSID.
func (h *Handle) GetCurrentBSSID() types.MAC {
	return h.staSM.CurrentBSSID()
}

// GetCurrentSignalStrength returns the RSSI, in dBm, observed for the
// current association at scan time (spec §6 get_current_signal_strength).
func (h *Handle) GetCurrentSignalStrength() int {
	return h.staSM.CurrentSignalStrength()
}

// IeeepsOn enqueues enabling IEEE power-save, only meaningful while the
// STA is Connected (spec §6 ieeeps_on).
func (h *Handle) IeeepsOn(conditions driver.WakeConditions) {
	h.bus.Send(events.Message{Tag: events.TagIeeePsOn, Data: conditions})
}

// IeeepsOff enqueues disabling IEEE power-save (spec §6 ieeeps_off).
func (h *Handle) IeeepsOff() {
	h.bus.Send(events.Message{Tag: events.TagIeeePsOff})
}

// DeepsleeppsOn enqueues enabling deep-sleep power-save, only meaningful
// while the STA is disconnected and the µAP is not running (spec §6
// deepsleepps_on).
func (h *Handle) DeepsleeppsOn(conditions driver.WakeConditions) {
	h.bus.Send(events.Message{Tag: events.TagDeepSleepPsOn, Data: conditions})
}

// DeepsleeppsOff enqueues disabling deep-sleep power-save (spec §6
// deepsleepps_off).
func (h *Handle) DeepsleeppsOff() {
	h.bus.Send(events.Message{Tag: events.TagDeepSleepPsOff})
}

// SendHostSleep enqueues a host-sleep configuration request (spec §6
// send_host_sleep, §4.8). The idempotence/conflict law is enforced
// synchronously by internal/hostsleep so this call can report the error
// immediately rather than via a later callback.
func (h *Handle) SendHostSleep(conditions driver.WakeConditions) error {
	return h.hostSleep.SendHostSleep(conditions)
}

// CancelHostSleep cancels a prior host-sleep configuration (spec §6
// cancel_host_sleep).
func (h *Handle) CancelHostSleep() error {
	return h.hostSleep.SendHostSleep(driver.CancelHostSleep)
}

// ConfigHostSleep reports the currently-latched host-sleep conditions, if
// any (spec §6 config_host_sleep as a query form).
func (h *Handle) ConfigHostSleep() (driver.WakeConditions, bool) {
	return h.hostSleep.Configured()
}

// SetReassocControl toggles whether terminal connect failures enqueue a
// bounded auto-reconnect (spec §6 set_reassoc_control).
func (h *Handle) SetReassocControl(enabled bool) {
	h.staSM.SetReassocControl(enabled)
}

// SetRSSILowThreshold arms the firmware's RSSI-low notification threshold,
// the trigger for the roam priority chain (spec §6, §4.9).
func (h *Handle) SetRSSILowThreshold(threshold int) error {
	return h.drv.SetRSSILowThreshold(threshold)
}

// SetRoaming toggles soft (background-scan-driven) roaming (spec §6
// set_roaming, §4.9).
func (h *Handle) SetRoaming(enabled bool) {
	h.roamCo.SetSoftRoaming(enabled)
}

// SetFTCapable records whether the STA's current security is FT-capable,
// gating FTRoam (spec §4.9).
func (h *Handle) SetFTCapable(capable bool) {
	h.staSM.SetFTCapable(capable)
	h.roamCo.SetFTCapable(capable)
}

// FTRoam enqueues a fast-transition roam to bssid/channel (spec §6
// ft_roam, §4.9). Meaningful only when the current security is FT-capable.
func (h *Handle) FTRoam(bssid types.MAC, channel int) error {
	if !h.scanCo.Lock().TryAcquire() {
		return errors.Wrap(wcmerr.ErrState, "scan lock held by another operation")
	}
	h.bus.Send(events.Message{Tag: events.TagFTRoam, Data: FTRoamRequest{BSSID: bssid, Channel: channel}})
	return nil
}

// roam.Candidate is re-exported under the package's own name so embedders
// delivering 11k/11v driver events don't need to import internal/roam.
type Candidate = roam.Candidate

// UserScanParams is re-exported so embedders building Scan/ScanWithOpt
// requests don't need to import internal/scan.
type UserScanParams = scan.UserScanParams

// None is the "no current network" sentinel returned by GetCurrentNetwork
// and GetCurrentUapNetwork.
const None = store.None
