package wcm

import (
	"time"

	"wcm/internal/driver"
	"wcm/internal/events"
	"wcm/internal/roam"
	"wcm/internal/scan"
	"wcm/internal/sta"
	"wcm/internal/store"
	"wcm/internal/types"
)

// dispatch is the control task's single dispatch switch (spec §4.1, §9:
// "the control task loop is `loop { match recv() { ... } }`"). It is the
// only place that mutates the STA/µAP/power-save sub-machines, so every
// case below runs to completion without blocking (spec §5).
func (h *Handle) dispatch(msg events.Message) {
	h.dispatchLocked(msg)
	h.syncAddrCache()
}

// syncAddrCache clears the cached STA/µAP addresses once their owning
// state machine has left the one state in which that address is valid,
// so GetAddress/GetUapAddress stop reporting a stale address after a
// disconnect or µAP stop (spec §6 get_address, §4.5, §4.6).
func (h *Handle) syncAddrCache() {
	if h.staSM.State() != types.STAConnected {
		h.clearSTAAddr()
	}
	if h.uapSM.State() != types.UAPIPUp {
		h.clearUAPAddr()
	}
	if h.met != nil {
		h.met.SignalStrength.Set(float64(h.staSM.CurrentSignalStrength()))
	}
}

func (h *Handle) dispatchLocked(msg events.Message) {
	switch msg.Tag {

	// User-request events.
	case events.TagUserConnect:
		idx, _ := msg.Data.(int)
		h.staSM.Connect(idx, time.Now())
		if h.staSM.State() != types.STAScanning {
			h.scanCo.Lock().Release()
		}

	case events.TagUserReassociate:
		idx := h.store.CurrentSTA()
		if idx == store.None {
			h.scanCo.Lock().Release()
			h.slog.Debugf("wcm: reassociate requested with no current network")
			return
		}
		h.staSM.Connect(idx, time.Now())
		if h.staSM.State() != types.STAScanning {
			h.scanCo.Lock().Release()
		}

	case events.TagUserDisconnect:
		h.staSM.Disconnect()

	case events.TagUserScan:
		params, _ := msg.Data.(scan.UserScanParams)
		if err := h.staSM.UserScan(params); err != nil {
			h.slog.Warnf("wcm: user scan failed: %v", err)
			h.scanCo.Lock().Release()
		}

	case events.TagStartNetwork:
		idx, _ := msg.Data.(int)
		h.uapSM.Start(idx)

	case events.TagStopNetwork:
		h.uapSM.Stop()

	case events.TagIeeePsOn:
		h.handlePSOn(h.psIEEE, msg)

	case events.TagIeeePsOff:
		h.handlePSOff(h.psIEEE)

	case events.TagDeepSleepPsOn:
		h.handlePSOn(h.psDeep, msg)

	case events.TagDeepSleepPsOff:
		h.handlePSOff(h.psDeep)

	case events.TagSendHostSleep:
		conditions, _ := msg.Data.(driver.WakeConditions)
		if err := h.hostSleep.SendHostSleep(conditions); err != nil {
			h.slog.Warnf("wcm: send_host_sleep failed: %v", err)
		}

	case events.TagCancelHostSleep:
		_ = h.hostSleep.SendHostSleep(driver.CancelHostSleep)

	case events.TagFTRoam:
		req, _ := msg.Data.(FTRoamRequest)
		h.roamScanPending = true
		if err := h.roamCo.FTRoam(req.BSSID, req.Channel); err != nil {
			h.slog.Warnf("wcm: ft_roam failed: %v", err)
			h.roamScanPending = false
			h.scanCo.Lock().Release()
		}

	case events.TagStop:
		// handled in run(); unreachable here.

	case events.TagDeinit:
		h.slog.Infof("wcm: deinit (%s) requested", msg.Reason)

	// Driver/firmware events.
	case events.TagScanResult:
		h.handleScanResult(msg)

	case events.TagScanFailure:
		h.handleScanFailure()

	case events.TagAssociation:
		r, _ := msg.Data.(sta.AssociationResult)
		h.staSM.HandleAssociation(r)

	case events.TagAuthentication:
		r, _ := msg.Data.(sta.AuthResult)
		h.staSM.HandleAuthentication(r)

	case events.TagDeauth:
		h.slog.Debugf("wcm: deauth ack received")

	case events.TagLinkLoss:
		h.staSM.HandleLinkLoss()

	case events.TagChanSwitchAnn:
		r, _ := msg.Data.(sta.ChanSwitchResult)
		h.staSM.HandleChanSwitchAnn(r)

	case events.TagUapStarted:
		h.uapSM.HandleUapStarted()

	case events.TagUapCmdResult:
		h.slog.Debugf("wcm: uap command ack received")

	case events.TagUapClientAssoc:
		mac, _ := msg.Data.(types.MAC)
		h.uapSM.HandleClientAssoc(mac)

	case events.TagUapClientDisassoc:
		mac, _ := msg.Data.(types.MAC)
		h.uapSM.HandleClientDisassoc(mac)

	case events.TagUapAddrConfig:
		addr, _ := msg.Data.([4]byte)
		h.setUAPAddr(addr)
		h.uapSM.HandleAddressConfig()

	case events.TagRSSILow:
		r, _ := msg.Data.(RSSILowEvent)
		h.roamCo.HandleRSSILow(r.SSID, r.Supports11k, r.Supports11v, func() {
			_ = h.drv.SetRSSILowThreshold(0)
		})

	case events.TagNeighborReport, events.TagBTMQueryResult:
		candidates, _ := msg.Data.([]roam.Candidate)
		req := h.roamCo.HandleNeighborReport(candidates)
		if h.scanCo.Lock().TryAcquire() {
			h.roamScanPending = true
			if err := h.scanCo.Issue(req); err != nil {
				h.slog.Warnf("wcm: neighbor-report scan issue failed: %v", err)
				h.roamScanPending = false
				h.scanCo.Lock().Release()
			}
		} else {
			h.slog.Debugf("wcm: neighbor-report scan dropped; scan lock busy")
		}

	case events.TagBgScanResult:
		// Firmware-autonomous background scan (spec §4.9 soft-roaming):
		// configured via ConfigBgscanAndRSSI outside the scan coordinator,
		// so its completion bypasses the scan lock entirely.
		candidates, _ := msg.Data.([]roam.Candidate)
		h.roamCo.HandleBgScanResult(candidates)

	case events.TagPSAwake:
		h.psForMode(msg).Awake()

	case events.TagPSSleep:
		h.psForMode(msg).Sleep()

	case events.TagPSSlpCfm:
		h.psForMode(msg).SlpCfm()

	case events.TagPSEnableDone:
		// Enable() already advanced to Configuring synchronously; this
		// ack needs no further action.

	case events.TagPSDisableDone:
		h.psForMode(msg).DisableDone()

	// IP-stack events.
	case events.TagNetAddrConfig:
		r, _ := msg.Data.(sta.NetAddrConfigResult)
		if r.Mode == types.AddrStatic {
			h.setSTAAddr(r.Addr)
		}
		h.staSM.HandleNetAddrConfig(r)

	case events.TagDhcpConfig:
		r, _ := msg.Data.(sta.DhcpResult)
		if r.OK {
			h.setSTAAddr(types.IPv4Config{Mode: types.AddrDHCP, Addr: r.IPv4})
		}
		h.staSM.HandleDhcpConfig(r)

	case events.TagLeaseRenewFail:
		h.staSM.HandleLeaseRenewFail()

	// Timers.
	case events.TagAssocPauseExpired:
		if idx, ok := h.staSM.TakePendingConnect(time.Now()); ok {
			if h.scanCo.Lock().TryAcquire() {
				h.staSM.Connect(idx, time.Now())
				if h.staSM.State() != types.STAScanning {
					h.scanCo.Lock().Release()
				}
			} else {
				h.slog.Debugf("wcm: latched connect for %d dropped; scan lock busy", idx)
			}
		}

	case events.TagNeighborReportTimeout:
		h.roamCo.HandleTimeout()

	case events.TagIeeePsSleepTimeout:
		// Synthesized internally by the conditional dequeue in run();
		// never arrives as a bus message.

	case events.TagReconnect:
		idx, _ := msg.Data.(int)
		if h.scanCo.Lock().TryAcquire() {
			h.staSM.Connect(idx, time.Now())
			if h.staSM.State() != types.STAScanning {
				h.scanCo.Lock().Release()
			}
		} else {
			h.slog.Debugf("wcm: reconnect for %d dropped; scan lock busy", idx)
		}

	default:
		h.slog.Debugf("wcm: unhandled event tag %d", msg.Tag)
	}
}

// handleScanResult processes a completed scan, releasing the scan lock
// per the release-once protocol of spec §4.3 once nothing further will
// consume this scan's results.
func (h *Handle) handleScanResult(msg events.Message) {
	entries, _ := msg.Data.([]types.ScanEntry)
	h.scanCo.SetResults(entries)

	if h.roamScanPending {
		h.roamScanPending = false
		h.scanCo.Lock().Release()
		h.roamCo.HandleNeighborScanComplete()
		return
	}

	h.staSM.HandleScanResult(entries)
	if h.staSM.State() != types.STAScanning {
		h.scanCo.Lock().Release()
	}
}

// handleScanFailure processes a scan command failure: always terminal for
// the in-flight scan (spec §4.10).
func (h *Handle) handleScanFailure() {
	if h.met != nil {
		h.met.ScanFailures.Inc()
	}
	if h.roamScanPending {
		h.roamScanPending = false
		h.scanCo.Lock().Release()
		return
	}
	h.staSM.HandleScanFailure()
	h.scanCo.Lock().Release()
}

func (h *Handle) handlePSOn(sm psSM, msg events.Message) {
	if !sm.Allowed() {
		h.slog.Warnf("wcm: power-save enable rejected in current state")
		return
	}
	if conditions, ok := msg.Data.(driver.WakeConditions); ok {
		sm.SetConditions(conditions)
	}
	if err := sm.Enable(); err != nil {
		h.slog.Warnf("wcm: power-save enable failed: %v", err)
	}
}

func (h *Handle) handlePSOff(sm psSM) {
	if err := sm.Disable(); err != nil {
		h.slog.Warnf("wcm: power-save disable failed: %v", err)
	}
}

// psSM is the subset of *powersave.SM the dispatcher drives generically
// across the IEEE-PS and deep-sleep-PS sub-machines.
type psSM interface {
	Allowed() bool
	SetConditions(driver.WakeConditions)
	Enable() error
	Disable() error
	Awake()
	Sleep()
	SlpCfm()
	DisableDone()
}

func (h *Handle) psForMode(msg events.Message) psSM {
	mode, _ := msg.Data.(types.PSMode)
	if mode == types.PSModeDeepSleep {
		return h.psDeep
	}
	return h.psIEEE
}
