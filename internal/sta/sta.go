// Package sta implements the STA State Machine (spec §4.5): the
// scan/associate/authenticate/address-acquire pipeline, rescan/reassoc
// policy, and the failure semantics of spec §4.10.
package sta

import (
	"time"

	"go.uber.org/zap"

	"wcm/internal/config"
	"wcm/internal/driver"
	"wcm/internal/events"
	"wcm/internal/match"
	"wcm/internal/metrics"
	"wcm/internal/policy"
	"wcm/internal/scan"
	"wcm/internal/store"
	"wcm/internal/types"
)

// Callback is the upward event publisher (spec §6).
type Callback func(types.CallbackEvent)

// SM is the STA state machine. It is driven exclusively by the control
// task; every exported method must be called from that single goroutine
// (spec §4.1, §5).
type SM struct {
	cfg      config.Config
	drv      driver.Driver
	store    *store.Store
	scanCo   *scan.Coordinator
	bus      *events.Bus
	cb       Callback
	metrics  *metrics.Metrics
	slog     *zap.SugaredLogger
	regAllowed match.RegulatoryAllowed

	state types.STAState

	rescan     *policy.Counter
	reconnect  *policy.Counter
	assocPause *policy.AssocPause
	ftCapable  bool

	networkIdx  int
	currentBSS  types.MAC
	currentChan int
	currentRSSI int

	ipv6Connected bool
	reassocControl bool

	// connectWakeLock mirrors spec §3's "connect wake-lock": taken at
	// connect-start, released at first of {connected, connect-failed,
	// DHCP-done}. Modeled as a bool since the only consumer in this
	// repo is the invariant check in tests; a real embedder would wire
	// it to a platform wakelock API external to this core.
	connectWakeLock bool
}

// Params bundles the collaborators an SM needs.
type Params struct {
	Cfg        config.Config
	Driver     driver.Driver
	Store      *store.Store
	ScanCo     *scan.Coordinator
	Bus        *events.Bus
	Callback   Callback
	Metrics    *metrics.Metrics
	Log        *zap.SugaredLogger
	RegAllowed match.RegulatoryAllowed
}

// New returns an SM in the Idle state.
func New(p Params) *SM {
	return &SM{
		cfg:        p.Cfg,
		drv:        p.Driver,
		store:      p.Store,
		scanCo:     p.ScanCo,
		bus:        p.Bus,
		cb:         p.Callback,
		metrics:    p.Metrics,
		slog:       p.Log,
		regAllowed: p.RegAllowed,
		state:      types.STAIdle,
		rescan:     policy.NewCounter(p.Cfg.EffectiveRescanLimit()),
		reconnect:  policy.NewCounter(p.Cfg.ReconnectLimit),
		assocPause: policy.NewAssocPause(p.Cfg.AssocPauseDuration),
		networkIdx: store.None,
	}
}

// State returns the current connection state (spec §6 get_connection_state).
func (s *SM) State() types.STAState { return s.state }

// CurrentNetwork returns the current profile index, or store.None.
func (s *SM) CurrentNetwork() int { return s.networkIdx }

// CurrentBSSID returns the BSSID of the current association.
func (s *SM) CurrentBSSID() types.MAC { return s.currentBSS }

// CurrentChannel returns the channel of the current association.
func (s *SM) CurrentChannel() int { return s.currentChan }

// CurrentSignalStrength returns the RSSI, in dBm, observed for the current
// association at scan time (spec §6 get_current_signal_strength).
func (s *SM) CurrentSignalStrength() int { return s.currentRSSI }

// SetReassocControl toggles whether terminal failures enqueue a bounded
// auto-reconnect (spec §6 set_reassoc_control).
func (s *SM) SetReassocControl(enabled bool) { s.reassocControl = enabled }

// SetFTCapable records whether the current security is FT-capable, gating
// ft_roam (spec §4.9).
func (s *SM) SetFTCapable(capable bool) { s.ftCapable = capable }

func (s *SM) publish(ev types.UserEvent, reason string) {
	s.cb(types.CallbackEvent{Event: ev, Reason: reason})
}

func (s *SM) transition(to types.STAState) {
	s.slog.Debugf("sta: %s -> %s", s.state, to)
	s.state = to
	if s.metrics != nil {
		s.metrics.STAState.Set(float64(to))
	}
}

func (s *SM) releaseConnectWakeLock() {
	s.connectWakeLock = false
}

// Connect starts (or restarts) a connect attempt against the profile at
// idx (spec §4.5 table: "Idle -- UserConnect(idx) -- assoc not paused").
// It is invoked by the control task after the public API's connect() has
// already taken the scan lock.
func (s *SM) Connect(idx int, now time.Time) {
	if s.assocPause.Armed(now) {
		s.assocPause.Latch(policy.PendingConnect{NetworkIdx: idx})
		s.slog.Infof("sta: connect to %d latched during assoc pause", idx)
		return
	}

	if s.state >= types.STAAssociating {
		// Connect-in-progress connect: deauth current BSSID first
		// (spec §4.5).
		if !s.currentBSS.IsZero() {
			_ = s.drv.Deauthenticate(s.currentBSS)
		}
	}

	s.networkIdx = idx
	s.store.SetCurrentSTA(idx)
	s.connectWakeLock = true
	s.rescan.Reset()
	s.doScan()
}

func (s *SM) doScan() {
	p, err := s.store.GetByIndex(s.networkIdx)
	if err != nil {
		s.failConnect(types.EvtConnectFailed, "profile removed")
		return
	}
	req := scan.ConnectScan(p)
	if err := s.scanCo.Issue(req); err != nil {
		s.slog.Warnf("sta: scan issue failed: %v", err)
		s.failConnect(types.EvtConnectFailed, "scan command failed")
		return
	}
	if s.metrics != nil {
		s.metrics.ScansIssued.Inc()
	}
	s.transition(types.STAScanning)
}

// UserScan starts a user-initiated scan (spec §4.5 table: "Idle --
// UserScan(params)").
func (s *SM) UserScan(params scan.UserScanParams) error {
	req := scan.BuildUserScan(params)
	if err := s.scanCo.Issue(req); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ScansIssued.Inc()
	}
	s.transition(types.STAScanningUser)
	return nil
}

// HandleScanResult processes a completed scan (spec §4.5/§4.4).
// lock is released by the caller (the control task) after this returns,
// per the scan lock's release-once protocol (spec §4.3).
func (s *SM) HandleScanResult(entries []types.ScanEntry) {
	s.scanCo.SetResults(entries)

	switch s.state {
	case types.STAScanningUser:
		s.transition(types.STAIdle)
		if len(entries) == 0 {
			s.publish(types.EvtNetworkNotFound, "user scan")
		} else {
			s.publish(types.EvtSuccess, "user scan")
		}
		return
	case types.STAScanning:
		// fall through to the connect-scan handling below
	default:
		s.slog.Debugf("sta: ignoring ScanResult in state %s", s.state)
		return
	}

	p, err := s.store.GetByIndex(s.networkIdx)
	if err != nil {
		s.failConnect(types.EvtConnectFailed, "profile removed")
		return
	}

	sel := match.Select(p, entries, s.regAllowed)
	if sel.Best != nil {
		s.startAssociation(p, *sel.Best)
		return
	}

	if len(sel.HiddenChannels) > 0 {
		req := scan.HiddenFollowupScan(p, sel.HiddenChannels)
		if err := s.scanCo.Issue(req); err != nil {
			s.failConnect(types.EvtConnectFailed, "hidden follow-up scan failed")
			return
		}
		if s.metrics != nil {
			s.metrics.ScansIssued.Inc()
		}
		s.transition(types.STAScanning)
		return
	}

	n, exceeded := s.rescan.Tick()
	if s.metrics != nil {
		s.metrics.RescanAttempts.Inc()
	}
	if exceeded {
		s.slog.Infof("sta: rescan budget (%d) exhausted for network %d", n-1, s.networkIdx)
		s.networkNotFound()
		return
	}
	s.doScan()
}

// TakePendingConnect returns a connect request latched during an
// assoc-pause window, once that window has elapsed (spec §3, §4.5, §8
// scenario 4: "after 60s the latched connect runs exactly once").
func (s *SM) TakePendingConnect(now time.Time) (int, bool) {
	if s.assocPause.Armed(now) {
		return 0, false
	}
	p, ok := s.assocPause.TakePending()
	if !ok {
		return 0, false
	}
	return p.NetworkIdx, true
}

// HandleScanFailure processes a scan command failure. It is terminal for
// the in-flight connect attempt (spec §4.10: "Scan command failure is
// terminal for the in-flight scan: release the lock, emit ConnectFailed,
// return to Idle."); the scan lock itself is released by the caller.
func (s *SM) HandleScanFailure() {
	switch s.state {
	case types.STAScanningUser:
		s.transition(types.STAIdle)
	case types.STAScanning:
		s.failConnect(types.EvtConnectFailed, "scan command failed")
	default:
		s.slog.Debugf("sta: ignoring ScanFailure in state %s", s.state)
	}
}

// ReassociateTo drives a roam-triggered reassociation to bssid/channel
// using the currently-connected profile's security, optionally with the
// ft_bss flag set to tell firmware/supplicant to skip the 4-way handshake
// (spec §4.9).
func (s *SM) ReassociateTo(bssid types.MAC, channel int, ft bool) {
	p, err := s.store.GetByIndex(s.networkIdx)
	if err != nil {
		s.slog.Warnf("sta: roam reassociate: profile %d not found", s.networkIdx)
		return
	}
	req := driver.AssocRequest{
		BSSID:    bssid,
		Channel:  channel,
		Security: p.Security,
		FT:       ft,
	}
	if err := s.drv.Associate(req); err != nil {
		s.slog.Warnf("sta: roam associate command failed: %v", err)
		s.failAssociation()
		return
	}
	s.currentBSS = bssid
	s.currentChan = channel
	s.transition(types.STAAssociating)
}

func (s *SM) startAssociation(p types.Profile, e types.ScanEntry) {
	p = match.ApplyDiscovered(p, e)
	_ = s.store.Update(s.networkIdx, p)

	req := driver.AssocRequest{
		BSSID:    e.BSSID,
		Channel:  e.Channel,
		Security: p.Security,
		TKIPOnly: p.Security.Type == types.SecurityWPA && e.SecurityBits.Has(types.CipherTKIP) && !e.SecurityBits.Any(types.CipherCCMP),
		OWETrans: e.OWETransition,
	}
	if err := s.drv.Associate(req); err != nil {
		s.slog.Warnf("sta: associate command failed: %v", err)
		s.failAssociation()
		return
	}
	s.currentBSS = e.BSSID
	s.currentChan = e.Channel
	s.currentRSSI = e.RSSI
	s.transition(types.STAAssociating)
}

// HandleAssociation processes a completed association attempt
// (spec §4.5 table).
func (s *SM) HandleAssociation(r AssociationResult) {
	if s.state != types.STAAssociating {
		s.slog.Debugf("sta: ignoring Association event in state %s", s.state)
		return
	}
	if r.OK {
		s.transition(types.STAAssociated)
		return
	}
	s.failAssociation()
}

func (s *SM) failAssociation() {
	n, exceeded := s.rescan.Tick()
	if s.metrics != nil {
		s.metrics.RescanAttempts.Inc()
	}
	if exceeded {
		s.slog.Infof("sta: association retries (%d) exhausted", n-1)
		s.networkNotFound()
		return
	}
	s.doScan()
}

// HandleAuthentication processes the post-association authentication
// outcome (spec §4.5 table).
func (s *SM) HandleAuthentication(r AuthResult) {
	if s.state != types.STAAssociated {
		s.slog.Debugf("sta: ignoring Authentication event in state %s", s.state)
		return
	}

	if !r.OK {
		if r.MIC {
			s.assocPause.Arm(time.Now())
			if s.metrics != nil {
				s.metrics.AssocPauseArmed.Inc()
			}
			d := s.cfg.AssocPauseDuration
			time.AfterFunc(d, func() {
				s.bus.TrySend(events.Message{Tag: events.TagAssocPauseExpired})
			})
			s.publish(types.EvtNetworkAuthFailed, "MIC failure")
			s.teardown()
			return
		}
		s.publish(types.EvtNetworkAuthFailed, "authentication failed")
		s.maybeReconnect()
		s.teardown()
		return
	}

	s.publish(types.EvtAuthSuccess, "")

	if r.SameESSFTRoam {
		s.releaseConnectWakeLock()
		s.publish(types.EvtSuccess, "")
		s.transition(types.STAConnected)
		return
	}

	if _, err := s.store.GetByIndex(s.networkIdx); err != nil {
		s.teardown()
		return
	}
	// The actual address configuration result arrives later as a
	// separate NetAddrConfig event from the IP stack (spec §4.5).
	s.transition(types.STARequestingAddress)
}

// HandleNetAddrConfig processes address-configuration completion
// (spec §4.5 table).
func (s *SM) HandleNetAddrConfig(r NetAddrConfigResult) {
	if s.state != types.STARequestingAddress {
		s.slog.Debugf("sta: ignoring NetAddrConfig event in state %s", s.state)
		return
	}
	if r.Mode == types.AddrStatic {
		s.configureDNS()
		s.releaseConnectWakeLock()
		s.publish(types.EvtSuccess, "")
		s.transition(types.STAConnected)
		return
	}
	s.transition(types.STAObtainingAddress)
}

func (s *SM) configureDNS() {
	// DNS configuration is forwarded to the out-of-scope IP stack; no
	// further action is owned by the core (spec §1).
}

// HandleDhcpConfig processes DHCP lease completion (spec §4.5 table).
func (s *SM) HandleDhcpConfig(r DhcpResult) {
	if s.state != types.STAObtainingAddress {
		s.slog.Debugf("sta: ignoring DhcpConfig event in state %s", s.state)
		return
	}
	if r.OK {
		s.configureDNS()
		s.releaseConnectWakeLock()
		s.publish(types.EvtAddressSuccess, "")
		s.publish(types.EvtSuccess, "")
		s.transition(types.STAConnected)
		return
	}

	// DHCP failure is non-fatal if IPv6 is already connected; the
	// interface stays up (spec §4.5, §4.10).
	if s.ipv6Connected {
		s.slog.Infof("sta: DHCP failed but IPv6 is connected; staying up")
		s.releaseConnectWakeLock()
		return
	}
	s.publish(types.EvtAddressFailed, "")
	s.maybeReconnect()
	s.teardown()
}

// SetIPv6Connected records whether IPv6 is up, gating DHCP-failure
// severity (spec §4.5) and lease-renew-failure handling (spec §4.5 table).
func (s *SM) SetIPv6Connected(up bool) { s.ipv6Connected = up }

// HandleLinkLoss processes a link-loss event while Connected (spec §4.5
// table); channel-switch announcements go through HandleChanSwitchAnn.
func (s *SM) HandleLinkLoss() {
	if s.state != types.STAConnected {
		return
	}
	_ = s.drv.Deauthenticate(s.currentBSS)
	s.publish(types.EvtLinkLost, "")
	s.maybeReconnect()
	s.teardown()
}

// HandleChanSwitchAnn processes an 802.11 channel-switch announcement
// (spec §4.5: "When not ECSA-aware, deauth and return to Idle. When
// ECSA-aware and msg carries new channel, update the stored channel and
// remain Connected.").
func (s *SM) HandleChanSwitchAnn(r ChanSwitchResult) {
	if s.state != types.STAConnected {
		return
	}
	if r.ECSAAware && r.NewChannel != 0 {
		s.currentChan = r.NewChannel
		s.publish(types.EvtChanSwitch, "")
		return
	}
	_ = s.drv.Deauthenticate(s.currentBSS)
	s.publish(types.EvtChanSwitch, "not ECSA-aware")
	s.teardown()
}

// HandleLeaseRenewFail processes a DHCP lease-renewal failure while
// Connected (spec §4.5 table: "IPv6 not up -- teardown").
func (s *SM) HandleLeaseRenewFail() {
	if s.state != types.STAConnected {
		return
	}
	if s.ipv6Connected {
		return
	}
	_ = s.drv.Deauthenticate(s.currentBSS)
	s.teardown()
}

// Disconnect handles a user-initiated disconnect from any state
// >= Associating (spec §4.5 table).
func (s *SM) Disconnect() {
	if s.state < types.STAAssociating {
		s.transition(types.STAIdle)
		return
	}
	if !s.currentBSS.IsZero() {
		_ = s.drv.Deauthenticate(s.currentBSS)
	}
	s.publish(types.EvtUserDisconnect, "")
	s.teardown()
}

func (s *SM) networkNotFound() {
	s.publish(types.EvtNetworkNotFound, "")
	s.maybeReconnect()
	s.teardown()
}

func (s *SM) failConnect(ev types.UserEvent, reason string) {
	s.publish(ev, reason)
	s.teardown()
}

// maybeReconnect enqueues a bounded auto-reconnect if reassoc-control is
// enabled (spec §4.5, §4.10).
func (s *SM) maybeReconnect() {
	if !s.reassocControl {
		return
	}
	_, exceeded := s.reconnect.Tick()
	if exceeded {
		s.slog.Infof("sta: reconnect budget exhausted for network %d", s.networkIdx)
		return
	}
	if s.metrics != nil {
		s.metrics.ReconnectAttempts.Inc()
	}
	idx := s.networkIdx
	s.bus.TrySend(events.Message{Tag: events.TagReconnect, Data: idx})
}

// teardown returns the STA to Idle, clearing per-attempt state (spec §3:
// "current_network_idx is... cleared on disconnect").
func (s *SM) teardown() {
	s.releaseConnectWakeLock()
	s.networkIdx = store.None
	s.store.SetCurrentSTA(store.None)
	s.currentBSS = types.MAC{}
	s.currentChan = 0
	s.currentRSSI = 0
	s.transition(types.STAIdle)

	if p, ok := s.assocPause.TakePending(); ok {
		idx := p.NetworkIdx
		s.bus.TrySend(events.Message{Tag: events.TagReconnect, Data: idx})
	}
}
