// Package wcm is the Wi-Fi Connection Manager core of spec.md: a
// single-control-task daemon library that drives an attached Wi-Fi radio's
// STA and µAP virtual interfaces through a merged event queue.
//
// The source's single global "wlan" struct (spec §9) becomes a Handle
// here: a struct owned exclusively by the control task goroutine started
// by Start, with public methods that either enqueue a request on the
// event bus and return, or read fields that are single-writer from the
// control task's perspective (cached MAC/version, current-network
// snapshots).
package wcm

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"wcm/internal/config"
	"wcm/internal/driver"
	"wcm/internal/events"
	"wcm/internal/hostsleep"
	"wcm/internal/match"
	"wcm/internal/metrics"
	"wcm/internal/powersave"
	"wcm/internal/roam"
	"wcm/internal/scan"
	"wcm/internal/sta"
	"wcm/internal/store"
	"wcm/internal/types"
	"wcm/internal/uap"
	"wcm/internal/wcmerr"
)

// Callback is the upward event publisher registered with Start (spec §6).
type Callback func(types.CallbackEvent)

// DeinitAction selects how Deinit releases the driver (spec §6 deinit).
type DeinitAction int

// Deinit actions.
const (
	DeinitNormal DeinitAction = iota
	DeinitReset
)

// RSSILowEvent is the Data payload of events.TagRSSILow.
type RSSILowEvent struct {
	SSID        string
	Supports11k bool
	Supports11v bool
}

// FTRoamRequest is the Data payload of events.TagFTRoam.
type FTRoamRequest struct {
	BSSID   types.MAC
	Channel int
}

// Params bundles the collaborators a Handle needs.
type Params struct {
	Cfg config.Config
	// Driver is the downward firmware/driver contract (spec §6). Must be
	// non-nil.
	Driver driver.Driver
	// Log is the base logger; if nil, a no-op logger is used.
	Log *zap.SugaredLogger
	// Registerer receives the Prometheus collectors if non-nil.
	Registerer prometheus.Registerer
	// Allowed reports the active 11d regulatory policy; defaults to
	// defaultRegulatoryAllowed if nil.
	Allowed match.RegulatoryAllowed
}

// Handle is the WCM core (spec §9). Construct with New, then Init and
// Start.
type Handle struct {
	cfg  config.Config
	drv  driver.Driver
	slog *zap.SugaredLogger
	met  *metrics.Metrics

	bus    *events.Bus
	store  *store.Store
	scanCo *scan.Coordinator

	staSM     *sta.SM
	uapSM     *uap.SM
	psIEEE    *powersave.SM
	psDeep    *powersave.SM
	roamCo    *roam.Coordinator
	hostSleep *hostsleep.Coordinator

	mu          sync.Mutex
	cb          Callback
	deviceMAC   types.MAC
	uapMAC      types.MAC
	fwVersion   string
	initialized bool

	staAddr   types.IPv4Config
	staAddrOK bool
	uapAddr   [4]byte
	uapAddrOK bool

	// roamScanPending marks a directed scan issued on behalf of the roam
	// coordinator (neighbor-report or FT) rather than the STA SM's own
	// connect-scan pipeline, so TagScanResult/TagScanFailure know who
	// owns the in-flight scan and whose state to advance (spec §4.9).
	roamScanPending bool

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New allocates a Handle. It does not start the control task; call Init
// then Start.
func New(p Params) (*Handle, error) {
	if p.Driver == nil {
		return nil, errors.Wrap(wcmerr.ErrParam, "driver is required")
	}
	cfg := p.Cfg
	if cfg.MaxProfiles == 0 {
		cfg = config.Default()
	}
	slog := p.Log
	if slog == nil {
		slog = zap.NewNop().Sugar()
	}
	allowed := p.Allowed
	if allowed == nil {
		allowed = defaultRegulatoryAllowed
	}

	met := metrics.New()
	if p.Registerer != nil {
		if err := met.Register(p.Registerer); err != nil {
			return nil, errors.Wrap(err, "registering metrics")
		}
	}

	h := &Handle{
		cfg:  cfg,
		drv:  p.Driver,
		slog: slog,
		met:  met,
	}

	h.bus = events.New(cfg.EventQueueCapacity)
	h.scanCo = scan.New(p.Driver)

	busy := func(role types.Role) bool {
		if role == types.RoleSTA {
			return h.staSM != nil && h.staSM.State() >= types.STAAssociating
		}
		return h.uapSM != nil && h.uapSM.State() >= types.UAPConfigured
	}
	h.store = store.New(cfg.MaxProfiles, busy)

	cbSTA := func(e types.CallbackEvent) { h.dispatchCallback(e) }
	cbUAP := func(e types.CallbackEvent) { h.dispatchCallback(e) }
	cbPSIEEE := func(e types.CallbackEvent) { h.dispatchCallback(e) }
	cbPSDeep := func(e types.CallbackEvent) { h.dispatchCallback(e) }
	cbRoam := func(e types.CallbackEvent) { h.dispatchCallback(e) }

	h.staSM = sta.New(sta.Params{
		Cfg:        cfg,
		Driver:     p.Driver,
		Store:      h.store,
		ScanCo:     h.scanCo,
		Bus:        h.bus,
		Callback:   cbSTA,
		Metrics:    met,
		Log:        slog,
		RegAllowed: allowed,
	})

	h.uapSM = uap.New(uap.Params{
		Driver:   p.Driver,
		Store:    h.store,
		Callback: cbUAP,
		Metrics:  met,
		Log:      slog,
		STAChannel: func() (int, bool) {
			st := h.staSM.State()
			if st == types.STAAssociated || st == types.STAConnected ||
				st == types.STARequestingAddress || st == types.STAObtainingAddress {
				return h.staSM.CurrentChannel(), true
			}
			return 0, false
		},
		Allowed: AllowedChannelList,
	})

	h.psIEEE = powersave.New(powersave.Params{
		Mode:     types.PSModeIEEE,
		Driver:   p.Driver,
		Callback: cbPSIEEE,
		Gate:     func() bool { return h.staSM.State() == types.STAConnected },
		Addr:     h.psAddrSource,
	})
	h.psDeep = powersave.New(powersave.Params{
		Mode:     types.PSModeDeepSleep,
		Driver:   p.Driver,
		Callback: cbPSDeep,
		Gate:     func() bool { return h.staSM.State() != types.STAConnected },
		Addr:     h.psAddrSource,
	})

	h.hostSleep = hostsleep.New(p.Driver, h.staAddrSource, h.uapAddrSource)

	h.roamCo = roam.New(roam.Params{
		Driver:   p.Driver,
		ScanCo:   h.scanCo,
		Bus:      h.bus,
		Log:      slog,
		Metrics:  met,
		Callback: cbRoam,
		Reassociate: func(bssid types.MAC, channel int) {
			h.staSM.ReassociateTo(bssid, channel, false)
		},
		FTRoam: func(bssid types.MAC, channel int) {
			h.staSM.ReassociateTo(bssid, channel, true)
		},
		CurrentBSSID:          h.staSM.CurrentBSSID,
		BgScanLimit:           cfg.BgScanLimit,
		NeighborReportTimeout: cfg.NeighborReportTimeout,
	})

	return h, nil
}

func (h *Handle) psAddrSource() (driver.Iface, [4]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.staAddrOK {
		return driver.IfaceSTA, h.staAddr.Addr, true
	}
	if h.uapAddrOK {
		return driver.IfaceUAP, h.uapAddr, true
	}
	return driver.IfaceSTA, [4]byte{}, false
}

func (h *Handle) staAddrSource() (driver.Iface, [4]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.staSM.State() == types.STAConnected && h.staAddrOK {
		return driver.IfaceSTA, h.staAddr.Addr, true
	}
	return driver.IfaceSTA, [4]byte{}, false
}

func (h *Handle) uapAddrSource() (driver.Iface, [4]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.uapSM.State() == types.UAPIPUp {
		return driver.IfaceUAP, h.uapAddr, true
	}
	return driver.IfaceUAP, [4]byte{}, false
}

func (h *Handle) setSTAAddr(cfg types.IPv4Config) {
	h.mu.Lock()
	h.staAddr = cfg
	h.staAddrOK = true
	h.mu.Unlock()
}

func (h *Handle) clearSTAAddr() {
	h.mu.Lock()
	h.staAddrOK = false
	h.mu.Unlock()
}

func (h *Handle) setUAPAddr(addr [4]byte) {
	h.mu.Lock()
	h.uapAddr = addr
	h.uapAddrOK = true
	h.mu.Unlock()
}

func (h *Handle) clearUAPAddr() {
	h.mu.Lock()
	h.uapAddrOK = false
	h.mu.Unlock()
}

func (h *Handle) getSTAAddr() (types.IPv4Config, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.staAddr, h.staAddrOK
}

func (h *Handle) getUAPAddr() ([4]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.uapAddr, h.uapAddrOK
}

// Init fetches and caches the device MAC addresses and firmware version
// (spec §6 init). It is one-shot; calling it again returns ErrState.
func (h *Handle) Init(fwImage []byte, length int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialized {
		return errors.Wrap(wcmerr.ErrState, "already initialized")
	}

	mac, err := h.drv.GetDeviceMAC()
	if err != nil {
		return errors.Wrap(err, "get device MAC")
	}
	uapMAC, err := h.drv.GetDeviceUAPMAC()
	if err != nil {
		return errors.Wrap(err, "get device µAP MAC")
	}
	ver, err := h.drv.GetFWVersionExt()
	if err != nil {
		return errors.Wrap(err, "get firmware version")
	}

	h.deviceMAC = mac
	h.uapMAC = uapMAC
	h.fwVersion = ver
	h.initialized = true
	return nil
}

// DeviceMAC returns the cached STA device MAC address.
func (h *Handle) DeviceMAC() types.MAC {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.deviceMAC
}

// DeviceUAPMAC returns the cached µAP device MAC address.
func (h *Handle) DeviceUAPMAC() types.MAC {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.uapMAC
}

// FirmwareVersion returns the cached firmware version string.
func (h *Handle) FirmwareVersion() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fwVersion
}

// Start starts the control task (spec §6 start). Rejected if already
// running.
func (h *Handle) Start(cb Callback) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return errors.Wrap(wcmerr.ErrState, "already running")
	}
	h.running = true
	h.cb = cb
	h.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.wg.Add(1)
	go h.run(ctx)

	h.dispatchCallback(types.CallbackEvent{Event: types.EvtInitialized})
	return nil
}

// Stop tears down the control task: deauths the STA, stops the µAP, and
// joins the control task goroutine with a watchdog (spec §6 stop).
func (h *Handle) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return errors.Wrap(wcmerr.ErrState, "not running")
	}
	h.mu.Unlock()

	h.bus.Send(events.Message{Tag: events.TagStop})

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(h.cfg.StopWatchdog):
		h.slog.Warnf("wcm: stop watchdog (%s) expired; cancelling control task", h.cfg.StopWatchdog)
		h.cancel()
		<-done
	}

	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
	return nil
}

// Deinit releases the driver. It may be called from user context; it is
// queued onto the control task like any other request (spec §6 deinit).
func (h *Handle) Deinit(action DeinitAction) {
	h.bus.Send(events.Message{Tag: events.TagDeinit, Reason: deinitReason(action)})
}

func deinitReason(a DeinitAction) string {
	if a == DeinitReset {
		return "reset"
	}
	return "normal"
}

// run is the control task loop (spec §4.1): a conditional dequeue with an
// infinite timeout, or a short fixed timeout while a sleep-confirm retry
// is pending, in which case the timeout synthesizes an IEEE-PS "sleep"
// retry event.
func (h *Handle) run(ctx context.Context) {
	defer h.wg.Done()
	for {
		var msg events.Message
		var ok bool

		if h.psIEEE.SleepConfirmPending() || h.psDeep.SleepConfirmPending() {
			var timedOut bool
			msg, ok, timedOut = h.bus.RecvTimeout(ctx, h.cfg.SleepConfirmRetry)
			if timedOut {
				h.psIEEE.RetrySleepConfirm()
				h.psDeep.RetrySleepConfirm()
				continue
			}
		} else {
			msg, ok = h.bus.Recv(ctx)
		}

		if !ok {
			return
		}

		if msg.Tag == events.TagStop {
			h.teardownOnStop()
			return
		}

		h.dispatch(msg)
	}
}

func (h *Handle) teardownOnStop() {
	h.staSM.Disconnect()
	h.uapSM.Stop()
}

func (h *Handle) dispatchCallback(e types.CallbackEvent) {
	if h.met != nil {
		switch e.Event {
		case types.EvtPSEnter:
			h.met.PSEnter.WithLabelValues(e.PSMode.String()).Inc()
		case types.EvtPSExit:
			h.met.PSExit.WithLabelValues(e.PSMode.String()).Inc()
		}
	}

	h.mu.Lock()
	cb := h.cb
	h.mu.Unlock()
	if cb != nil {
		cb(e)
	}
}

