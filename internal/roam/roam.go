// Package roam implements the Roaming/11k/11v/11r Transition logic
// (spec §4.9): the RSSI-low priority chain, neighbor-report handling, and
// FT-initiated roaming.
package roam

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"wcm/internal/driver"
	"wcm/internal/events"
	"wcm/internal/metrics"
	"wcm/internal/policy"
	"wcm/internal/scan"
	"wcm/internal/types"
	"wcm/internal/wcmerr"
)

// trigger records which mechanism is currently outstanding, so a
// neighbor-list report or scan completion is attributed correctly.
type trigger int

const (
	triggerNone trigger = iota
	triggerBgScan
	triggerNeighborReport
	triggerBTM
)

// Candidate is one entry from a neighbor-list report (spec §4.9).
type Candidate struct {
	BSSID   types.MAC
	Channel int
}

// Reassociate is invoked once a roam target has been chosen via
// background-scan or neighbor-report, handing control back to the STA SM
// to drive the actual association (spec §4.9: "the STA machine enters a
// reassociation attempt").
type Reassociate func(bssid types.MAC, channel int)

// FTRoamFunc issues a directed scan on a single channel and then drives
// association with the ft_bss flag set (spec §4.9 ft_roam).
type FTRoamFunc func(bssid types.MAC, channel int)

// CurrentBSSID reports the STA's presently-connected BSSID, used to
// detect "best candidate is where we already are" (spec §4.9).
type CurrentBSSID func() types.MAC

// Callback is the upward event publisher (spec §6): HandleBgScanResult
// uses it to surface EvtBgscanNetworkNotFound once the bg-scan-pass
// budget is exhausted (spec §4.9, §8).
type Callback func(types.CallbackEvent)

// Coordinator drives the RSSI-low response chain.
type Coordinator struct {
	drv    driver.Driver
	scanCo *scan.Coordinator
	bus    *events.Bus
	slog   *zap.SugaredLogger
	met    *metrics.Metrics
	cb     Callback

	reassoc   Reassociate
	ftRoam    FTRoamFunc
	currentBSSID CurrentBSSID

	softRoamingEnabled bool
	ftCapable          bool

	bgScanPasses *policy.Counter
	trig         trigger
	timeoutUntil time.Time
	timeout      time.Duration
	pending      []Candidate
}

// Params bundles the collaborators a Coordinator needs.
type Params struct {
	Driver        driver.Driver
	ScanCo        *scan.Coordinator
	Bus           *events.Bus
	Log           *zap.SugaredLogger
	Metrics       *metrics.Metrics
	Callback      Callback
	Reassociate   Reassociate
	FTRoam        FTRoamFunc
	CurrentBSSID  CurrentBSSID
	BgScanLimit   int
	NeighborReportTimeout time.Duration
}

// New returns a Coordinator with soft-roaming disabled.
func New(p Params) *Coordinator {
	return &Coordinator{
		drv:          p.Driver,
		scanCo:       p.ScanCo,
		bus:          p.Bus,
		slog:         p.Log,
		met:          p.Metrics,
		cb:           p.Callback,
		reassoc:      p.Reassociate,
		ftRoam:       p.FTRoam,
		currentBSSID: p.CurrentBSSID,
		bgScanPasses: policy.NewCounter(p.BgScanLimit),
		timeout:      p.NeighborReportTimeout,
	}
}

// SetSoftRoaming toggles soft-roaming (spec §4.9 set_roaming).
func (c *Coordinator) SetSoftRoaming(enabled bool) { c.softRoamingEnabled = enabled }

// SetFTCapable records whether the current security is FT-capable
// (spec §4.9: "only meaningful if the current security is FT-capable").
func (c *Coordinator) SetFTCapable(capable bool) { c.ftCapable = capable }

// InProgress reports whether a roam attempt is outstanding.
func (c *Coordinator) InProgress() bool { return c.trig != triggerNone }

// HandleRSSILow runs the priority chain of spec §4.9 in response to a
// firmware RSSI_LOW event.
func (c *Coordinator) HandleRSSILow(ssid string, supports11k, supports11v bool, rearmThreshold func()) {
	if c.softRoamingEnabled && c.trig == triggerNone {
		c.trig = triggerBgScan
		c.bgScanPasses.Reset()
		if err := c.drv.ConfigBgscanAndRSSI(ssid); err != nil {
			c.slog.Warnf("roam: bgscan config failed: %v", err)
			c.trig = triggerNone
		}
		return
	}

	if supports11k {
		c.trig = triggerNeighborReport
		c.armTimeout()
		if err := c.drv.SendNeighborRequest(); err != nil {
			c.slog.Warnf("roam: neighbor request failed: %v", err)
			c.trig = triggerNone
		}
		return
	}

	if supports11v {
		c.trig = triggerBTM
		c.armTimeout()
		if err := c.drv.SendBTMQuery(); err != nil {
			c.slog.Warnf("roam: BTM query failed: %v", err)
			c.trig = triggerNone
		}
		return
	}

	if rearmThreshold != nil {
		rearmThreshold()
	}
}

// armTimeout records the deadline and, if a Bus was supplied, schedules a
// TagNeighborReportTimeout event to fire the control task back in if the
// report/BTM-query never arrives (spec §4.9: "arm a 60s timeout").
func (c *Coordinator) armTimeout() {
	c.timeoutUntil = time.Now().Add(c.timeout)
	if c.bus != nil {
		time.AfterFunc(c.timeout, func() {
			c.bus.TrySend(events.Message{Tag: events.TagNeighborReportTimeout})
		})
	}
}

// HandleTimeout processes a TagNeighborReportTimeout event: if a
// neighbor-report or BTM query is still outstanding, give up on it and
// let the next RSSI_LOW re-enter the priority chain.
func (c *Coordinator) HandleTimeout() {
	if c.trig != triggerNeighborReport && c.trig != triggerBTM {
		return
	}
	c.trig = triggerNone
	c.pending = nil
}

// HandleBgScanResult completes a background-scan pass. On a usable
// candidate, hands off to Reassociate; otherwise ticks the bg-scan-pass
// budget and reports exhaustion to the caller via exhausted=true.
func (c *Coordinator) HandleBgScanResult(candidates []Candidate) (found bool, exhausted bool) {
	if c.trig != triggerBgScan {
		return false, false
	}
	best, ok := c.bestCandidate(candidates)
	if ok {
		c.trig = triggerNone
		c.reassoc(best.BSSID, best.Channel)
		return true, false
	}

	c.bgScanPasses.Tick()
	overLimit := c.bgScanPasses.Remaining() == 0
	if c.met != nil {
		c.met.BgScanPasses.Inc()
	}
	if overLimit {
		c.trig = triggerNone
		if c.cb != nil {
			c.cb(types.CallbackEvent{Event: types.EvtBgscanNetworkNotFound})
		}
		return false, true
	}
	if err := c.drv.ConfigBgscanAndRSSI(""); err != nil {
		c.slog.Warnf("roam: bgscan retry failed: %v", err)
		c.trig = triggerNone
	}
	return false, false
}

// HandleNeighborReport processes a neighbor-list report (spec §4.9): sort
// candidates by channel ascending, issue a directed scan, and remember
// which mechanism (11k/11v) triggered it so the scan-completion handler
// knows whether to emit a BTM response or initiate FT.
func (c *Coordinator) HandleNeighborReport(candidates []Candidate) driver.ScanRequest {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Channel < candidates[j].Channel })
	c.pending = candidates

	channels := make([]int, 0, len(candidates))
	for _, cand := range candidates {
		channels = append(channels, cand.Channel)
	}
	return driver.ScanRequest{Channels: channels, Directed: true, Probes: 2}
}

func (c *Coordinator) bestCandidate(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.Channel < best.Channel {
			best = cand
		}
	}
	return best, true
}

// HandleNeighborScanComplete processes the directed scan issued by
// HandleNeighborReport: if the best candidate is the currently-connected
// BSSID, reject (spec §4.9: "send BTM-reject(NoSuitableCandidates) and
// stay"); otherwise respond (11v) or initiate FT (11k) to the best
// candidate.
func (c *Coordinator) HandleNeighborScanComplete() {
	if len(c.pending) == 0 {
		c.trig = triggerNone
		return
	}
	best := c.pending[0]
	wasBTM := c.trig == triggerBTM
	c.pending = nil
	c.trig = triggerNone

	if c.currentBSSID != nil && c.currentBSSID() == best.BSSID {
		_ = c.drv.SendBTMReject()
		return
	}

	if wasBTM {
		_ = c.drv.SendBTMResponse(best.BSSID)
		return
	}
	if c.ftCapable && c.ftRoam != nil {
		c.ftRoam(best.BSSID, best.Channel)
		return
	}
	if c.reassoc != nil {
		c.reassoc(best.BSSID, best.Channel)
	}
}

// FTRoam drives ft_roam(bssid, channel) (spec §4.9): only meaningful when
// the current security is FT-capable. Returns an error otherwise so the
// caller (which has already taken the scan lock before enqueuing the
// request) releases it instead of leaking it on a silent no-op.
func (c *Coordinator) FTRoam(bssid types.MAC, channel int) error {
	if !c.ftCapable {
		return errors.Wrap(wcmerr.ErrNotSupported, "ft_roam: current security is not FT-capable")
	}
	req := driver.ScanRequest{BSSID: bssid, Channels: []int{channel}, Directed: true, Probes: 1}
	if err := c.scanCo.Issue(req); err != nil {
		return err
	}
	if c.ftRoam != nil {
		c.ftRoam(bssid, channel)
	}
	return nil
}
