// Package scan implements the Scan Coordinator (spec §4.3): it owns the
// single scan lock, builds the command the driver consumes, and buffers
// the results table exposed to get_scan_result.
package scan

import (
	"sync"

	"wcm/internal/driver"
	"wcm/internal/scanlock"
	"wcm/internal/types"
)

// Coordinator owns the scan lock and the results buffer.
type Coordinator struct {
	lock *scanlock.Lock
	drv  driver.Driver

	mu      sync.Mutex
	results []types.ScanEntry
}

// New returns a Coordinator issuing commands through drv.
func New(drv driver.Driver) *Coordinator {
	return &Coordinator{
		lock: scanlock.New(),
		drv:  drv,
	}
}

// Lock exposes the scan lock for callers that must take it before
// enqueueing (connect/user-scan, spec §6).
func (c *Coordinator) Lock() *scanlock.Lock {
	return c.lock
}

// Issue builds and submits a scan command. Callers must hold the scan lock
// before calling Issue; Issue does not acquire or release it (the control
// task owns the release-once protocol, spec §4.3).
func (c *Coordinator) Issue(req driver.ScanRequest) error {
	return c.drv.Scan(req)
}

// ConnectScan builds the scan used when starting or retrying a connect
// attempt: directed at the profile's BSSID/SSID/channel if constrained,
// broadcast otherwise (spec §4.3, §4.5).
func ConnectScan(p types.Profile) driver.ScanRequest {
	req := driver.ScanRequest{
		BSSType: p.BSSType,
		Probes:  2,
	}
	if p.BSSIDSpecific {
		req.BSSID = p.BSSID
	}
	if p.SSIDSpecific {
		req.SSIDs[0] = p.SSID
	}
	if p.ChannelSpecific {
		req.Channels = []int{p.Channel}
	}
	return req
}

// HiddenFollowupScan builds the directed active-probe scan issued when a
// zero-length-SSID entry was seen on some channels but no match was found
// (spec §4.4: "hidden follow-up scan").
func HiddenFollowupScan(p types.Profile, channels []int) driver.ScanRequest {
	return driver.ScanRequest{
		BSSType:  p.BSSType,
		SSIDs:    [2]string{p.SSID},
		Channels: channels,
		Probes:   2,
		Directed: true,
	}
}

// UserScanParams holds the user-supplied parameters that BuildUserScan
// turns into a scan (spec §6 scan_with_opt).
type UserScanParams struct {
	SSIDs    [2]string
	BSSID    types.MAC
	Channels []int
}

// BuildUserScan constructs the command for a user-initiated scan.
func BuildUserScan(p UserScanParams) driver.ScanRequest {
	return driver.ScanRequest{
		BSSType:  types.BSSAny,
		BSSID:    p.BSSID,
		SSIDs:    p.SSIDs,
		Channels: p.Channels,
		Probes:   2,
	}
}

// SetResults replaces the buffered results table, called when a
// TagScanResult event is processed.
func (c *Coordinator) SetResults(entries []types.ScanEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = entries
}

// Result returns the entry at index (spec §6: get_scan_result, callable
// only from the user-scan callback).
func (c *Coordinator) Result(index int) (types.ScanEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.results) {
		return types.ScanEntry{}, false
	}
	return c.results[index], true
}

// Count returns the number of buffered results.
func (c *Coordinator) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Results returns a copy of the full buffered table, used internally by
// Match/Select.
func (c *Coordinator) Results() []types.ScanEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.ScanEntry, len(c.results))
	copy(out, c.results)
	return out
}
