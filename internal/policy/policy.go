// Package policy implements the Reassoc/Rescan Policy component (spec
// §3, §4.5, §4.9, §4.10): rescan-count and reconnect-count budgets, and
// the assoc-pause timer armed after a MIC failure. The counters follow
// the same "track occurrences, compare to a limit" shape as
// ap_common/aputil.PaceTracker, specialized to a plain bounded counter
// since the spec's limits are per-attempt counts rather than a sliding
// time window.
package policy

import "time"

// Counter tracks a bounded count of occurrences (rescans, reconnects,
// bg-scan passes) against a limit.
type Counter struct {
	limit int
	n     int
}

// NewCounter returns a Counter bounded by limit.
func NewCounter(limit int) *Counter {
	return &Counter{limit: limit}
}

// Tick increments the counter and reports whether the limit has now been
// exceeded.
func (c *Counter) Tick() (n int, exceeded bool) {
	c.n++
	return c.n, c.n > c.limit
}

// Remaining reports how many more ticks are allowed before Tick reports
// exceeded.
func (c *Counter) Remaining() int {
	r := c.limit - c.n
	if r < 0 {
		return 0
	}
	return r
}

// Count returns the current tick count.
func (c *Counter) Count() int {
	return c.n
}

// Reset zeroes the counter, e.g. at the start of a fresh connect attempt.
func (c *Counter) Reset() {
	c.n = 0
}

// PendingConnect latches a connect request that arrived while an
// assoc-pause is armed (spec §4.5: "MIC-failure deauth sets a 60-second
// assoc pause; during that window any incoming connect request is latched
// into pending_assoc_request and replayed on timer expiry").
type PendingConnect struct {
	NetworkIdx int
}

// AssocPause is the MIC-failure assoc-pause timer (spec §3, §4.5, §8
// scenario 4).
type AssocPause struct {
	duration time.Duration
	until    time.Time
	armed    bool
	pending  *PendingConnect
}

// NewAssocPause returns an unarmed AssocPause with the given window.
func NewAssocPause(duration time.Duration) *AssocPause {
	return &AssocPause{duration: duration}
}

// Arm starts the pause window from now.
func (a *AssocPause) Arm(now time.Time) {
	a.armed = true
	a.until = now.Add(a.duration)
}

// Armed reports whether the pause is currently in effect, clearing itself
// (and returning false) if now is past the window.
func (a *AssocPause) Armed(now time.Time) bool {
	if !a.armed {
		return false
	}
	if now.After(a.until) || now.Equal(a.until) {
		a.armed = false
		return false
	}
	return true
}

// Latch records a connect request to replay once the pause expires,
// overwriting any previously latched request.
func (a *AssocPause) Latch(p PendingConnect) {
	a.pending = &p
}

// TakePending clears and returns the latched connect request, if any.
func (a *AssocPause) TakePending() (PendingConnect, bool) {
	if a.pending == nil {
		return PendingConnect{}, false
	}
	p := *a.pending
	a.pending = nil
	return p, true
}

// Remaining returns the time left in the pause window, clamped to zero.
func (a *AssocPause) Remaining(now time.Time) time.Duration {
	if !a.armed {
		return 0
	}
	d := a.until.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
