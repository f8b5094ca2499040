// Package config holds the tunable constants of the WCM core. Following
// the apcfg.Int/apcfg.Duration tunable-property idiom from ap.wifid, every
// field here documents its spec-mandated default and may be overridden by
// the embedder before Start.
package config

import "time"

// Config collects every tunable named in spec.md.
type Config struct {
	// MaxProfiles bounds the Network Store (spec §3, "default 5").
	MaxProfiles int

	// RescanLimit is WLAN_RESCAN_LIMIT without a supplicant (spec §4.5,
	// §9; confirmed as 5 in original_source/incl/wlcmgr/wlan.h).
	RescanLimit int
	// SupplicantRescanLimit is WLAN_RESCAN_LIMIT with a supplicant
	// present (30 in original_source).
	SupplicantRescanLimit int
	// HaveSupplicant selects between RescanLimit and
	// SupplicantRescanLimit.
	HaveSupplicant bool

	// ReconnectLimit bounds enqueued reconnects after rescan/auth/DHCP/
	// link-loss failures (spec §4.5, §4.10).
	ReconnectLimit int

	// Scan11DLimit documents the commented-out "re-scan 3 times for
	// 11d" guard from the source (spec §9 Open Question). It is not
	// wired into the rescan loop; single-pass behavior is preserved.
	Scan11DLimit int

	// AssocPauseDuration is the MIC-failure assoc-pause window
	// (spec §3, §4.5: 60s).
	AssocPauseDuration time.Duration

	// NeighborReportTimeout bounds an outstanding 11k/11v query
	// (spec §4.9: 60s).
	NeighborReportTimeout time.Duration

	// BgScanLimit bounds soft-roaming background-scan passes before
	// BgscanNetworkNotFound (spec §4.9: 3).
	BgScanLimit int

	// EventQueueCapacity is the bounded event-bus capacity (spec §4.1:
	// "capacity >= 20").
	EventQueueCapacity int

	// SleepConfirmRetry is the short timeout used for the conditional
	// dequeue when a sleep-confirm retry is pending (spec §4.1: ~10ms).
	SleepConfirmRetry time.Duration

	// StopWatchdog bounds how long Stop() waits for the control task to
	// exit (spec §6: "~1s watchdog").
	StopWatchdog time.Duration

	// SupplicantStatusTick is the poll interval used while waiting for
	// the supplicant to report steady state (spec §5: "2s tick").
	SupplicantStatusTick time.Duration
}

// Default returns a Config populated with the values named in spec.md.
func Default() Config {
	return Config{
		MaxProfiles:           5,
		RescanLimit:           5,
		SupplicantRescanLimit: 30,
		HaveSupplicant:        false,
		ReconnectLimit:        5,
		Scan11DLimit:          3,
		AssocPauseDuration:    60 * time.Second,
		NeighborReportTimeout: 60 * time.Second,
		BgScanLimit:           3,
		EventQueueCapacity:    20,
		SleepConfirmRetry:     10 * time.Millisecond,
		StopWatchdog:          time.Second,
		SupplicantStatusTick:  2 * time.Second,
	}
}

// EffectiveRescanLimit returns the rescan budget in effect for c.
func (c Config) EffectiveRescanLimit() int {
	if c.HaveSupplicant {
		return c.SupplicantRescanLimit
	}
	return c.RescanLimit
}
