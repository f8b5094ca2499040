// Package metrics wires the WCM core's counters and gauges to Prometheus,
// following the ap.watchd convention of registering client_golang
// collectors directly rather than building a generic metrics abstraction.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of collectors the control task updates as it
// processes events. Construct with New and Register with a
// prometheus.Registerer (or prometheus.DefaultRegisterer).
type Metrics struct {
	ScansIssued      prometheus.Counter
	ScanFailures     prometheus.Counter
	RescanAttempts   prometheus.Counter
	ReconnectAttempts prometheus.Counter
	BgScanPasses     prometheus.Counter
	AssocPauseArmed  prometheus.Counter

	PSEnter prometheus.CounterVec
	PSExit  prometheus.CounterVec

	UapClientAssoc    prometheus.Counter
	UapClientDisassoc prometheus.Counter

	STAState  prometheus.Gauge
	UAPState  prometheus.Gauge
	SignalStrength prometheus.Gauge
}

// New allocates the collector set. It does not register them; call
// Register.
func New() *Metrics {
	return &Metrics{
		ScansIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wcm_scans_issued_total",
			Help: "Number of scan commands issued by the Scan Coordinator.",
		}),
		ScanFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wcm_scan_failures_total",
			Help: "Number of scan commands that completed with an error.",
		}),
		RescanAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wcm_rescan_attempts_total",
			Help: "Number of rescans issued while attempting to connect.",
		}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wcm_reconnect_attempts_total",
			Help: "Number of auto-reconnects enqueued after a terminal failure.",
		}),
		BgScanPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wcm_bgscan_passes_total",
			Help: "Number of soft-roaming background-scan passes performed.",
		}),
		AssocPauseArmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wcm_assoc_pause_armed_total",
			Help: "Number of times the MIC-failure assoc-pause timer was armed.",
		}),
		PSEnter: *prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wcm_ps_enter_total",
			Help: "Number of PS_ENTER callback events, by power-save mode.",
		}, []string{"mode"}),
		PSExit: *prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wcm_ps_exit_total",
			Help: "Number of PS_EXIT callback events, by power-save mode.",
		}, []string{"mode"}),
		UapClientAssoc: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wcm_uap_client_assoc_total",
			Help: "Number of client associations to the µAP.",
		}),
		UapClientDisassoc: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wcm_uap_client_disassoc_total",
			Help: "Number of client disassociations from the µAP.",
		}),
		STAState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wcm_sta_state",
			Help: "Current STA connection state, as its integral value.",
		}),
		UAPState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wcm_uap_state",
			Help: "Current µAP connection state, as its integral value.",
		}),
		SignalStrength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wcm_signal_strength_dbm",
			Help: "RSSI of the current STA association, in dBm.",
		}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.ScansIssued, m.ScanFailures, m.RescanAttempts, m.ReconnectAttempts,
		m.BgScanPasses, m.AssocPauseArmed, m.PSEnter, m.PSExit,
		m.UapClientAssoc, m.UapClientDisassoc, m.STAState, m.UAPState,
		m.SignalStrength,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
