package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scanner metrics
var (
	ScanProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridgewatch_scan_progress_percent",
		Help: "Progress of the current scan pass as a percentage",
	})

	ChainHead = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridgewatch_chain_head",
		Help: "Chain head height observed at scan start",
	})

	FailedWindows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridgewatch_scan_failed_windows_total",
		Help: "The total number of windows whose log query failed",
	})

	EventsClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridgewatch_events_classified_total",
		Help: "The total number of log entries classified, by event kind",
	}, []string{"kind"})

	SkippedLogs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridgewatch_skipped_logs_total",
		Help: "The total number of log entries that could not be decoded",
	})
)

// Manager metrics
var (
	ScansStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridgewatch_scans_started_total",
		Help: "The total number of scan passes started",
	})

	ScansSuperseded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridgewatch_scans_superseded_total",
		Help: "The total number of scan passes cancelled by a newer one",
	})
)
