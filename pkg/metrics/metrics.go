package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Marker metrics: current highwater block number per subsystem.
	MarkerBlockNumber = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "papyrus_marker_block_number",
			Help: "Current block-number marker per storage subsystem",
		},
		[]string{"subsystem"},
	)

	// KV engine metrics.
	OpenReadTxns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "papyrus_open_read_txns",
			Help: "Number of currently open read-only transactions",
		},
	)

	WriterLockHeld = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "papyrus_writer_lock_held",
			Help: "Whether the single read-write transaction is currently held (1) or not (0)",
		},
	)

	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "papyrus_commit_duration_seconds",
			Help:    "Time taken to commit a read-write transaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Append-only file store metrics.
	FileStoreBytesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papyrus_file_store_bytes_written_total",
			Help: "Total bytes appended to each blob file, by file kind",
		},
		[]string{"file"},
	)

	// Per-operation latency, one histogram per append/revert kind.
	AppendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "papyrus_append_duration_seconds",
			Help:    "Time taken to append a block's data, by subsystem",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subsystem"},
	)

	RevertDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "papyrus_revert_duration_seconds",
			Help:    "Time taken to revert a block's data, by subsystem",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subsystem"},
	)

	RevertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papyrus_reverts_total",
			Help: "Total number of reverts performed, by subsystem",
		},
		[]string{"subsystem"},
	)

	// State-reader metrics.
	StateReadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "papyrus_state_read_duration_seconds",
			Help:    "Time taken to answer a time-indexed state read, by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	EventScansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "papyrus_event_scans_total",
			Help: "Total number of event range scans performed",
		},
	)
)

func init() {
	prometheus.MustRegister(MarkerBlockNumber)
	prometheus.MustRegister(OpenReadTxns)
	prometheus.MustRegister(WriterLockHeld)
	prometheus.MustRegister(CommitDuration)
	prometheus.MustRegister(FileStoreBytesWritten)
	prometheus.MustRegister(AppendDuration)
	prometheus.MustRegister(RevertDuration)
	prometheus.MustRegister(RevertsTotal)
	prometheus.MustRegister(StateReadDuration)
	prometheus.MustRegister(EventScansTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
