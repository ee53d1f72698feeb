// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "draughts"

// Metrics holds the daemon's prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	frames        *prometheus.CounterVec
	rejected      *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	storeSize     prometheus.Gauge
	frameDuration prometheus.Histogram

	polls          *prometheus.CounterVec
	linkUp         prometheus.Gauge
	linkErrorCode  prometheus.Gauge
	linkErrorSecs  prometheus.Gauge
	historyRecords *prometheus.CounterVec
	published      *prometheus.CounterVec
	writes         *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_committed_total",
			Help:      "Frames decoded and committed, by session mode.",
		}, []string{"mode"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rejected_total",
			Help:      "Frames discarded by the decoder; last good values were kept.",
		}, []string{"reason"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_dropped_total",
			Help:      "Time series samples refused by the store.",
		}, []string{"reason"}),
		storeSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_samples",
			Help:      "Samples currently retained by the time series store.",
		}),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Time spent inside the exclusive frame section.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "PLC poll cycles, by result.",
		}, []string{"result"}),
		linkUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_up",
			Help:      "1 when the last PLC poll succeeded.",
		}),
		linkErrorCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_last_error_code",
			Help:      "Last PLC error code (modbus exception or transport class).",
		}),
		linkErrorSecs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_error_seconds",
			Help:      "Seconds the PLC link has been in error.",
		}),
		historyRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_records_total",
			Help:      "Samples handed to the history archive, by result.",
		}, []string{"result"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Dashboard snapshots published, by result.",
		}, []string{"result"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plc_writes_total",
			Help:      "Settings and commands sent to the PLC, by kind and result.",
		}, []string{"kind", "result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.frames, m.rejected, m.dropped, m.storeSize, m.frameDuration,
			m.polls, m.linkUp, m.linkErrorCode, m.linkErrorSecs,
			m.historyRecords, m.published, m.writes,
		)
	}
	return m
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ---- session ----

func (m *Metrics) FrameCommitted(mode string, took time.Duration) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(mode).Inc()
	m.frameDuration.Observe(took.Seconds())
}

func (m *Metrics) FrameRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) SampleDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) StoreSize(n int) {
	if m == nil {
		return
	}
	m.storeSize.Set(float64(n))
}

// ---- link ----

// PollCompleted counts one poll cycle.
func (m *Metrics) PollCompleted(ok bool) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(result(ok)).Inc()
}

// LinkHealth exports the link state.
func (m *Metrics) LinkHealth(up bool, code uint16, secondsInError uint32) {
	if m == nil {
		return
	}
	if up {
		m.linkUp.Set(1)
	} else {
		m.linkUp.Set(0)
	}
	m.linkErrorCode.Set(float64(code))
	m.linkErrorSecs.Set(float64(secondsInError))
}

// ---- outputs ----

func (m *Metrics) HistoryRecorded(ok bool) {
	if m == nil {
		return
	}
	m.historyRecords.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) SnapshotPublished(ok bool) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) WriteSent(kind string, ok bool) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(kind, result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
