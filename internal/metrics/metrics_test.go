// internal/metrics/metrics_test.go
package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Session(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.FrameCommitted("live", 2*time.Millisecond)
	m.FrameCommitted("live", time.Millisecond)
	m.FrameCommitted("replay", time.Millisecond)
	m.FrameRejected("truncated_frame")
	m.SampleDropped("out_of_order")
	m.StoreSize(42)

	if got := testutil.ToFloat64(m.frames.WithLabelValues("live")); got != 2 {
		t.Fatalf("expected 2 live frames, got %f", got)
	}
	if got := testutil.ToFloat64(m.frames.WithLabelValues("replay")); got != 1 {
		t.Fatalf("expected 1 replay frame, got %f", got)
	}
	if got := testutil.ToFloat64(m.rejected.WithLabelValues("truncated_frame")); got != 1 {
		t.Fatalf("expected 1 rejected frame, got %f", got)
	}
	if got := testutil.ToFloat64(m.dropped.WithLabelValues("out_of_order")); got != 1 {
		t.Fatalf("expected 1 dropped sample, got %f", got)
	}
	if got := testutil.ToFloat64(m.storeSize); got != 42 {
		t.Fatalf("expected store size 42, got %f", got)
	}
	if n := testutil.CollectAndCount(m.frameDuration); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}
}

func TestMetrics_Link(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.PollCompleted(true)
	m.PollCompleted(false)
	m.LinkHealth(false, 0x0B, 7)

	if got := testutil.ToFloat64(m.polls.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed poll, got %f", got)
	}
	if got := testutil.ToFloat64(m.linkUp); got != 0 {
		t.Fatalf("expected link down, got %f", got)
	}
	if got := testutil.ToFloat64(m.linkErrorCode); got != 11 {
		t.Fatalf("expected error code 11, got %f", got)
	}
	if got := testutil.ToFloat64(m.linkErrorSecs); got != 7 {
		t.Fatalf("expected 7 seconds in error, got %f", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.FrameCommitted("live", time.Second)
	m.FrameRejected("x")
	m.SampleDropped("x")
	m.StoreSize(1)
	m.PollCompleted(true)
	m.LinkHealth(true, 0, 0)
	m.HistoryRecorded(true)
	m.SnapshotPublished(true)
	m.WriteSent("setting", true)
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SnapshotPublished(true)
	m.WriteSent("command", false)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`draughts_snapshots_published_total{result="ok"} 1`,
		`draughts_plc_writes_total{kind="command",result="error"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
