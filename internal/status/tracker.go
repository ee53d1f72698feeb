// internal/status/tracker.go
package status

import (
	"errors"
	"time"

	"github.com/goburrow/modbus"
)

// Tracker derives the link snapshot from poll outcomes and a 1 Hz tick.
// It is owned by the orchestrator goroutine and is not safe for concurrent use.
type Tracker struct {
	snap       Snapshot
	staleAfter time.Duration
	lastOK     time.Time
	now        func() time.Time
}

// NewTracker creates a tracker in the Unknown state.
// staleAfter <= 0 disables stale detection.
func NewTracker(staleAfter time.Duration) *Tracker {
	return &Tracker{
		snap:       Snapshot{Health: HealthUnknown},
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot { return t.snap }

// Observe records one poll outcome. raw is the device exception code, if any.
// It reports whether the snapshot changed.
func (t *Tracker) Observe(err error, raw uint16) bool {
	prev := t.snap

	if err == nil {
		t.lastOK = t.now()
		t.snap.Health = HealthOK
		// reset on recovery
		t.snap.LastErrorCode = 0
		t.snap.SecondsInError = 0
	} else {
		t.snap.Health = HealthError
		t.snap.LastErrorCode = ErrorCode(err, raw)
		// seconds_in_error advances on Tick only
	}

	return prev != t.snap
}

// Committed counts one committed frame and records the session mode.
func (t *Tracker) Committed(mode uint16) bool {
	t.snap.FramesCommitted++
	t.snap.Mode = mode
	return true
}

// Tick advances the error clock. Call at 1 Hz.
// It reports whether the snapshot changed.
func (t *Tracker) Tick() bool {
	if t.snap.Health == HealthOK {
		if t.staleAfter > 0 && t.now().Sub(t.lastOK) > t.staleAfter {
			t.snap.Health = HealthStale
			return true
		}
		return false
	}

	// MUST NOT wrap
	if t.snap.SecondsInError == 0xFFFF {
		return false
	}
	t.snap.SecondsInError++
	return true
}

// ErrorCode extracts a best-effort code from a poll error.
// A non-zero raw code wins; then Modbus exceptions and coded errors are
// inspected. Anything else is 1 (generic error).
func ErrorCode(err error, raw uint16) uint16 {
	if err == nil {
		return 0
	}
	if raw != 0 {
		return raw
	}

	var mb *modbus.ModbusError
	if errors.As(err, &mb) {
		return uint16(mb.ExceptionCode)
	}

	type coder interface{ Code() uint16 }
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}

	return 1
}
