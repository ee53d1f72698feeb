// internal/status/status_test.go
package status

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/goburrow/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codedErr struct{ code uint16 }

func (e codedErr) Error() string { return fmt.Sprintf("coded %d", e.code) }
func (e codedErr) Code() uint16  { return e.code }

func newTracker(stale time.Duration) (*Tracker, *time.Time) {
	now := time.Unix(1_700_000_000, 0)
	tr := NewTracker(stale)
	tr.now = func() time.Time { return now }
	return tr, &now
}

func TestTracker_StartsUnknown(t *testing.T) {
	tr, _ := newTracker(0)
	assert.Equal(t, HealthUnknown, tr.Snapshot().Health)
	assert.False(t, tr.Snapshot().Up())
}

func TestTracker_ErrorThenRecovery(t *testing.T) {
	tr, _ := newTracker(0)

	require.True(t, tr.Observe(errors.New("dial tcp: refused"), 0))
	snap := tr.Snapshot()
	assert.Equal(t, HealthError, snap.Health)
	assert.Equal(t, uint16(1), snap.LastErrorCode)
	assert.Zero(t, snap.SecondsInError, "seconds advance on tick only")

	// same error again changes nothing
	assert.False(t, tr.Observe(errors.New("dial tcp: refused"), 0))

	for i := 0; i < 3; i++ {
		require.True(t, tr.Tick())
	}
	assert.Equal(t, uint16(3), tr.Snapshot().SecondsInError)

	require.True(t, tr.Observe(nil, 0))
	assert.Equal(t, Snapshot{Health: HealthOK}, tr.Snapshot())
	assert.False(t, tr.Tick())
}

func TestTracker_SecondsSaturate(t *testing.T) {
	tr, _ := newTracker(0)
	tr.Observe(errors.New("x"), 0)
	tr.snap.SecondsInError = 0xFFFE

	assert.True(t, tr.Tick())
	assert.False(t, tr.Tick())
	assert.Equal(t, uint16(0xFFFF), tr.Snapshot().SecondsInError)
}

func TestTracker_Stale(t *testing.T) {
	tr, now := newTracker(3 * time.Second)
	tr.Observe(nil, 0)

	*now = now.Add(2 * time.Second)
	assert.False(t, tr.Tick())

	*now = now.Add(2 * time.Second)
	require.True(t, tr.Tick())
	assert.Equal(t, HealthStale, tr.Snapshot().Health)
	assert.Equal(t, "stale", HealthName(tr.Snapshot().Health))

	// stale counts as not OK
	assert.True(t, tr.Tick())
	assert.Equal(t, uint16(1), tr.Snapshot().SecondsInError)
}

func TestTracker_Committed(t *testing.T) {
	tr, _ := newTracker(0)
	tr.Committed(1)
	tr.Committed(2)
	assert.Equal(t, uint16(2), tr.Snapshot().FramesCommitted)
	assert.Equal(t, uint16(2), tr.Snapshot().Mode)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, uint16(0), ErrorCode(nil, 9))
	assert.Equal(t, uint16(9), ErrorCode(errors.New("x"), 9))
	assert.Equal(t, uint16(2), ErrorCode(fmt.Errorf("read: %w", &modbus.ModbusError{FunctionCode: 3, ExceptionCode: 2}), 0))
	assert.Equal(t, uint16(42), ErrorCode(fmt.Errorf("wrap: %w", codedErr{42}), 0))
	assert.Equal(t, uint16(1), ErrorCode(errors.New("x"), 0))
}

func TestEncode_Layout(t *testing.T) {
	name := EncodeName("DREDGE-01")
	regs := Encode(Snapshot{Health: HealthError, LastErrorCode: 4, SecondsInError: 7, FramesCommitted: 11, Mode: 1}, name)

	require.Len(t, regs, SlotsPerDevice)
	assert.Equal(t, HealthError, regs[SlotHealthCode])
	assert.Equal(t, uint16(4), regs[SlotLastErrorCode])
	assert.Equal(t, uint16(7), regs[SlotSecondsInError])
	assert.Equal(t, uint16(11), regs[SlotFramesCommitted])
	assert.Equal(t, uint16(1), regs[SlotMode])
	for i := SlotMode + 1; i < SlotDeviceNameStart; i++ {
		assert.Zero(t, regs[i], "reserved slot %d", i)
	}
	assert.Equal(t, name, regs[SlotDeviceNameStart:SlotDeviceNameEnd+1])
}

func TestEncodeName(t *testing.T) {
	regs := EncodeName("AB\x01")
	assert.Equal(t, uint16('A')<<8|'B', regs[0])
	assert.Equal(t, uint16('?')<<8, regs[1])
	assert.Zero(t, regs[2])

	long := EncodeName("0123456789ABCDEFGHIJ")
	assert.Equal(t, uint16('E')<<8|'F', long[SlotDeviceNameSlots-1])
}
