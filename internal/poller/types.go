// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/draughts-telemetry/internal/schema"
	"github.com/tamzrod/draughts-telemetry/internal/session"
)

// MaxRegistersPerRead is the Modbus limit for one FC3/FC4 request.
const MaxRegistersPerRead = 125

// ReadBlock maps one PLC data block onto a register range.
// Geometry only: the poller never interprets the bytes.
type ReadBlock struct {
	Block    schema.Block
	FC       uint8 // 3 holding, 4 input
	Address  uint16
	Quantity uint16 // registers; the image is 2*Quantity bytes
}

// PollResult is the outcome of one poll cycle.
type PollResult struct {
	UnitID string
	At     time.Time

	// RawErrorCode is the Modbus exception code when the device refused
	// a read, 0 otherwise.
	RawErrorCode uint16

	Blocks map[schema.Block][]byte
	Err    error // non-nil means the poll cycle failed
}

// Frame converts a successful result into a session frame.
func (r PollResult) Frame() session.Frame {
	return session.Frame{At: r.At.UnixMilli(), Blocks: r.Blocks}
}
