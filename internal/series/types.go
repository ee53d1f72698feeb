// internal/series/types.go
package series

import (
	"errors"
	"time"
)

var (
	// ErrOutOfOrderSample rejects an append at or before the last stored timestamp.
	ErrOutOfOrderSample = errors.New("out of order sample")
	// ErrChannelCount rejects a value vector of the wrong length.
	ErrChannelCount = errors.New("channel count mismatch")
	// ErrInvalidWindow rejects an interval whose end precedes its start.
	ErrInvalidWindow = errors.New("invalid retention window")
)

// Channel indexes the earthwork time series.
// WARNING: order matters, it is the sample vector layout.
type Channel uint8

const (
	HopperHeight Channel = iota
	Displacement
	Payload
	EarthWork
	Capacity

	NumChannels = int(Capacity) + 1
)

func (c Channel) String() string {
	switch c {
	case HopperHeight:
		return "hopper_height"
	case Displacement:
		return "displacement"
	case Payload:
		return "payload"
	case EarthWork:
		return "earthwork"
	case Capacity:
		return "capacity"
	default:
		return "unknown"
	}
}

// Rotation is the retention cadence.
type Rotation uint8

const (
	RotateNone Rotation = iota
	RotateHourly
	RotateDaily
)

// ParseRotation maps a config keyword to a Rotation.
func ParseRotation(s string) (Rotation, bool) {
	switch s {
	case "", "none":
		return RotateNone, true
	case "hourly":
		return RotateHourly, true
	case "daily":
		return RotateDaily, true
	default:
		return RotateNone, false
	}
}

// Sample is one timestamped vector of channel values.
// At is unix milliseconds.
type Sample struct {
	At     int64     `json:"at"`
	Values []float64 `json:"values"`
}

// Config is immutable store configuration.
type Config struct {
	Channels int
	Rotation Rotation
	Window   time.Duration  // 0 disables window eviction
	ViewSpan time.Duration  // default visible width
	Location *time.Location // rotation boundaries; nil = UTC
}

const (
	defaultViewSpan = 8 * time.Hour
	minViewSpan     = time.Second
)
