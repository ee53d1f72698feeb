// internal/session/ranges.go
package session

import (
	"fmt"

	"github.com/tamzrod/draughts-telemetry/internal/decode"
	"github.com/tamzrod/draughts-telemetry/internal/schema"
)

// Ranges are the calibration maxima of the gauges. All ranges start at 0.
type Ranges struct {
	DredgingSpeed  float64 `yaml:"dredging_speed"`
	FlowVolume     float64 `yaml:"flow_volume"`
	FlowSpeed      float64 `yaml:"flow_speed"`
	VacuumPressure float64 `yaml:"vacuum_pressure"`
	DragPullForce1 float64 `yaml:"drag_pull_force1"`
	DragPullForce2 float64 `yaml:"drag_pull_force2"`

	HopperHeight float64 `yaml:"hopper_height"`
	Displacement float64 `yaml:"displacement"`
	Payload      float64 `yaml:"payload"`
	EarthWork    float64 `yaml:"earthwork"`
	Capacity     float64 `yaml:"capacity"`
}

// DefaultRanges returns the factory calibration.
func DefaultRanges() Ranges {
	return Ranges{
		DredgingSpeed:  4.0,
		FlowVolume:     12000.0,
		FlowSpeed:      10.0,
		VacuumPressure: 100.0,
		DragPullForce1: 300.0,
		DragPullForce2: 300.0,

		HopperHeight: 15.0,
		Displacement: 12000.0,
		Payload:      8000.0,
		EarthWork:    6000.0,
		Capacity:     6000.0,
	}
}

// Validate rejects non-positive ranges.
func (r Ranges) Validate() error {
	checks := []struct {
		name string
		v    float64
	}{
		{"dredging_speed", r.DredgingSpeed},
		{"flow_volume", r.FlowVolume},
		{"flow_speed", r.FlowSpeed},
		{"vacuum_pressure", r.VacuumPressure},
		{"drag_pull_force1", r.DragPullForce1},
		{"drag_pull_force2", r.DragPullForce2},
		{"hopper_height", r.HopperHeight},
		{"displacement", r.Displacement},
		{"payload", r.Payload},
		{"earthwork", r.EarthWork},
		{"capacity", r.Capacity},
	}
	for _, c := range checks {
		if !(c.v > 0) {
			return fmt.Errorf("range %s must be > 0 (got %v)", c.name, c.v)
		}
	}
	return nil
}

// channel folding rules; vacuum sensors report negative pressure.
var policies = map[string]decode.Policy{
	schema.VacuumPressure: decode.Absolute,
	schema.FlowSpeed:      decode.Signed,
	schema.FlowVolume:     decode.Signed,
	schema.PullingForce1:  decode.Signed,
	schema.PullingForce2:  decode.Signed,
}

func policyOf(channel string) decode.Policy {
	return policies[channel]
}

// sideRange returns the calibration of a per-side channel, if any.
func (r Ranges) sideRange(channel string) (float64, bool) {
	switch channel {
	case schema.VacuumPressure:
		return r.VacuumPressure, true
	case schema.FlowSpeed:
		return r.FlowSpeed, true
	case schema.FlowVolume:
		return r.FlowVolume, true
	case schema.PullingForce1:
		return r.DragPullForce1, true
	case schema.PullingForce2:
		return r.DragPullForce2, true
	default:
		return 0, false
	}
}

// hullRange returns the calibration of a hull channel, if any.
func (r Ranges) hullRange(channel string) (float64, bool) {
	switch channel {
	case schema.HopperHeight:
		return r.HopperHeight, true
	case schema.Displacement:
		return r.Displacement, true
	case schema.Payload:
		return r.Payload, true
	case schema.EarthWork:
		return r.EarthWork, true
	case schema.Capacity:
		return r.Capacity, true
	default:
		return 0, false
	}
}
