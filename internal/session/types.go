// internal/session/types.go
package session

import (
	"context"
	"time"

	"github.com/tamzrod/draughts-telemetry/internal/schema"
	"github.com/tamzrod/draughts-telemetry/internal/series"
)

// Frame is one transport delivery: the raw data-block images read at At
// (unix milliseconds). A missing DB20 skips the setting echo step.
type Frame struct {
	At     int64
	Blocks map[schema.Block][]byte
}

// Range is a calibration interval used to fold a reading into a gauge fraction.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Reading is one decoded physical value with its source location.
// Invalid marks a word that held NaN or an infinity; Value is then 0.
type Reading struct {
	Value    float64      `json:"value"`
	Invalid  bool         `json:"invalid,omitempty"`
	Unit     string       `json:"unit,omitempty"`
	Block    schema.Block `json:"-"`
	Offset   int          `json:"offset"`
	Range    *Range       `json:"range,omitempty"`
	Fraction float64      `json:"fraction,omitempty"`
}

// Radar is the per-side dredging metric vector, each entry a gauge fraction.
type Radar struct {
	Kn         float64 `json:"kn"`
	Vacuum     float64 `json:"vacuum"`
	FlowVolume float64 `json:"fvolume"`
	FlowSpeed  float64 `json:"fspeed"`
	PullForce1 float64 `json:"dpforce1"`
	PullForce2 float64 `json:"dpforce2"`
}

// Vector returns the metrics in radar axis order.
func (r Radar) Vector() []float64 {
	return []float64{r.Kn, r.Vacuum, r.FlowVolume, r.FlowSpeed, r.PullForce1, r.PullForce2}
}

// Overflow is the overflow pipe state.
type Overflow struct {
	Progress     float64 `json:"progress"`
	LiquidHeight float64 `json:"liquid_height"`
	Target       float64 `json:"target"`
	// HasTarget is false when the PLC echoes the 0 sentinel.
	HasTarget bool `json:"has_target"`

	Up         bool `json:"up"`
	Down       bool `json:"down"`
	UpperLimit bool `json:"upper_limit"`
	LowerLimit bool `json:"lower_limit"`
	Fault      bool `json:"fault"`
}

// Doors holds the hopper door check buttons.
type Doors struct {
	OpenCheck  bool `json:"open_check"`
	CloseCheck bool `json:"close_check"`
}

// Snapshot is a consistent copy of the last committed frame.
type Snapshot struct {
	ID        string             `json:"id"`
	Seq       uint64             `json:"seq"`
	At        int64              `json:"at"`
	Mode      Mode               `json:"mode"`
	Readings  map[string]Reading `json:"readings"`
	Port      Radar              `json:"ps"`
	Starboard Radar              `json:"sb"`
	Overflow  Overflow           `json:"overflow"`
	Doors     Doors              `json:"doors"`
	Sample    []float64          `json:"sample,omitempty"`
	Cursor    *series.Sample     `json:"cursor,omitempty"`
}

// Interval is a replay request in unix milliseconds, end inclusive.
type Interval struct {
	From int64
	To   int64
}

// Source backfills a replay interval from the history archive.
type Source interface {
	Range(ctx context.Context, from, to int64) ([]series.Sample, error)
}

// Recorder archives committed live samples. Record must not block.
type Recorder interface {
	Record(s series.Sample)
}

// Observer receives frame outcomes (metrics).
type Observer interface {
	FrameCommitted(mode string, took time.Duration)
	FrameRejected(reason string)
	SampleDropped(reason string)
	StoreSize(n int)
}

type nopObserver struct{}

func (nopObserver) FrameCommitted(string, time.Duration) {}
func (nopObserver) FrameRejected(string)                 {}
func (nopObserver) SampleDropped(string)                 {}
func (nopObserver) StoreSize(int)                        {}
