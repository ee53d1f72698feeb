// internal/session/ingest.go
package session

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tamzrod/draughts-telemetry/internal/decode"
	"github.com/tamzrod/draughts-telemetry/internal/schema"
	"github.com/tamzrod/draughts-telemetry/internal/series"
)

// ----------------------------------------------------------------------------
// Frame protocol
//
// A transport drives one frame as
//   PreFrame -> OnDigital -> OnAnalog -> OnSettingEcho -> PostFrame
// PreFrame acquires the exclusive section and PostFrame releases it; every
// PreFrame must be followed by PostFrame. Ingest runs the whole sequence and
// guarantees the release.
// ----------------------------------------------------------------------------

// Ingest runs one frame through the full protocol.
// It returns the frame's decode or commit error, if any.
func (s *Session) Ingest(f Frame) (err error) {
	s.PreFrame(f.At)
	defer func() {
		if r := recover(); r != nil {
			s.frameErr = fmt.Errorf("session: frame panicked: %v", r)
		}
		err = s.PostFrame()
	}()

	if s.OnDigital(f.Blocks[schema.DB4], f.Blocks[schema.DB205]) != nil {
		return
	}
	if s.OnAnalog(f.Blocks[schema.DB2], f.Blocks[schema.DB203]) != nil {
		return
	}
	if buf, ok := f.Blocks[schema.DB20]; ok {
		_ = s.OnSettingEcho(buf)
	}
	return
}

// PreFrame opens a frame taken at `at` (unix milliseconds).
func (s *Session) PreFrame(at int64) {
	s.pub.Begin()
	s.frameStart = time.Now()
	s.frameErr = nil
	s.stage = s.current.clone()
	s.stage.at = at
}

// OnDigital decodes the status bits.
func (s *Session) OnDigital(di, status []byte) error {
	if s.frameErr != nil {
		return s.frameErr
	}

	bits := make(map[string]bool, len(s.hull.bits))
	for _, f := range s.hull.bits {
		buf := status
		if f.Block == schema.DB4 {
			buf = di
		}
		v, err := decode.DBX(buf, f.Offset, f.Bit)
		if err != nil {
			return s.fail("digital", f, err)
		}
		bits[f.Name] = v
	}

	ov := &s.stage.overflow
	ov.Up = bits[schema.OverflowUp]
	ov.Down = bits[schema.OverflowDown]
	ov.UpperLimit = bits[schema.OverflowUpperLimit]
	ov.LowerLimit = bits[schema.OverflowLowerLimit]
	ov.Fault = bits[schema.OverflowFault]

	s.stage.doors = Doors{
		OpenCheck:  bits[schema.OpenDoorCheck],
		CloseCheck: bits[schema.CloseDoorCheck],
	}
	return nil
}

// OnAnalog decodes hull metrics, the earthwork sample and both radars.
func (s *Session) OnAnalog(primary, secondary []byte) error {
	if s.frameErr != nil {
		return s.frameErr
	}

	blocks := map[schema.Block][]byte{schema.DB2: primary, schema.DB203: secondary}

	for _, f := range s.hull.reals {
		v, err := readField(f, blocks)
		if err != nil {
			return s.fail("analog", f, err)
		}
		r := s.reading(f, v)
		if rng, ok := s.ranges.hullRange(f.Name); ok {
			r.Range = &Range{Max: rng}
			r.Fraction = decode.Fraction(r.Value, rng, decode.Signed)
		}
		s.stage.readings[f.Name] = r
	}

	sample := make([]float64, series.NumChannels)
	for ch, f := range s.hull.cylinders {
		sample[ch] = s.stage.readings[f.Name].Value
	}
	s.stage.sample = sample

	s.stage.overflow.Progress = s.stage.readings[schema.OverflowProgress].Value
	s.stage.overflow.LiquidHeight = s.stage.readings[schema.HopperHeight].Value

	for i := range s.sides {
		radar, err := s.decodeRadar(s.sides[i], blocks)
		if err != nil {
			return err
		}
		s.stage.radars[i] = radar
	}
	return nil
}

// decodeRadar folds one side's dredging channels into radar fractions.
func (s *Session) decodeRadar(sf sideFields, blocks map[schema.Block][]byte) (Radar, error) {
	frac := make(map[string]float64, len(sf.channel))
	for _, name := range sideChannels {
		f := sf.channel[name]
		v, err := readField(f, blocks)
		if err != nil {
			return Radar{}, s.fail("analog "+sf.side.String(), f, err)
		}
		r := s.reading(f, v)
		if rng, ok := s.ranges.sideRange(name); ok {
			r.Range = &Range{Max: rng}
			r.Fraction = decode.Fraction(r.Value, rng, policyOf(name))
			frac[name] = r.Fraction
		}
		s.stage.readings[sf.side.String()+" "+name] = r
	}

	return Radar{
		// no speed source on this vessel
		Kn:         decode.Fraction(0, s.ranges.DredgingSpeed, decode.Signed),
		Vacuum:     frac[schema.VacuumPressure],
		FlowVolume: frac[schema.FlowVolume],
		FlowSpeed:  frac[schema.FlowSpeed],
		PullForce1: frac[schema.PullingForce1],
		PullForce2: frac[schema.PullingForce2],
	}, nil
}

// OnSettingEcho decodes the overflow pipe target height. 0 means no target.
func (s *Session) OnSettingEcho(buf []byte) error {
	if s.frameErr != nil {
		return s.frameErr
	}

	f := s.hull.target
	v, err := decode.DBD(buf, f.Offset)
	if err != nil {
		return s.fail("setting", f, err)
	}

	r := s.reading(f, float64(v))
	s.stage.overflow.Target = r.Value
	s.stage.overflow.HasTarget = r.Value != 0
	s.stage.readings[f.Name] = r
	return nil
}

// PostFrame commits the staged frame, if it decoded cleanly, and releases
// the exclusive section. The returned error is the frame's failure or the
// sample rejection reported by the store.
func (s *Session) PostFrame() error {
	var (
		err    error
		record *series.Sample
	)

	if s.frameErr != nil {
		err = s.frameErr
		s.obs.FrameRejected(reason(err))
		s.log.Warn("frame rejected, keeping last good values", "at", s.stage.at, "err", err)
	} else {
		record, err = s.commitLocked()
		s.obs.FrameCommitted(s.mode.String(), time.Since(s.frameStart))
	}

	s.stage = state{}
	s.frameErr = nil
	s.pub.End()

	if record != nil && s.recorder != nil {
		s.recorder.Record(*record)
	}
	return err
}

func (s *Session) commitLocked() (*series.Sample, error) {
	s.current = s.stage
	s.seq++
	if s.mode == Idle {
		s.mode = Live
	}

	at, values := s.current.at, s.current.sample
	if values == nil {
		return nil, nil
	}

	switch s.mode {
	case Live:
		if s.store != nil {
			if err := s.store.Append(at, values); err != nil {
				s.obs.SampleDropped(reason(err))
				s.log.Warn("sample dropped", "at", at, "err", err)
				return nil, err
			}
			s.obs.StoreSize(s.store.Len())
		}
		return &series.Sample{At: at, Values: append([]float64(nil), values...)}, nil

	case Replay:
		if s.store != nil {
			s.store.Seek(at)
		}
	}
	return nil, nil
}

// reading wraps a decoded value. NaN and infinities read as 0 and are flagged
// invalid so one bad word never poisons the snapshot.
func (s *Session) reading(f schema.Field, v float64) Reading {
	r := Reading{Value: v, Unit: f.Unit, Block: f.Block, Offset: f.Offset}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		s.log.Debug("non-finite value", "field", f.Name, "block", f.Block, "offset", f.Offset)
		r.Value, r.Invalid = 0, true
	}
	return r
}

func (s *Session) fail(step string, f schema.Field, err error) error {
	s.frameErr = fmt.Errorf("session: %s %q (%s@%d): %w", step, f.Name, f.Block, f.Offset, err)
	return s.frameErr
}

func readField(f schema.Field, blocks map[schema.Block][]byte) (float64, error) {
	buf := blocks[f.Block]
	switch f.Kind {
	case schema.LReal:
		return decode.LReal(buf, f.Offset)
	case schema.Bit:
		b, err := decode.DBX(buf, f.Offset, f.Bit)
		if b {
			return 1, err
		}
		return 0, err
	default:
		v, err := decode.DBD(buf, f.Offset)
		return float64(v), err
	}
}

// reason maps an error to a short metrics label.
func reason(err error) string {
	switch {
	case errors.Is(err, decode.ErrTruncatedFrame):
		return "truncated_frame"
	case errors.Is(err, decode.ErrBitRange):
		return "bit_range"
	case errors.Is(err, series.ErrOutOfOrderSample):
		return "out_of_order"
	case errors.Is(err, series.ErrChannelCount):
		return "channel_count"
	default:
		return "other"
	}
}
