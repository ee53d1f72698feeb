// internal/decode/fraction.go
package decode

import "math"

// Policy selects how a raw value is folded into a gauge fraction.
// The policy is per channel and deliberately not unified.
type Policy uint8

const (
	// Signed keeps the sign of raw/range.
	Signed Policy = iota
	// Absolute returns |raw/range|. Vacuum sensors report negative pressure.
	Absolute
)

func (p Policy) String() string {
	switch p {
	case Signed:
		return "signed"
	case Absolute:
		return "absolute"
	default:
		return "unknown"
	}
}

// Fraction normalizes raw by a calibration range.
// Values outside [-1, 1] pass through unclamped; a zero range yields 0.
func Fraction(raw, rng float64, p Policy) float64 {
	if rng == 0 {
		return 0
	}
	f := raw / rng
	if p == Absolute {
		return math.Abs(f)
	}
	return f
}
