// internal/decode/decode.go
package decode

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Field readers over raw PLC data-block images.
// Data blocks are big-endian (S7 memory order).
// Every reader checks bounds first and never touches memory past len(buf).

// DBD reads a 32-bit IEEE754 real at a byte offset.
func DBD(buf []byte, offset int) (float32, error) {
	if err := need(buf, offset, 4); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(buf[offset : offset+4])), nil
}

// RealData reads the index-th real of a block laid out as an array of reals.
func RealData(buf []byte, index int) (float32, error) {
	if index < 0 {
		return 0, &TruncatedFrameError{Offset: index, Width: 4, Len: len(buf)}
	}
	return DBD(buf, index*4)
}

// LReal reads a 64-bit IEEE754 real at a byte offset.
func LReal(buf []byte, offset int) (float64, error) {
	if err := need(buf, offset, 8); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(buf[offset : offset+8])), nil
}

// DBX tests one bit (0 = LSB) of the byte at offset. bit must be 0..7.
func DBX(buf []byte, offset int, bit uint8) (bool, error) {
	if bit > 7 {
		return false, fmt.Errorf("%w: %d", ErrBitRange, bit)
	}
	if err := need(buf, offset, 1); err != nil {
		return false, err
	}
	return buf[offset]&(1<<bit) != 0, nil
}

// DBB reads a raw byte.
func DBB(buf []byte, offset int) (uint8, error) {
	if err := need(buf, offset, 1); err != nil {
		return 0, err
	}
	return buf[offset], nil
}

// DBW reads a raw 16-bit word.
func DBW(buf []byte, offset int) (uint16, error) {
	if err := need(buf, offset, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[offset : offset+2]), nil
}

// DInt reads a raw signed 32-bit integer.
func DInt(buf []byte, offset int) (int32, error) {
	if err := need(buf, offset, 4); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[offset : offset+4])), nil
}

func need(buf []byte, offset, width int) error {
	if offset < 0 || width < 0 || offset > len(buf)-width {
		return &TruncatedFrameError{Offset: offset, Width: width, Len: len(buf)}
	}
	return nil
}
