// internal/decode/errors.go
package decode

import (
	"errors"
	"fmt"
)

// ErrTruncatedFrame is matched by every bounds failure.
var ErrTruncatedFrame = errors.New("truncated frame")

// ErrBitRange rejects a bit index outside 0..7.
var ErrBitRange = errors.New("bit index out of range")

// TruncatedFrameError reports a field that does not fit in its buffer.
type TruncatedFrameError struct {
	Offset int
	Width  int
	Len    int
}

func (e *TruncatedFrameError) Error() string {
	return fmt.Sprintf("truncated frame: field at offset=%d width=%d exceeds buffer len=%d",
		e.Offset, e.Width, e.Len)
}

func (e *TruncatedFrameError) Is(target error) bool {
	return target == ErrTruncatedFrame
}
